package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Noofbiz/speechBatch/decoding"
	"github.com/Noofbiz/speechBatch/training"
	"github.com/google/subcommands"
	"github.com/olekukonko/tablewriter"
	"k8s.io/klog/v2"
)

// RunInfoCmd is the command for RunInfo.
type RunInfoCmd struct {
	modelRoot string
}

// Name returns the name of RunInfoCmd.
func (*RunInfoCmd) Name() string { return "runinfo" }

// Synopsis returns the synopsis of RunInfoCmd.
func (*RunInfoCmd) Synopsis() string { return "describe the run of a training configuration" }

// Usage returns the full usage of RunInfoCmd.
func (*RunInfoCmd) Usage() string {
	return `runinfo [-model-root <dir>] <config.yml>:
	Validate a training configuration and print its model name, run
	directory, data splits, output classes and checkpoint status.
`
}

// SetFlags sets flags for RunInfoCmd.
func (c *RunInfoCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.modelRoot, "model-root", "models", "directory holding the run directories")
}

// Execute executes RunInfoCmd.
func (c *RunInfoCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if len(f.Args()) != 1 {
		klog.Errorf("Provide the path of a training configuration file.")
		return subcommands.ExitUsageError
	}
	cfg, err := training.LoadConfig(f.Args()[0])
	if err != nil {
		klog.Errorf("Failed to load config: %v", err)
		return subcommands.ExitFailure
	}

	classes := make([]string, 0, 2)
	for _, lt := range cfg.LabelTypes() {
		n, err := training.NumClasses(cfg, lt)
		if err != nil {
			klog.Errorf("Failed to look up classes: %v", err)
			return subcommands.ExitFailure
		}
		classes = append(classes, lt+":"+strconv.Itoa(n))
	}

	dir := training.RunDir(c.modelRoot, cfg)
	checkpoint := "none"
	if path, err := decoding.FindCheckpoint(dir, 0); err == nil {
		checkpoint = filepath.Base(path)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Model", training.ModelName(cfg)})
	table.Append([]string{"Run dir", dir})
	table.Append([]string{"Complete", strconv.FormatBool(training.IsComplete(dir))})
	table.Append([]string{"Latest checkpoint", checkpoint})
	table.Append([]string{"Train split", cfg.TrainSplit()})
	table.Append([]string{"Dev split", cfg.DevSplit()})
	table.Append([]string{"Classes", strings.Join(classes, ", ")})
	table.Append([]string{"Batch", strconv.Itoa(cfg.BatchSize) + " x " + strconv.Itoa(cfg.NumGPU) + " device(s)"})
	table.Render()
	return subcommands.ExitSuccess
}

// PlotCmd is the command for Plot.
type PlotCmd struct {
	labelType string
}

// Name returns the name of PlotCmd.
func (*PlotCmd) Name() string { return "plot" }

// Synopsis returns the synopsis of PlotCmd.
func (*PlotCmd) Synopsis() string { return "re-plot the learning curves of a run" }

// Usage returns the full usage of PlotCmd.
func (*PlotCmd) Usage() string {
	return `plot [-label-type <type>] <run dir>:
	Read history.csv of a run directory and write loss.png and ler.png.
`
}

// SetFlags sets flags for PlotCmd.
func (c *PlotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.labelType, "label-type", "", "label type of the run (default: read from config.yml)")
}

// Execute executes PlotCmd.
func (c *PlotCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if len(f.Args()) != 1 {
		klog.Errorf("Provide a run directory.")
		return subcommands.ExitUsageError
	}
	dir := f.Args()[0]

	labelType := c.labelType
	if labelType == "" {
		cfg, err := training.LoadConfig(filepath.Join(dir, training.ConfigFile))
		if err != nil {
			klog.Errorf("Failed to read the label type of %s: %v", dir, err)
			return subcommands.ExitFailure
		}
		labelType = cfg.LabelType
	}

	h, err := training.ReadHistoryCSV(filepath.Join(dir, training.HistoryFile))
	if err != nil {
		klog.Errorf("Failed to read history: %v", err)
		return subcommands.ExitFailure
	}
	if err := training.PlotLoss(h, dir); err != nil {
		klog.Errorf("Failed to plot loss: %v", err)
		return subcommands.ExitFailure
	}
	if err := training.PlotLER(h, dir, labelType); err != nil {
		klog.Errorf("Failed to plot ler: %v", err)
		return subcommands.ExitFailure
	}
	klog.Infof("Plotted %d records of %s", h.Len(), dir)
	return subcommands.ExitSuccess
}

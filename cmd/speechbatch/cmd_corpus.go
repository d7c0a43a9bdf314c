package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/Noofbiz/speechBatch/corpus"
	"github.com/Noofbiz/speechBatch/datasets"
	"github.com/google/subcommands"
	"github.com/olekukonko/tablewriter"
	"k8s.io/klog/v2"
)

// IndexCmd is the command for Index.
type IndexCmd struct {
	layout layoutFlags
}

// Name returns the name of IndexCmd.
func (*IndexCmd) Name() string { return "index" }

// Synopsis returns the synopsis of IndexCmd.
func (*IndexCmd) Synopsis() string { return "print frame statistics of a corpus split" }

// Usage returns the full usage of IndexCmd.
func (*IndexCmd) Usage() string {
	return `index -root <dir> -corpus <name> -split <split> [-train-size <size>] [-labels a,b]:
	Load the frame counts of a corpus split and print its statistics.
`
}

// SetFlags sets flags for IndexCmd.
func (c *IndexCmd) SetFlags(f *flag.FlagSet) { c.layout.register(f) }

// Execute executes IndexCmd.
func (c *IndexCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	l := c.layout.layout()
	x, err := l.LoadIndex()
	if err != nil {
		klog.Errorf("Failed to load index of %s: %v", l.Split, err)
		return subcommands.ExitFailure
	}
	s := x.Stats()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Split", "Utterances", "Min frames", "Max frames", "Mean frames", "Total frames"})
	table.Append([]string{
		l.Split,
		strconv.Itoa(s.Utterances),
		strconv.Itoa(s.MinFrames),
		strconv.Itoa(s.MaxFrames),
		fmt.Sprintf("%.1f", s.MeanFrames),
		strconv.Itoa(s.TotalFrames),
	})
	table.Render()
	return subcommands.ExitSuccess
}

// BatchesCmd is the command for Batches.
type BatchesCmd struct {
	layout        layoutFlags
	batchSize     int
	numDevices    int
	epochs        int
	sort          bool
	sortStopEpoch int
	sortaGrad     bool
	stack         int
	skip          int
	splice        int
	seed          int64
}

// Name returns the name of BatchesCmd.
func (*BatchesCmd) Name() string { return "batches" }

// Synopsis returns the synopsis of BatchesCmd.
func (*BatchesCmd) Synopsis() string { return "walk the mini-batches drawn from a corpus split" }

// Usage returns the full usage of BatchesCmd.
func (*BatchesCmd) Usage() string {
	return `batches -root <dir> -corpus <name> -split <split> [-batch-size n] [-epochs n] [-sort]:
	Draw mini-batches for the given number of epochs and print one row per
	device batch.
`
}

// SetFlags sets flags for BatchesCmd.
func (c *BatchesCmd) SetFlags(f *flag.FlagSet) {
	c.layout.register(f)
	f.IntVar(&c.batchSize, "batch-size", 32, "utterances per device")
	f.IntVar(&c.numDevices, "num-devices", 1, "devices each batch is split across")
	f.IntVar(&c.epochs, "epochs", 1, "epochs to walk")
	f.BoolVar(&c.sort, "sort", false, "draw batches in ascending frame count order")
	f.IntVar(&c.sortStopEpoch, "sort-stop-epoch", 0, "switch to random order after this many epochs (0 = never)")
	f.BoolVar(&c.sortaGrad, "sorta-grad", false, "sort the first epoch only")
	f.IntVar(&c.stack, "stack", 1, "frames stacked into one")
	f.IntVar(&c.skip, "skip", 1, "frames skipped between stacks")
	f.IntVar(&c.splice, "splice", 1, "odd number of frames spliced around each frame (1 = off)")
	f.Int64Var(&c.seed, "seed", 0, "shuffling seed (0 = time based)")
}

// Execute executes BatchesCmd.
func (c *BatchesCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	l := c.layout.layout()
	ds, err := datasets.New(l, corpus.NpyReader{}, datasets.Config{
		Name:          l.Split,
		BatchSize:     c.batchSize,
		NumDevices:    c.numDevices,
		NumStack:      c.stack,
		NumSkip:       c.skip,
		Splice:        c.splice,
		SortUtt:       c.sort,
		SortStopEpoch: c.sortStopEpoch,
		SortaGrad:     c.sortaGrad,
		Training:      true,
		Seed:          c.seed,
	})
	if err != nil {
		klog.Errorf("Failed to open dataset %s: %v", l.Split, err)
		return subcommands.ExitFailure
	}
	if ds.Len() == 0 {
		klog.Errorf("Split %s has no utterances", l.Split)
		return subcommands.ExitFailure
	}
	klog.Infof("%s: %d utterances, input size %d", l.Split, ds.Len(), ds.InputSize())

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Epoch", "Step", "State", "Device", "Size", "Max frames", "Max labels", "Last"})
	for step := 0; ds.Epoch() < c.epochs; step++ {
		if ctx.Err() != nil {
			return subcommands.ExitFailure
		}
		epoch, state := ds.Epoch(), ds.State()
		parts, nextEpoch, err := ds.NextSplit()
		if err != nil {
			klog.Errorf("Failed to draw batch %d: %v", step, err)
			return subcommands.ExitFailure
		}
		for d, b := range parts {
			maxLabels := 0
			for _, lb := range b.Labels {
				maxLabels = max(maxLabels, lb.MaxLen)
			}
			table.Append([]string{
				strconv.Itoa(epoch),
				strconv.Itoa(step),
				state.String(),
				strconv.Itoa(d),
				strconv.Itoa(b.Size()),
				strconv.Itoa(b.MaxFrames),
				strconv.Itoa(maxLabels),
				strconv.FormatBool(nextEpoch),
			})
		}
	}
	table.Render()
	return subcommands.ExitSuccess
}

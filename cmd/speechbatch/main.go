// speechbatch inspects speech corpora laid out for batch training: index
// statistics, the batches a dataset configuration would draw, and the
// learning curves of training runs.
package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/Noofbiz/speechBatch/corpus"
	"github.com/google/subcommands"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&IndexCmd{}, "corpus")
	subcommands.Register(&BatchesCmd{}, "corpus")
	subcommands.Register(&RunInfoCmd{}, "runs")
	subcommands.Register(&PlotCmd{}, "runs")

	flag.Parse()
	status := subcommands.Execute(context.Background())
	klog.Flush()
	os.Exit(int(status))
}

// layoutFlags are the flags locating one corpus split.
type layoutFlags struct {
	root        string
	corpus      string
	split       string
	trainSize   string
	labels      string
	labelDir    string
	speakerDirs bool
}

func (l *layoutFlags) register(f *flag.FlagSet) {
	f.StringVar(&l.root, "root", "", "corpus root holding inputs/ and labels/")
	f.StringVar(&l.corpus, "corpus", string(corpus.Librispeech), "corpus: timit, csj or librispeech")
	f.StringVar(&l.split, "split", "", "data split, e.g. train or dev_clean")
	f.StringVar(&l.trainSize, "train-size", "", "train size variant (empty for timit)")
	f.StringVar(&l.labels, "labels", "character", "comma separated label types, one per label stream")
	f.StringVar(&l.labelDir, "label-dir", corpus.LabelDirCTC, "label model directory: ctc, attention or ctc_divide")
	f.BoolVar(&l.speakerDirs, "speaker-dirs", false, "utterances are stored under per-speaker directories")
}

func (l *layoutFlags) layout() corpus.Layout {
	return corpus.Layout{
		Root:        l.root,
		Corpus:      corpus.Name(l.corpus),
		Split:       l.split,
		TrainSize:   l.trainSize,
		LabelTypes:  strings.Split(l.labels, ","),
		LabelDir:    l.labelDir,
		SpeakerDirs: l.speakerDirs,
	}
}

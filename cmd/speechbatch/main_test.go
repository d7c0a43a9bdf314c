package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/speechBatch/corpus"
	"github.com/Noofbiz/speechBatch/training"
	"github.com/google/go-cmp/cmp"
	"github.com/google/subcommands"
)

func execute(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("failed to parse flags %v: %v", args, err)
	}
	return cmd.Execute(context.Background(), f)
}

func TestLayoutFlags(t *testing.T) {
	c := &IndexCmd{}
	f := flag.NewFlagSet("index", flag.ContinueOnError)
	c.SetFlags(f)
	if err := f.Parse([]string{"-root", "/data", "-corpus", "csj", "-split", "eval1", "-train-size", "large", "-labels", "kanji,kana", "-speaker-dirs"}); err != nil {
		t.Fatal(err)
	}
	want := corpus.Layout{
		Root: "/data", Corpus: corpus.CSJ, Split: "eval1", TrainSize: "large",
		LabelTypes: []string{"kanji", "kana"}, LabelDir: corpus.LabelDirCTC, SpeakerDirs: true,
	}
	if diff := cmp.Diff(want, c.layout.layout()); diff != "" {
		t.Fatalf("layout (-want +got):\n%s", diff)
	}
}

func TestIndexCmd(t *testing.T) {
	root := t.TempDir()
	l := corpus.Layout{Root: root, Corpus: corpus.Librispeech, Split: "dev_clean", TrainSize: "train_clean100", LabelTypes: []string{"character"}}
	if err := os.MkdirAll(l.InputDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := corpus.WriteFrameNums(l.FrameNumPath(), map[string]int{"a": 10, "b": 30}); err != nil {
		t.Fatal(err)
	}

	args := []string{"-root", root, "-split", "dev_clean", "-train-size", "train_clean100"}
	if got := execute(t, &IndexCmd{}, args...); got != subcommands.ExitSuccess {
		t.Fatalf("index exited with %v", got)
	}
	if got := execute(t, &IndexCmd{}, "-root", root, "-split", "nope"); got != subcommands.ExitFailure {
		t.Fatalf("index on an unknown split exited with %v", got)
	}
}

func TestBatchesCmd_InvalidSplice(t *testing.T) {
	for _, splice := range []string{"2", "-1"} {
		if got := execute(t, &BatchesCmd{}, "-root", t.TempDir(), "-split", "dev_clean", "-splice", splice); got != subcommands.ExitFailure {
			t.Errorf("batches -splice %s exited with %v", splice, got)
		}
	}
}

func TestPlotCmd(t *testing.T) {
	dir := t.TempDir()
	h := &training.History{}
	h.Add(200, 2, 2.5, 0.6, 0.7)
	h.Add(400, 1, 1.5, 0.4, 0.5)
	if err := h.WriteCSV(filepath.Join(dir, training.HistoryFile)); err != nil {
		t.Fatal(err)
	}

	if got := execute(t, &PlotCmd{}, "-label-type", "phone39", dir); got != subcommands.ExitSuccess {
		t.Fatalf("plot exited with %v", got)
	}
	for _, name := range []string{"loss.png", "ler.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s missing: %v", name, err)
		}
	}
	if got := execute(t, &PlotCmd{}); got != subcommands.ExitUsageError {
		t.Fatalf("plot without run dir exited with %v", got)
	}
}

func TestRunInfoCmd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	cfg := "param:\n  corpus: csj\n  model: blstm\n  label_type: kanji\n  label_type_sub: kana\n  train_data_size: default\n"
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := execute(t, &RunInfoCmd{}, "-model-root", dir, path); got != subcommands.ExitSuccess {
		t.Fatalf("runinfo exited with %v", got)
	}
	if got := execute(t, &RunInfoCmd{}); got != subcommands.ExitUsageError {
		t.Fatalf("runinfo without config exited with %v", got)
	}
}

// Package decoding restores a trained model from its run directory and
// prints its hypotheses next to the references for every utterance of a
// split.
package decoding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Noofbiz/speechBatch/datasets"
	"github.com/Noofbiz/speechBatch/labels"
	"github.com/olekukonko/tablewriter"
	"k8s.io/klog/v2"
)

// ErrNoCheckpoint is returned when a run directory holds no checkpoint.
var ErrNoCheckpoint = errors.New("decoding: there are not any checkpoints")

// CheckpointPrefix starts the name of every checkpoint file.
const CheckpointPrefix = "model.ckpt-"

// Decoder is a trained model that can be restored and run on batches.
type Decoder interface {
	Restore(ctx context.Context, path string) error
	// Decode returns one hypothesis per utterance of b. A missing or empty
	// hypothesis means the model emitted nothing.
	Decode(ctx context.Context, b *datasets.Batch) ([]labels.Hypothesis, error)
}

// FindCheckpoint returns the checkpoint path of epoch in dir, or of the
// latest epoch when epoch <= 0. Checkpoint files are named
// model.ckpt-<epoch> with any extension; the returned path has none.
func FindCheckpoint(dir string, epoch int) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCheckpoint, err)
	}
	latest := -1
	for _, e := range entries {
		name, ok := strings.CutPrefix(e.Name(), CheckpointPrefix)
		if !ok {
			continue
		}
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[:i]
		}
		n, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		if epoch > 0 && n == epoch {
			return filepath.Join(dir, CheckpointPrefix+name), nil
		}
		latest = max(latest, n)
	}
	if epoch > 0 || latest < 0 {
		return "", fmt.Errorf("%w in %s (epoch %d)", ErrNoCheckpoint, dir, epoch)
	}
	return filepath.Join(dir, CheckpointPrefix+strconv.Itoa(latest)), nil
}

// Restore finds the checkpoint of epoch in dir and restores dec from it.
func Restore(ctx context.Context, dec Decoder, dir string, epoch int) (string, error) {
	path, err := FindCheckpoint(dir, epoch)
	if err != nil {
		return "", err
	}
	if err := dec.Restore(ctx, path); err != nil {
		return "", fmt.Errorf("failed to restore %s: %w", path, err)
	}
	klog.Infof("Model restored: %s", path)
	return path, nil
}

// Summary is the outcome of decoding a split.
type Summary struct {
	Split      string
	Utterances int
	// Empty counts utterances for which the model emitted nothing.
	Empty int
	// ErrorRate is the label error rate over the whole split.
	ErrorRate float64
}

// Render prints s as a table.
func (s *Summary) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Split", "Utterances", "Empty", "Error rate"})
	table.Append([]string{
		s.Split,
		strconv.Itoa(s.Utterances),
		strconv.Itoa(s.Empty),
		fmt.Sprintf("%.2f %%", s.ErrorRate*100),
	})
	table.Render()
}

// Run decodes one epoch of ds, one utterance at a time, writing the
// reference and the hypothesis of every utterance to w. The references are
// the first label stream of ds.
func Run(ctx context.Context, ds *datasets.Dataset, dec Decoder, m *labels.Map, w io.Writer) (*Summary, error) {
	ds.Reset()
	s := &Summary{Split: ds.Name()}
	var refs, hyps [][]int32
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, nextEpoch, err := ds.Next(1)
		if err != nil {
			return nil, err
		}
		out, err := dec.Decode(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", b.Names[0], err)
		}
		var pred labels.Hypothesis
		if len(out) > 0 {
			pred = out[0]
		}
		if pred.Empty() {
			s.Empty++
		}
		truth := b.LabelRow(0, 0)

		fmt.Fprintf(w, "----- wav: %s -----\n", b.Names[0])
		fmt.Fprintf(w, "True: %s\n", m.Decode(truth))
		fmt.Fprintf(w, "Pred: %s\n", m.Decode(pred.Labels))

		refs = append(refs, truth)
		hyps = append(hyps, pred.Labels)
		s.Utterances++
		if nextEpoch {
			break
		}
	}
	rate, err := labels.ErrorRate(refs, hyps)
	if err != nil {
		return nil, err
	}
	s.ErrorRate = rate
	return s, nil
}

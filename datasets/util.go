package datasets

import (
	"fmt"

	"github.com/Noofbiz/speechBatch/frames"
)

// utterance is one reshaped utterance ready to be copied into a batch.
type utterance struct {
	name   string
	frames int
	dim    int
	feats  []float32 // frames*dim values, row-major
	labels [][]int32
}

func (u utterance) row(index int) row {
	return row{
		index:  index,
		name:   u.name,
		frames: u.frames,
		feats:  u.feats,
		labels: u.labels,
	}
}

// load reads utterance i and applies splicing and frame stacking, so the
// reported length is the stacked length. Once the input size is known, an
// utterance of another width is an ErrShape error.
func (d *Dataset) load(i int) (utterance, error) {
	feats, err := d.reader.ReadFeatures(d.index.InputPaths[i])
	if err != nil {
		return utterance{}, fmt.Errorf("failed to read features of %s: %w", d.index.Names[i], err)
	}
	if len(feats) == 0 || len(feats[0]) == 0 {
		return utterance{}, fmt.Errorf("%w: %s has no features", ErrShape, d.index.Names[i])
	}
	dim := len(feats[0])
	for t, f := range feats {
		if len(f) != dim {
			return utterance{}, fmt.Errorf("%w: frame %d of %s has %d features, frame 0 has %d", ErrShape, t, d.index.Names[i], len(f), dim)
		}
	}
	feats = frames.Splice(feats, (d.cfg.Splice-1)/2)
	feats = frames.StackFrames(feats, d.cfg.NumStack, d.cfg.NumSkip)

	u := utterance{
		name:   d.index.Names[i],
		frames: len(feats),
		dim:    len(feats[0]),
		labels: make([][]int32, d.index.Streams()),
	}
	if d.inputSize > 0 && u.dim != d.inputSize {
		return utterance{}, fmt.Errorf("%w: %s has %d features per frame, want %d", ErrShape, u.name, u.dim, d.inputSize)
	}
	u.feats = flatten(feats, u.dim)

	for s := range u.labels {
		labels, err := d.reader.ReadLabels(d.index.LabelPaths[s][i])
		if err != nil {
			return utterance{}, fmt.Errorf("failed to read labels of %s (stream %d): %w", d.index.Names[i], s, err)
		}
		u.labels[s] = labels
	}
	return u, nil
}

// flatten copies a [T][dim] sequence into one row-major buffer.
func flatten(feats [][]float32, dim int) []float32 {
	flat := make([]float32, len(feats)*dim)
	for t, f := range feats {
		copy(flat[t*dim:(t+1)*dim], f)
	}
	return flat
}

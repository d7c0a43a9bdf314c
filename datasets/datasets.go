// Package datasets turns a corpus index into an endless stream of padded
// mini-batches for acoustic model training and decoding.
//
// A Dataset owns the utterance index, the set of utterances not yet drawn in
// the current epoch and the curriculum state. Every call to Next draws one
// mini-batch, pads it to the longest utterance and label sequence it
// contains, and reports whether the batch closed an epoch. The stream never
// ends: after the last batch of an epoch the whole corpus becomes available
// again and the caller decides when to stop pulling.
//
// Batch composition follows the SortaGrad curriculum. While the dataset is in
// the Sorted state, batches are consecutive blocks of the index, which is
// sorted by frame count, so the model sees short utterances first. Once the
// curriculum ends the dataset switches permanently to the Random state and
// samples batches uniformly without replacement.
//
// Utterances are either read once when the dataset is created (Config.Eager)
// or read from disk for every batch. A Dataset is not safe for concurrent
// use; create one per stream (e.g. one for train and one for dev).
//
// GomlxDataset adapts a Dataset to gomlx's train.Dataset, so batches can be
// consumed directly by a gomlx training loop.
package datasets

import (
	"errors"
	"time"
)

// DefaultPadValue pads label sequences of streams without an explicit pad
// value. It must differ from every real class id, which are non-negative.
const DefaultPadValue int32 = -1

// ErrShape is returned when an utterance does not match the feature width
// of the dataset.
var ErrShape = errors.New("inconsistent feature shape")

// Config controls batching and the curriculum of a Dataset.
type Config struct {
	// Name identifies the dataset in logs and in gomlx. Default: "dataset".
	Name string

	// BatchSize is the number of utterances per device. Default: 32.
	BatchSize int

	// NumDevices splits every batch across this many devices; the dataset
	// draws BatchSize*NumDevices utterances per batch. Default: 1.
	NumDevices int

	// NumStack and NumSkip configure frame stacking. Default: 1 (off).
	NumStack int
	NumSkip  int

	// Splice is the odd number of consecutive frames concatenated into
	// one, centered on the current frame, before stacking. Default: 1 (off).
	Splice int

	// SortUtt draws batches in ascending frame count order until
	// SortStopEpoch is reached. Utterances inside a batch are shuffled.
	SortUtt bool

	// SortStopEpoch switches a sorted dataset to random order once this
	// many epochs have completed. Zero keeps it sorted forever.
	SortStopEpoch int

	// SortaGrad sorts only the first epoch, keeping each batch in
	// ascending order, then switches to random order. It overrides SortUtt.
	SortaGrad bool

	// PadValues holds the label pad value of each label stream. Streams
	// without an entry are padded with DefaultPadValue.
	PadValues []int32

	// Eager reads every utterance when the dataset is created instead of
	// reading it for every batch.
	Eager bool

	// Training enables the epoch rollover log line.
	Training bool

	// Seed seeds shuffling and sampling. If zero, a time-based seed is used.
	Seed int64
}

// withDefaults returns a copy of c with zero fields set to their defaults.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "dataset"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.NumDevices <= 0 {
		c.NumDevices = 1
	}
	if c.NumStack <= 0 {
		c.NumStack = 1
	}
	if c.NumSkip <= 0 {
		c.NumSkip = 1
	}
	if c.Splice == 0 {
		c.Splice = 1
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	if c.SortaGrad {
		c.SortUtt = false
	}
	return c
}

// State is the curriculum state of a Dataset.
type State int

const (
	// Sorted draws consecutive blocks of the frame-count sorted index.
	Sorted State = iota
	// Random samples uniformly without replacement.
	Random
)

func (s State) String() string {
	switch s {
	case Sorted:
		return "sorted"
	case Random:
		return "random"
	}
	return "unknown"
}

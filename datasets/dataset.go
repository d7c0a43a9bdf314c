package datasets

import (
	"fmt"
	"math/rand"

	"github.com/Noofbiz/speechBatch/corpus"
	"k8s.io/klog/v2"
)

// Dataset draws padded mini-batches from a corpus index. See the package
// documentation for the batching policy.
type Dataset struct {
	cfg    Config
	index  *corpus.Index
	reader corpus.Reader
	rng    *rand.Rand

	// cache holds every utterance when the dataset is eager.
	cache     []utterance
	inputSize int

	rest    *indexPool
	epoch   int
	sortUtt bool
}

// New loads the index through loader and prepares a dataset reading
// utterances with reader. With cfg.Eager every utterance is read and
// reshaped here; otherwise only the first utterance is read, to learn the
// input size.
func New(loader corpus.IndexLoader, reader corpus.Reader, cfg Config) (*Dataset, error) {
	cfg = cfg.withDefaults()
	if cfg.Splice < 1 || cfg.Splice%2 == 0 {
		return nil, fmt.Errorf("%w: splice must be a positive odd number of frames, got %d", corpus.ErrConfig, cfg.Splice)
	}
	index, err := loader.LoadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load index for %s: %w", cfg.Name, err)
	}
	if reader == nil {
		reader = corpus.NpyReader{}
	}

	d := &Dataset{
		cfg:     cfg,
		index:   index,
		reader:  reader,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		rest:    newIndexPool(index.Len()),
		sortUtt: cfg.SortUtt,
	}

	if cfg.Eager {
		klog.V(1).Infof("=> Loading dataset %s (%d utterances)...", cfg.Name, index.Len())
		d.cache = make([]utterance, index.Len())
		for i := range d.cache {
			u, err := d.load(i)
			if err != nil {
				return nil, err
			}
			d.cache[i] = u
			d.inputSize = u.dim
		}
	} else if index.Len() > 0 {
		u, err := d.load(0)
		if err != nil {
			return nil, err
		}
		d.inputSize = u.dim
	}
	return d, nil
}

// Name returns the configured dataset name.
func (d *Dataset) Name() string { return d.cfg.Name }

// Config returns the configuration with defaults applied.
func (d *Dataset) Config() Config { return d.cfg }

// Index returns the corpus index. It must not be modified.
func (d *Dataset) Index() *corpus.Index { return d.index }

// Len returns the number of utterances.
func (d *Dataset) Len() int { return d.index.Len() }

// InputSize returns the feature width after splicing and stacking.
func (d *Dataset) InputSize() int { return d.inputSize }

// Epoch returns the number of completed epochs.
func (d *Dataset) Epoch() int { return d.epoch }

// BatchSize returns the number of utterances drawn by Next(0).
func (d *Dataset) BatchSize() int { return d.cfg.BatchSize * d.cfg.NumDevices }

// PadValue returns the label pad value of stream s.
func (d *Dataset) PadValue(s int) int32 {
	if s < len(d.cfg.PadValues) {
		return d.cfg.PadValues[s]
	}
	return DefaultPadValue
}

// State returns the current curriculum state.
func (d *Dataset) State() State {
	if d.sortUtt || d.sortaGradEpoch() {
		return Sorted
	}
	return Random
}

// sortaGradEpoch reports whether the sorta-grad first epoch is running.
func (d *Dataset) sortaGradEpoch() bool {
	return d.cfg.SortaGrad && d.epoch == 0
}

// Reset makes every utterance available again without ending the epoch.
// Use it before evaluating a full pass mid-training.
func (d *Dataset) Reset() {
	d.rest.reset(d.index.Len())
}

// Next draws the next mini-batch of batchSize utterances, or of BatchSize()
// utterances when batchSize <= 0. When no more than batchSize utterances are
// left in the epoch, all of them form the batch, the epoch counter advances
// and nextEpoch is true.
//
// A read error leaves the dataset state untouched. Next panics on an empty
// dataset.
func (d *Dataset) Next(batchSize int) (b *Batch, nextEpoch bool, err error) {
	if d.index.Len() == 0 {
		panic(fmt.Sprintf("datasets: Next called on empty dataset %s", d.cfg.Name))
	}
	if batchSize <= 0 {
		batchSize = d.BatchSize()
	}

	sorted := d.State() == Sorted
	var indices []int
	if d.rest.len() > batchSize {
		if sorted {
			indices = d.rest.first(batchSize)
		} else {
			indices = d.rest.sample(batchSize, d.rng)
		}
	} else {
		indices = d.rest.all()
		nextEpoch = true
	}

	// Shuffle the selected mini-batch. The sorta-grad epoch keeps it sorted.
	if !d.sortaGradEpoch() {
		d.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	rows := make([]row, len(indices))
	for i, idx := range indices {
		u, err := d.utterance(idx)
		if err != nil {
			return nil, false, err
		}
		rows[i] = u.row(idx)
	}
	b = assemble(rows, d.inputSize, d.padValues())

	if nextEpoch {
		d.endEpoch()
	} else {
		d.rest.commit(len(indices))
	}
	return b, nextEpoch, nil
}

// NextSplit draws BatchSize() utterances and splits them across the
// configured number of devices.
func (d *Dataset) NextSplit() ([]*Batch, bool, error) {
	b, nextEpoch, err := d.Next(0)
	if err != nil {
		return nil, false, err
	}
	parts, err := Split(b, d.cfg.NumDevices)
	if err != nil {
		return nil, false, err
	}
	return parts, nextEpoch, nil
}

func (d *Dataset) endEpoch() {
	d.rest.reset(d.index.Len())
	d.epoch++
	if d.cfg.Training {
		klog.V(1).Infof("---Next epoch--- (%s, epoch %d)", d.cfg.Name, d.epoch)
	}
	if d.sortUtt && d.epoch == d.cfg.SortStopEpoch {
		d.sortUtt = false
		klog.V(1).Infof("%s: sort stop epoch %d reached, drawing batches at random", d.cfg.Name, d.epoch)
	}
}

func (d *Dataset) padValues() []int32 {
	pads := make([]int32, d.index.Streams())
	for s := range pads {
		pads[s] = d.PadValue(s)
	}
	return pads
}

func (d *Dataset) utterance(i int) (utterance, error) {
	if d.cache != nil {
		return d.cache[i], nil
	}
	return d.load(i)
}

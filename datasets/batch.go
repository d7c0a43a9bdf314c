package datasets

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Batch is a padded mini-batch. Inputs is stored flat in row-major order with
// shape [Size()][MaxFrames][InputSize]; frames past an utterance's length are
// zero.
type Batch struct {
	// Indices are the positions of the utterances in the corpus index, in
	// batch order.
	Indices []int
	Names   []string

	Inputs    []float32
	MaxFrames int
	InputSize int
	InputLens []int32

	// Labels holds one padded label tensor per label stream.
	Labels []LabelBatch
}

// LabelBatch is one padded label stream of a batch. Values is stored flat
// with shape [batch][MaxLen]; positions past a sequence's length hold
// PadValue.
type LabelBatch struct {
	Values   []int32
	MaxLen   int
	Lens     []int32
	PadValue int32
}

// Size returns the number of utterances in the batch.
func (b *Batch) Size() int { return len(b.Indices) }

// Frame returns frame t of utterance i, padding included.
func (b *Batch) Frame(i, t int) []float32 {
	off := (i*b.MaxFrames + t) * b.InputSize
	return b.Inputs[off : off+b.InputSize]
}

// Features returns the unpadded features of utterance i, flat with shape
// [InputLens[i]][InputSize].
func (b *Batch) Features(i int) []float32 {
	off := i * b.MaxFrames * b.InputSize
	return b.Inputs[off : off+int(b.InputLens[i])*b.InputSize]
}

// LabelRow returns the unpadded label sequence of utterance i in stream s.
func (b *Batch) LabelRow(s, i int) []int32 {
	lb := b.Labels[s]
	off := i * lb.MaxLen
	return lb.Values[off : off+int(lb.Lens[i])]
}

// row is the unpadded content of one batch entry.
type row struct {
	index  int
	name   string
	frames int
	feats  []float32 // frames*inputSize values
	labels [][]int32
}

// assemble pads rows into a batch using the maxima of exactly these rows.
func assemble(rows []row, inputSize int, padValues []int32) *Batch {
	b := &Batch{
		Indices:   make([]int, len(rows)),
		Names:     make([]string, len(rows)),
		InputSize: inputSize,
		InputLens: make([]int32, len(rows)),
		Labels:    make([]LabelBatch, len(padValues)),
	}
	for _, r := range rows {
		b.MaxFrames = max(b.MaxFrames, r.frames)
	}
	b.Inputs = make([]float32, len(rows)*b.MaxFrames*inputSize)

	for s, pad := range padValues {
		lb := LabelBatch{PadValue: pad, Lens: make([]int32, len(rows))}
		for _, r := range rows {
			lb.MaxLen = max(lb.MaxLen, len(r.labels[s]))
		}
		lb.Values = make([]int32, len(rows)*lb.MaxLen)
		for i := range lb.Values {
			lb.Values[i] = pad
		}
		b.Labels[s] = lb
	}

	for i, r := range rows {
		b.Indices[i] = r.index
		b.Names[i] = r.name
		b.InputLens[i] = int32(r.frames)
		copy(b.Inputs[i*b.MaxFrames*inputSize:], r.feats[:r.frames*inputSize])
		for s := range b.Labels {
			lb := &b.Labels[s]
			lb.Lens[i] = int32(len(r.labels[s]))
			copy(lb.Values[i*lb.MaxLen:], r.labels[s])
		}
	}
	return b
}

// rows extracts the unpadded entries [from, to) of the batch.
func (b *Batch) rows(from, to int) []row {
	out := make([]row, 0, to-from)
	for i := from; i < to; i++ {
		r := row{
			index:  b.Indices[i],
			name:   b.Names[i],
			frames: int(b.InputLens[i]),
			feats:  b.Features(i),
			labels: make([][]int32, len(b.Labels)),
		}
		for s := range b.Labels {
			r.labels[s] = b.LabelRow(s, i)
		}
		out = append(out, r)
	}
	return out
}

func (b *Batch) padValues() []int32 {
	pads := make([]int32, len(b.Labels))
	for s, lb := range b.Labels {
		pads[s] = lb.PadValue
	}
	return pads
}

// Split partitions b into n contiguous sub-batches in batch order, one per
// device. Sizes differ by at most one, earlier sub-batches taking the extra
// utterances, so they are equal whenever n divides the batch size. Each
// sub-batch is padded to its own maxima. A batch smaller than n yields some
// empty sub-batches.
func Split(b *Batch, n int) ([]*Batch, error) {
	if n < 1 {
		return nil, fmt.Errorf("cannot split a batch across %d devices", n)
	}
	if n == 1 {
		return []*Batch{b}, nil
	}
	size := b.Size()
	base, extra := size/n, size%n
	pads := b.padValues()

	out := make([]*Batch, n)
	from := 0
	for d := range n {
		to := from + base
		if d < extra {
			to++
		}
		out[d] = assemble(b.rows(from, to), b.InputSize, pads)
		from = to
	}
	return out, nil
}

// Tensors converts the batch into gomlx tensors:
//   - inputs: features [batch, maxFrames, inputSize] float32 and input
//     lengths [batch] int32;
//   - labels: for each label stream, the padded labels [batch, maxLen] int32
//     followed by the label lengths [batch] int32.
func (b *Batch) Tensors() (inputs, labels []*tensors.Tensor) {
	size := b.Size()
	inputs = []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions(b.Inputs, size, b.MaxFrames, b.InputSize),
		tensors.FromFlatDataAndDimensions(b.InputLens, size),
	}
	labels = make([]*tensors.Tensor, 0, 2*len(b.Labels))
	for _, lb := range b.Labels {
		labels = append(labels,
			tensors.FromFlatDataAndDimensions(lb.Values, size, lb.MaxLen),
			tensors.FromFlatDataAndDimensions(lb.Lens, size),
		)
	}
	return inputs, labels
}

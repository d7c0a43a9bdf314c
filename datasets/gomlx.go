package datasets

import (
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
)

// GomlxDataset exposes a Dataset as a gomlx train.Dataset.
//
// Yield returns inputs [features, inputLens] and, per label stream, labels
// [labels, labelLens]; see Batch.Tensors. Batches change shape from one
// yield to the next, since every batch is padded to its own maxima.
type GomlxDataset struct {
	ds          *Dataset
	stopAtEpoch bool
	eof         bool
}

var _ train.Dataset = (*GomlxDataset)(nil)

// NewGomlxDataset wraps ds. With stopAtEpoch, the Yield following the last
// batch of an epoch returns io.EOF once, so Loop.RunEpochs can be used;
// otherwise the dataset never ends.
func NewGomlxDataset(ds *Dataset, stopAtEpoch bool) *GomlxDataset {
	return &GomlxDataset{ds: ds, stopAtEpoch: stopAtEpoch}
}

// Name implements train.Dataset.
func (g *GomlxDataset) Name() string { return g.ds.Name() }

// Reset implements train.Dataset. It restarts the current epoch.
func (g *GomlxDataset) Reset() {
	g.ds.Reset()
	g.eof = false
}

// Yield implements train.Dataset.
func (g *GomlxDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if g.eof {
		g.eof = false
		return nil, nil, nil, io.EOF
	}
	b, nextEpoch, err := g.ds.Next(0)
	if err != nil {
		return nil, nil, nil, err
	}
	if nextEpoch && g.stopAtEpoch {
		g.eof = true
	}
	inputs, labels = b.Tensors()
	return nil, inputs, labels, nil
}

package iterator

import (
	"io"
	"iter"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

// Collate converts one emitted batch of examples into gomlx input and label
// tensors.
type Collate[E any] func(batch []E) (inputs, labels []*tensors.Tensor, err error)

// TrainDataset adapts an Iterator to gomlx's train.Dataset interface so the
// batch stream feeds gomlx training loops directly: Yield pulls the next
// batch and returns io.EOF once the batch sequence is exhausted; Reset
// restarts it.
type TrainDataset[E any] struct {
	name    string
	it      *Iterator[E]
	collate Collate[E]

	next func() ([]E, bool)
	stop func()
}

var _ train.Dataset = (*TrainDataset[int])(nil)

// NewTrainDataset wraps it as a gomlx train.Dataset named name.
func NewTrainDataset[E any](name string, it *Iterator[E], collate Collate[E]) (*TrainDataset[E], error) {
	if it == nil {
		return nil, errors.New("train dataset needs an iterator")
	}
	if collate == nil {
		return nil, errors.New("train dataset needs a collate function")
	}
	return &TrainDataset[E]{name: name, it: it, collate: collate}, nil
}

// Name implements train.Dataset.
func (d *TrainDataset[E]) Name() string {
	return d.name
}

// Reset implements train.Dataset: the next Yield restarts the batch
// sequence.
func (d *TrainDataset[E]) Reset() {
	if d.stop != nil {
		d.stop()
	}
	d.next, d.stop = nil, nil
}

// Yield implements train.Dataset.
func (d *TrainDataset[E]) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if d.next == nil {
		d.next, d.stop = iter.Pull(d.it.Batches())
	}
	minibatch, ok := d.next()
	if !ok {
		return nil, nil, nil, io.EOF
	}
	inputs, labels, err = d.collate(minibatch)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "collate batch for %s", d.name)
	}
	return nil, inputs, labels, nil
}

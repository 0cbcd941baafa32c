package datasets

import (
	"iter"
	"slices"
)

// MemoryDataset is a fully in-memory sequence dataset. It backs the iterator
// package's indexable view and doubles as a stream source for the streaming
// iterators.
type MemoryDataset struct {
	seqs []Sequence
}

// NewMemoryDataset wraps seqs; the slice is not copied.
func NewMemoryDataset(seqs []Sequence) *MemoryDataset {
	return &MemoryDataset{seqs: seqs}
}

// Len returns the number of examples.
func (d *MemoryDataset) Len() int {
	return len(d.seqs)
}

// Example returns the example at position i.
func (d *MemoryDataset) Example(i int) Sequence {
	return d.seqs[i]
}

// Stream returns the examples as a one-pass sequence in dataset order.
func (d *MemoryDataset) Stream() iter.Seq[Sequence] {
	return slices.Values(d.seqs)
}

// Texts returns the examples' token sequences in dataset order, the source
// shape the streaming BPTT iterator consumes.
func (d *MemoryDataset) Texts() iter.Seq[[]int32] {
	return func(yield func([]int32) bool) {
		for _, s := range d.seqs {
			if !yield(s.Tokens) {
				return
			}
		}
	}
}

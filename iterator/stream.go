package iterator

import (
	"iter"
	"slices"

	"github.com/pkg/errors"
)

// defaultBufferMultiplier sizes the streaming buffer relative to the batch
// capacity. Minibatches all come out the same size when the buffer size is a
// multiple of the batch size.
const defaultBufferMultiplier = 1 << 10

// StreamOptions configures a StreamIterator. Ordering flags behave like
// Options, but apply within one buffer at a time.
type StreamOptions[E any] struct {
	// BatchSize is the batch capacity, as in Options.
	BatchSize int

	// SortKey orders examples by length, as in Options.
	SortKey func(E) int

	// BatchSizeFn makes the batch capacity dynamic, as in Options.
	BatchSizeFn SizeFunc[E]

	// Train marks a training iterator: Shuffle defaults to Train and Sort to
	// !Train.
	Train bool

	// Repeat re-reads the source from its start whenever it is exhausted.
	Repeat bool

	// Shuffle, Sort, and SortWithinBatch follow the Options defaults.
	Shuffle, Sort, SortWithinBatch *bool

	// Bucket routes each buffer through Pool, with a single window spanning
	// the buffer.
	Bucket bool

	// BufferSize is the number of examples drained from the source before
	// batching resumes. Defaults to BatchSize * 1024.
	BufferSize int

	// Seed seeds the shuffler when Shuffler is nil.
	Seed uint64

	// Shuffler is the iterator's random source.
	Shuffler *RandomShuffler
}

// StreamIterator batches an unbounded or length-unknown example source
// through a bounded buffer: it accumulates BufferSize examples, orders and
// batches that buffer exactly like Iterator orders an epoch, emits the
// buffer's batches, and resumes accumulation. A final partial buffer is
// still processed.
//
// Sorting and shuffling see one buffer at a time; this approximates
// full-dataset ordering in exchange for bounded memory. Checkpoint resume is
// not supported on streamed sources.
type StreamIterator[E any] struct {
	source func() iter.Seq[E]
	policy[E]
	bufferSize int

	iterations          int
	iterationsThisEpoch int
}

// NewStream builds a StreamIterator. source is called once per epoch and
// must return a fresh pass over the examples.
func NewStream[E any](source func() iter.Seq[E], opts StreamOptions[E]) (*StreamIterator[E], error) {
	if source == nil {
		return nil, errors.New("stream: source is nil")
	}
	p, err := resolvePolicy(Options[E]{
		BatchSize:       opts.BatchSize,
		SortKey:         opts.SortKey,
		BatchSizeFn:     opts.BatchSizeFn,
		Train:           opts.Train,
		Repeat:          opts.Repeat,
		Shuffle:         opts.Shuffle,
		Sort:            opts.Sort,
		SortWithinBatch: opts.SortWithinBatch,
		Bucket:          opts.Bucket,
		Seed:            opts.Seed,
		Shuffler:        opts.Shuffler,
	})
	if err != nil {
		return nil, err
	}
	s := &StreamIterator[E]{source: source, policy: p, bufferSize: opts.BufferSize}
	if s.bufferSize <= 0 {
		s.bufferSize = s.batchSize * defaultBufferMultiplier
	}
	return s, nil
}

// prepareBuffer orders one buffer's worth of examples per the policy.
func (s *StreamIterator[E]) prepareBuffer(buf []E) []E {
	if s.sort {
		s.sortAscending(buf)
		return buf
	}
	if s.shuffle {
		out := make([]E, len(buf))
		for i, j := range s.shuffler.Perm(len(buf)) {
			out[i] = buf[j]
		}
		return out
	}
	return buf
}

// batchesFor builds the batch sequence for one prepared buffer.
func (s *StreamIterator[E]) batchesFor(buf []E) iter.Seq[[]E] {
	seq := slices.Values(buf)
	if s.bucket && !s.sort {
		// One pool window spans the whole buffer, so batch order is
		// randomized across everything currently held.
		lookahead := (s.bufferSize + s.batchSize - 1) / s.batchSize
		return Pool(seq, s.batchSize, s.sortKey, s.sizeFn, s.shuffler, s.shuffle, lookahead)
	}
	return Chunks(seq, s.batchSize, s.sizeFn)
}

// consumeBuffer orders, batches, and emits one buffer. It reports whether
// the caller kept pulling.
func (s *StreamIterator[E]) consumeBuffer(buf []E, yield func([]E) bool) bool {
	for minibatch := range s.batchesFor(s.prepareBuffer(buf)) {
		s.iterations++
		s.iterationsThisEpoch++
		s.reorderBatch(minibatch)
		if !yield(minibatch) {
			return false
		}
	}
	return true
}

// Iterations reports the number of batches emitted so far; it resets at each
// epoch start when Repeat is false.
func (s *StreamIterator[E]) Iterations() int {
	return s.iterations
}

// Batches returns the restartable batch sequence. Every example drained from
// the source appears in exactly one emitted batch.
func (s *StreamIterator[E]) Batches() iter.Seq[[]E] {
	return func(yield func([]E) bool) {
		for {
			s.iterationsThisEpoch = 0
			if !s.repeat {
				s.iterations = 0
			}
			buf := make([]E, 0, s.bufferSize)
			for ex := range s.source() {
				buf = append(buf, ex)
				if len(buf) == s.bufferSize {
					if !s.consumeBuffer(buf, yield) {
						return
					}
					buf = buf[:0]
				}
			}
			if len(buf) > 0 && !s.consumeBuffer(buf, yield) {
				return
			}
			if !s.repeat {
				return
			}
		}
	}
}

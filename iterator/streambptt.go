package iterator

import (
	"iter"
	"slices"

	"github.com/pkg/errors"
)

// StreamBPTTOptions configures a StreamBPTTIterator.
type StreamBPTTOptions struct {
	// BatchSize is the number of parallel token streams.
	BatchSize int

	// Len is the window length, as in BPTTOptions.
	Len int

	// RandomizedLen redraws the window length at each epoch start, as in
	// BPTTOptions.
	RandomizedLen bool

	// Repeat re-reads the source from its start whenever it is exhausted.
	Repeat bool

	// BufferSize bounds each windowing pass: a pass covers at most
	// BufferSize * window-length tokens. Defaults to BatchSize * 1024.
	BufferSize int

	// Seed seeds the shuffler when Shuffler is nil.
	Seed uint64

	// Shuffler is the random source for the randomized window length.
	Shuffler *RandomShuffler
}

// StreamBPTTIterator applies BPTT windowing to an unbounded stream of token
// sequences, one bounded pass at a time. Token contiguity is preserved
// across pass boundaries: tokens that did not fit one pass are carried, in
// strict arrival order, to the front of the next pass, so no window ever
// spans a gap.
type StreamBPTTIterator[K any] struct {
	source     func() iter.Seq[[]K]
	pad        K
	batchFirst bool

	batchSize  int
	bpttLen    int
	curLen     int
	randomized bool
	repeat     bool
	bufferSize int

	shuffler   *RandomShuffler
	iterations int

	// leftover carries the tokens beyond the previous pass's capacity.
	leftover []K
}

// NewStreamBPTT builds a streaming BPTT iterator. source is called once per
// epoch and must return a fresh pass over the example token sequences; pad
// and batchFirst describe the single text field.
func NewStreamBPTT[K any](source func() iter.Seq[[]K], pad K, batchFirst bool, opts StreamBPTTOptions) (*StreamBPTTIterator[K], error) {
	if source == nil {
		return nil, errors.New("bptt stream: source is nil")
	}
	if opts.BatchSize < 1 {
		return nil, errors.Errorf("bptt stream: batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.Len < 1 {
		return nil, errors.Errorf("bptt stream: window length must be positive, got %d", opts.Len)
	}
	s := &StreamBPTTIterator[K]{
		source:     source,
		pad:        pad,
		batchFirst: batchFirst,
		batchSize:  opts.BatchSize,
		bpttLen:    opts.Len,
		curLen:     opts.Len,
		randomized: opts.RandomizedLen,
		repeat:     opts.Repeat,
		bufferSize: opts.BufferSize,
		shuffler:   opts.Shuffler,
	}
	if s.bufferSize <= 0 {
		s.bufferSize = s.batchSize * defaultBufferMultiplier
	}
	if s.shuffler == nil {
		s.shuffler = NewShuffler(opts.Seed)
	}
	return s, nil
}

// CurLen reports the window length in effect for the current epoch.
func (s *StreamBPTTIterator[K]) CurLen() int {
	return s.curLen
}

// Iterations reports the number of windows emitted so far.
func (s *StreamBPTTIterator[K]) Iterations() int {
	return s.iterations
}

// consumePass windows the carried leftovers followed by the buffered example
// tokens, up to the pass capacity; the excess becomes the next pass's
// leftovers. It reports whether the caller kept pulling.
func (s *StreamBPTTIterator[K]) consumePass(buf [][]K, yield func(BPTTBatch[K]) bool) bool {
	capacity := s.bufferSize * s.curLen
	pass := make([]K, 0, min(capacity, len(s.leftover)))
	pass = append(pass, s.leftover...)
	for _, text := range buf {
		pass = append(pass, text...)
	}
	s.leftover = s.leftover[:0]
	if len(pass) > capacity {
		s.leftover = append(s.leftover, pass[capacity:]...)
		pass = pass[:capacity]
	}
	data := columnar(pass, s.batchSize, s.pad)
	count := windowCount(len(pass), s.batchSize, s.curLen)
	for w := range windows(data, count, s.curLen, s.batchSize, s.batchFirst) {
		s.iterations++
		if !yield(w) {
			return false
		}
	}
	return true
}

// Batches returns the restartable window sequence. Within an epoch the
// emitted windows cover one contiguous token stream; only tokens too few to
// pair with a target at the very end of an epoch go unemitted.
func (s *StreamBPTTIterator[K]) Batches() iter.Seq[BPTTBatch[K]] {
	return func(yield func(BPTTBatch[K]) bool) {
		for {
			if s.randomized {
				s.curLen = drawBPTTLen(s.bpttLen, s.shuffler)
			}
			s.leftover = s.leftover[:0]
			buf := make([][]K, 0, s.bufferSize)
			for text := range s.source() {
				buf = append(buf, slices.Clone(text))
				if len(buf) == s.bufferSize {
					if !s.consumePass(buf, yield) {
						return
					}
					buf = buf[:0]
				}
			}
			if len(buf) > 0 && !s.consumePass(buf, yield) {
				return
			}
			// Drain the carried tail so no windowable tokens are dropped at
			// the end of the stream.
			for len(s.leftover) > 0 {
				if !s.consumePass(nil, yield) {
					return
				}
			}
			if !s.repeat {
				return
			}
		}
	}
}

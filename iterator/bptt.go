package iterator

import (
	"iter"
	"math"

	"github.com/pkg/errors"
)

// Corpus is the single-field dataset view the BPTT iterators consume: one
// long contiguous token sequence plus the field's padding token and layout
// preference. Numericalization of raw text into tokens happens upstream.
type Corpus[K any] interface {
	// Fields names the example fields. BPTT requires exactly one.
	Fields() []string
	// Tokens returns the full contiguous token sequence.
	Tokens() []K
	// Pad is the token used to square off the tail of the columnar layout.
	Pad() K
	// BatchFirst selects [batch][time] window layout instead of the default
	// [time][batch].
	BatchFirst() bool
}

// BPTTBatch is one backpropagation-through-time window: Target holds the
// same streams as Text shifted one timestep forward, so
// Target[t][b] == Text[t+1][b]. Layout is [SeqLen][BatchSize] rows, or
// [BatchSize][SeqLen] when the corpus field is batch-first.
type BPTTBatch[K any] struct {
	Text      [][]K
	Target    [][]K
	SeqLen    int
	BatchSize int
}

// MinBPTTLen floors the randomized window length.
const MinBPTTLen = 10

// bpttLenStddev is the spread of the per-epoch window length draw.
const bpttLenStddev = 5

// BPTTOptions configures a BPTT iterator.
type BPTTOptions struct {
	// BatchSize is the number of parallel token streams.
	BatchSize int

	// Len is the window length: timesteps per emitted batch.
	Len int

	// RandomizedLen redraws the window length at each epoch start from a
	// normal distribution centered on Len (halved with small probability)
	// and floored at MinBPTTLen, varying computational granularity across
	// epochs while keeping the one-step target alignment exact.
	RandomizedLen bool

	// Repeat loops over epochs indefinitely.
	Repeat bool

	// Seed seeds the shuffler when Shuffler is nil.
	Seed uint64

	// Shuffler is the random source for the randomized window length.
	Shuffler *RandomShuffler
}

// BPTTIterator slices one long contiguous token sequence into consecutive
// (text, target) windows for language-model training. The sequence is laid
// out as BatchSize parallel streams; every window of timesteps is emitted in
// order, the final window of an epoch possibly shorter than the configured
// length.
type BPTTIterator[K any] struct {
	corpus Corpus[K]

	batchSize  int
	bpttLen    int
	curLen     int
	randomized bool
	repeat     bool
	batchFirst bool

	shuffler   *RandomShuffler
	iterations int
}

// NewBPTT builds a BPTT iterator over corpus, which must expose exactly one
// field.
func NewBPTT[K any](corpus Corpus[K], opts BPTTOptions) (*BPTTIterator[K], error) {
	if corpus == nil {
		return nil, errors.New("bptt: corpus is nil")
	}
	if n := len(corpus.Fields()); n != 1 {
		return nil, errors.Errorf("bptt: corpus must have exactly one field, got %d", n)
	}
	if opts.BatchSize < 1 {
		return nil, errors.Errorf("bptt: batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.Len < 1 {
		return nil, errors.Errorf("bptt: window length must be positive, got %d", opts.Len)
	}
	it := &BPTTIterator[K]{
		corpus:     corpus,
		batchSize:  opts.BatchSize,
		bpttLen:    opts.Len,
		curLen:     opts.Len,
		randomized: opts.RandomizedLen,
		repeat:     opts.Repeat,
		batchFirst: corpus.BatchFirst(),
		shuffler:   opts.Shuffler,
	}
	if it.shuffler == nil {
		it.shuffler = NewShuffler(opts.Seed)
	}
	return it, nil
}

// drawBPTTLen draws the epoch's window length around base.
func drawBPTTLen(base int, sh *RandomShuffler) int {
	cur := base
	if sh.Float64() > 0.95 {
		cur = base / 2
	}
	cur = int(float64(cur) + sh.NormFloat64()*bpttLenStddev)
	if cur < MinBPTTLen {
		cur = MinBPTTLen
	}
	return cur
}

// columnar pads tokens to a multiple of batchSize and lays them out
// time-major: data[t][b] is timestep t of stream b, so consecutive rows are
// consecutive timesteps of every stream.
func columnar[K any](tokens []K, batchSize int, pad K) [][]K {
	cols := (len(tokens) + batchSize - 1) / batchSize
	padded := make([]K, batchSize*cols)
	n := copy(padded, tokens)
	for i := n; i < len(padded); i++ {
		padded[i] = pad
	}
	data := make([][]K, cols)
	for t := range cols {
		row := make([]K, batchSize)
		for b := range batchSize {
			row[b] = padded[b*cols+t]
		}
		data[t] = row
	}
	return data
}

// windowCount is the number of windows one pass over a sequence of the given
// token count emits at the given window length.
func windowCount(tokens, batchSize, curLen int) int {
	n := math.Ceil((float64(tokens)/float64(batchSize) - 1) / float64(curLen))
	if n < 0 {
		return 0
	}
	return int(n)
}

// windows emits count consecutive (text, target) windows of curLen rows of
// data, the target offset one timestep forward. The final window may be
// shorter than curLen; it is still emitted.
func windows[K any](data [][]K, count, curLen, batchSize int, batchFirst bool) iter.Seq[BPTTBatch[K]] {
	return func(yield func(BPTTBatch[K]) bool) {
		for i := 0; i < count*curLen; i += curLen {
			seqLen := min(curLen, len(data)-i-1)
			if seqLen <= 0 {
				return
			}
			b := BPTTBatch[K]{
				Text:      data[i : i+seqLen],
				Target:    data[i+1 : i+1+seqLen],
				SeqLen:    seqLen,
				BatchSize: batchSize,
			}
			if batchFirst {
				b.Text = transpose(b.Text)
				b.Target = transpose(b.Target)
			}
			if !yield(b) {
				return
			}
		}
	}
}

func transpose[K any](rows [][]K) [][]K {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]K, len(rows[0]))
	for j := range out {
		col := make([]K, len(rows))
		for i := range rows {
			col[i] = rows[i][j]
		}
		out[j] = col
	}
	return out
}

// CurLen reports the window length in effect for the current epoch.
func (it *BPTTIterator[K]) CurLen() int {
	return it.curLen
}

// WindowsPerEpoch reports how many windows one epoch emits at the current
// window length: ceil((tokens/batchSize - 1) / curLen).
func (it *BPTTIterator[K]) WindowsPerEpoch() int {
	return windowCount(len(it.corpus.Tokens()), it.batchSize, it.curLen)
}

// Iterations reports the number of windows emitted so far.
func (it *BPTTIterator[K]) Iterations() int {
	return it.iterations
}

// Batches returns the restartable window sequence: finite when Repeat is
// false, otherwise a fresh pass over the corpus starts whenever the previous
// one ends, redrawing the window length first when RandomizedLen is set.
func (it *BPTTIterator[K]) Batches() iter.Seq[BPTTBatch[K]] {
	return func(yield func(BPTTBatch[K]) bool) {
		tokens := it.corpus.Tokens()
		data := columnar(tokens, it.batchSize, it.corpus.Pad())
		for {
			if it.randomized {
				it.curLen = drawBPTTLen(it.bpttLen, it.shuffler)
			}
			count := windowCount(len(tokens), it.batchSize, it.curLen)
			for w := range windows(data, count, it.curLen, it.batchSize, it.batchFirst) {
				it.iterations++
				if !yield(w) {
					return
				}
			}
			if !it.repeat {
				return
			}
		}
	}
}

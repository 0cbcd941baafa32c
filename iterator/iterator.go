// Package iterator turns ordered collections of variable-length examples
// into streams of batches for model-training loops. It provides greedy
// size-bounded batching, lookahead bucket-sorting to reduce padding, an
// epoch state machine with exact mid-epoch checkpoint and resume, sliding
// BPTT windowing of long token sequences, and streaming variants that batch
// an unbounded source through a bounded buffer.
//
// Iterators are single producer, single consumer: each instance owns its
// counters, buffers, and shuffler exclusively, and all work happens
// synchronously on the caller's pull.
package iterator

import (
	"cmp"
	"iter"
	"slices"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrNoFixedLength is returned by BatchesPerEpoch and Epoch when a dynamic
// batch size function is configured: the number of batches per epoch then
// depends on the data and has no fixed value.
var ErrNoFixedLength = errors.New("batch count is undefined with a dynamic batch size function")

// Dataset is the finite, indexable view of examples an Iterator consumes.
// Indices must be stable within an epoch. The iterator only reorders
// references to examples and never mutates them.
type Dataset[E any] interface {
	Len() int
	Example(i int) E
}

// Bool returns a pointer to v, for the optional flags in Options.
func Bool(v bool) *bool {
	return &v
}

// Options configures an Iterator. Optional *bool flags left nil take the
// documented defaults.
type Options[E any] struct {
	// BatchSize is the batch capacity, measured in examples or, when
	// BatchSizeFn is set, in its units.
	BatchSize int

	// SortKey orders examples by length so similarly sized examples batch
	// together. Required when sorting, bucketing, or sort-within-batch is in
	// effect.
	SortKey func(E) int

	// BatchSizeFn makes the batch capacity dynamic, for example a token
	// budget. Nil caps batches by example count.
	BatchSizeFn SizeFunc[E]

	// Train marks a training iterator: Shuffle defaults to Train and Sort to
	// !Train.
	Train bool

	// Repeat loops over epochs indefinitely instead of stopping after one.
	Repeat bool

	// Shuffle randomizes example presentation each epoch. Defaults to Train.
	Shuffle *bool

	// Sort orders the whole epoch ascending by SortKey. Defaults to !Train.
	// When both Sort and Shuffle are in effect, Sort wins.
	Sort *bool

	// SortWithinBatch reorders every emitted batch descending by SortKey,
	// the order padded-sequence consumers expect. Defaults to Sort.
	SortWithinBatch *bool

	// Bucket routes batching through Pool when the epoch is not globally
	// sorted, trading exact presentation order for reduced padding.
	Bucket bool

	// Lookahead is the pool window multiplier used with Bucket. Defaults to
	// DefaultLookahead.
	Lookahead int

	// Seed seeds the iterator's shuffler when Shuffler is nil.
	Seed uint64

	// Shuffler is the iterator's random source. One is created from Seed
	// when nil.
	Shuffler *RandomShuffler
}

// policy is the resolved ordering configuration shared by the indexable and
// streaming iterators.
type policy[E any] struct {
	batchSize   int
	sortKey     func(E) int
	sizeFn      SizeFunc[E]
	dynamicSize bool
	repeat      bool
	shuffle     bool
	sort        bool
	sortWithin  bool
	bucket      bool
	lookahead   int
	shuffler    *RandomShuffler
}

func resolvePolicy[E any](opts Options[E]) (policy[E], error) {
	p := policy[E]{
		batchSize:   opts.BatchSize,
		sortKey:     opts.SortKey,
		sizeFn:      opts.BatchSizeFn,
		dynamicSize: opts.BatchSizeFn != nil,
		repeat:      opts.Repeat,
		bucket:      opts.Bucket,
		lookahead:   opts.Lookahead,
		shuffler:    opts.Shuffler,
	}
	if p.batchSize < 1 {
		return p, errors.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	if p.shuffler == nil {
		p.shuffler = NewShuffler(opts.Seed)
	}
	p.shuffle = opts.Train
	if opts.Shuffle != nil {
		p.shuffle = *opts.Shuffle
	}
	p.sort = !opts.Train
	if opts.Sort != nil {
		p.sort = *opts.Sort
	}
	p.sortWithin = p.sort
	if opts.SortWithinBatch != nil {
		p.sortWithin = *opts.SortWithinBatch
	}
	if p.sort && p.shuffle {
		klog.Warning("iterator: both sort and shuffle requested; sort takes precedence")
		p.shuffle = false
	}
	if p.sortKey == nil && (p.sort || p.sortWithin || p.bucket) {
		return p, errors.New("a sort key is required for sorting or bucketing")
	}
	return p, nil
}

// sortAscending stable-sorts xs in place, ascending by the sort key.
func (p *policy[E]) sortAscending(xs []E) {
	slices.SortStableFunc(xs, func(a, b E) int {
		return cmp.Compare(p.sortKey(a), p.sortKey(b))
	})
}

// reorderBatch applies the sort-within-batch rule in place: a batch that
// arrived ascending-sorted (epoch sort) is reversed, otherwise it is sorted
// descending explicitly.
func (p *policy[E]) reorderBatch(minibatch []E) {
	if !p.sortWithin {
		return
	}
	if p.sort {
		slices.Reverse(minibatch)
		return
	}
	slices.SortStableFunc(minibatch, func(a, b E) int {
		return cmp.Compare(p.sortKey(b), p.sortKey(a))
	})
}

// Iterator is the epoch/iteration state machine over an indexable dataset.
// It produces one epoch's batches at a time, ordered by the configured
// policy, and supports exact mid-epoch checkpoint and resume through
// StateDict and LoadStateDict.
type Iterator[E any] struct {
	ds Dataset[E]
	policy[E]

	iterations          int
	iterationsThisEpoch int
	stateThisEpoch      ShufflerState
	restored            bool
}

// New builds an Iterator over ds with the given options.
func New[E any](ds Dataset[E], opts Options[E]) (*Iterator[E], error) {
	if ds == nil {
		return nil, errors.New("dataset is nil")
	}
	p, err := resolvePolicy(opts)
	if err != nil {
		return nil, err
	}
	it := &Iterator[E]{ds: ds, policy: p}
	it.stateThisEpoch = it.shuffler.State()
	return it, nil
}

// data returns this epoch's view of the dataset: sorted, shuffled, or in
// dataset order.
func (it *Iterator[E]) data() []E {
	n := it.ds.Len()
	xs := make([]E, n)
	if it.shuffle {
		for i, j := range it.shuffler.Perm(n) {
			xs[i] = it.ds.Example(j)
		}
		return xs
	}
	for i := range n {
		xs[i] = it.ds.Example(i)
	}
	if it.sort {
		it.sortAscending(xs)
	}
	return xs
}

// createBatches builds the epoch's batch sequence per the ordering policy.
func (it *Iterator[E]) createBatches() iter.Seq[[]E] {
	data := slices.Values(it.data())
	if it.bucket && !it.sort {
		return Pool(data, it.batchSize, it.sortKey, it.sizeFn, it.shuffler, it.shuffle, it.lookahead)
	}
	return Chunks(data, it.batchSize, it.sizeFn)
}

// initEpoch starts an epoch: it captures the shuffler's epoch-start state, or
// restores the checkpointed one when resuming, builds the epoch's batches,
// and resets the within-epoch counter unless this epoch resumes a checkpoint.
func (it *Iterator[E]) initEpoch() iter.Seq[[]E] {
	if it.restored {
		// Replaying the checkpointed epoch: the recorded state makes every
		// draw below identical to the interrupted run. The state was
		// validated by LoadStateDict, so Restore cannot fail here.
		_ = it.shuffler.Restore(it.stateThisEpoch)
	} else {
		it.stateThisEpoch = it.shuffler.State()
	}
	batches := it.createBatches()
	if it.restored {
		it.restored = false
	} else {
		it.iterationsThisEpoch = 0
	}
	if !it.repeat {
		it.iterations = 0
	}
	return batches
}

// Batches returns the restartable batch sequence: finite when Repeat is
// false, otherwise a fresh epoch starts whenever the previous one ends. On
// the first epoch after LoadStateDict, batches before the checkpointed
// position are regenerated identically but skipped without being re-emitted.
// Checkpointing is only valid between emissions.
func (it *Iterator[E]) Batches() iter.Seq[[]E] {
	return func(yield func([]E) bool) {
		for {
			batches := it.initEpoch()
			idx := 0
			for minibatch := range batches {
				if idx < it.iterationsThisEpoch {
					idx++
					continue
				}
				idx++
				it.iterations++
				it.iterationsThisEpoch++
				it.reorderBatch(minibatch)
				if !yield(minibatch) {
					return
				}
			}
			if !it.repeat {
				return
			}
		}
	}
}

// Iterations reports the number of batches emitted so far; it resets at each
// epoch start when Repeat is false.
func (it *Iterator[E]) Iterations() int {
	return it.iterations
}

// BatchesPerEpoch reports the fixed number of batches in one epoch. It fails
// with ErrNoFixedLength when a dynamic batch size function is configured.
func (it *Iterator[E]) BatchesPerEpoch() (int, error) {
	if it.dynamicSize {
		return 0, ErrNoFixedLength
	}
	return (it.ds.Len() + it.batchSize - 1) / it.batchSize, nil
}

// Epoch reports the number of completed epochs,
// floor(iterations / batches per epoch). Like BatchesPerEpoch, it fails with
// ErrNoFixedLength under a dynamic batch size function.
func (it *Iterator[E]) Epoch() (int, error) {
	per, err := it.BatchesPerEpoch()
	if err != nil {
		return 0, err
	}
	if per == 0 {
		return 0, nil
	}
	return it.iterations / per, nil
}

// State is the checkpoint record of an Iterator. Importing it into a fresh
// iterator over the same dataset and configuration reproduces the remaining
// batch sequence of the interrupted run exactly.
type State struct {
	Iterations          int           `json:"iterations"`
	IterationsThisEpoch int           `json:"iterations_this_epoch"`
	RandomState         ShufflerState `json:"random_state_this_epoch"`
}

// StateDict exports the checkpoint record as of the last completed batch
// emission. Calling it mid-batch is not meaningful; call it between pulls.
func (it *Iterator[E]) StateDict() State {
	return State{
		Iterations:          it.iterations,
		IterationsThisEpoch: it.iterationsThisEpoch,
		RandomState:         slices.Clone(it.stateThisEpoch),
	}
}

// LoadStateDict restores a checkpoint record. The next epoch started will
// replay and skip to the checkpointed position exactly once; epochs after
// that proceed normally. A malformed record fails fast with no partial
// restore.
func (it *Iterator[E]) LoadStateDict(st State) error {
	if len(st.RandomState) == 0 {
		return errors.New("checkpoint record is missing the shuffler state")
	}
	if err := NewShuffler(0).Restore(st.RandomState); err != nil {
		return errors.Wrap(err, "checkpoint record holds an invalid shuffler state")
	}
	if st.Iterations < 0 || st.IterationsThisEpoch < 0 || st.IterationsThisEpoch > st.Iterations {
		return errors.Errorf("inconsistent checkpoint counters: %d this epoch, %d total",
			st.IterationsThisEpoch, st.Iterations)
	}
	it.iterations = st.Iterations
	it.iterationsThisEpoch = st.IterationsThisEpoch
	it.stateThisEpoch = slices.Clone(st.RandomState)
	it.restored = true
	return nil
}

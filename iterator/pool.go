package iterator

import (
	"cmp"
	"iter"
	"slices"
)

// DefaultLookahead is the pool window multiplier: each bucketing window holds
// up to DefaultLookahead*capacity worth of examples.
const DefaultLookahead = 100

// Pool partitions seq into windows of lookahead*capacity, stable-sorts each
// window ascending by key, re-batches the sorted window to capacity, and
// emits the window's batches: in sorted order, or in a fresh random
// permutation per window when shuffle is set. The per-window sort keeps
// length-similar examples in the same batch so padding stays low, while the
// batch permutation keeps the presentation order randomized; neither the
// whole dataset is sorted nor the examples globally shuffled.
//
// All permutations are drawn from shuffler, which must not be nil when
// shuffle is set.
func Pool[E any](seq iter.Seq[E], capacity int, key func(E) int, sizeFn SizeFunc[E], shuffler *RandomShuffler, shuffle bool, lookahead int) iter.Seq[[]E] {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return func(yield func([]E) bool) {
		for window := range Chunks(seq, capacity*lookahead, sizeFn) {
			slices.SortStableFunc(window, func(a, b E) int {
				return cmp.Compare(key(a), key(b))
			})
			rebatched := Chunks(slices.Values(window), capacity, sizeFn)
			if !shuffle {
				for b := range rebatched {
					if !yield(b) {
						return
					}
				}
				continue
			}
			batches := slices.Collect(rebatched)
			for _, i := range shuffler.Perm(len(batches)) {
				if !yield(batches[i]) {
					return
				}
			}
		}
	}
}

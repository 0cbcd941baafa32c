package iterator

import "iter"

// SizeFunc reports the effective size of a batch after adding ex: count is
// the number of examples in the batch including ex, and sofar is the previous
// effective size. A token-budget function would return sofar plus the token
// count of ex. The default (nil) measures batches by example count.
type SizeFunc[E any] func(ex E, count, sofar int) int

// countSize is the default SizeFunc: a batch's size is its example count.
func countSize[E any](ex E, count, sofar int) int {
	return count
}

// Chunks greedily groups seq into batches whose effective size, as computed
// incrementally by sizeFn, never exceeds capacity: a batch closes with the
// example that lands exactly on capacity, and without the example that would
// overshoot it, which starts the next batch instead. An example whose own
// size already overshoots capacity is emitted alone. A trailing partial batch
// is always emitted; empty input yields no batches. sizeFn is not validated
// for monotonicity, each step only compares against capacity.
func Chunks[E any](seq iter.Seq[E], capacity int, sizeFn SizeFunc[E]) iter.Seq[[]E] {
	if sizeFn == nil {
		sizeFn = countSize[E]
	}
	return func(yield func([]E) bool) {
		var minibatch []E
		sofar := 0
		for ex := range seq {
			minibatch = append(minibatch, ex)
			sofar = sizeFn(ex, len(minibatch), sofar)
			switch {
			case sofar == capacity:
				if !yield(minibatch) {
					return
				}
				minibatch, sofar = nil, 0
			case sofar > capacity:
				closed := minibatch[:len(minibatch)-1]
				minibatch = []E{ex}
				sofar = sizeFn(ex, 1, 0)
				if len(closed) > 0 && !yield(closed) {
					return
				}
				if sofar >= capacity {
					// ex alone already fills or overshoots the budget.
					if !yield(minibatch) {
						return
					}
					minibatch, sofar = nil, 0
				}
			}
		}
		if len(minibatch) > 0 {
			yield(minibatch)
		}
	}
}

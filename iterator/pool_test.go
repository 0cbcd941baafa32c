package iterator

import (
	"slices"
	"testing"
)

func identity(x int) int { return x }

// TestPoolSortedWindows verifies the bucketing contract on the concrete
// scenario: lookahead 2 with capacity 3 makes windows of six, each sorted
// ascending and re-batched, emitted in order when shuffle is off.
func TestPoolSortedWindows(t *testing.T) {
	// Scrambled within each window of six to prove the per-window sort.
	data := []int{3, 1, 2, 6, 5, 4, 9, 8, 7, 10}

	got := collectBatches(t, Pool(slices.Values(data), 3, identity, nil, NewShuffler(1), false, 2))

	want := [][]int{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {10}}
	if len(got) != len(want) {
		t.Fatalf("expected %d batches, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Fatalf("batch %d mismatch: got %v want %v", i, got[i], want[i])
		}
	}
}

// TestPoolShuffleIsPermutation checks that shuffling reorders whole batches
// within a window without losing or duplicating examples.
func TestPoolShuffleIsPermutation(t *testing.T) {
	data := ints(1, 30)

	got := collectBatches(t, Pool(slices.Values(data), 3, identity, nil, NewShuffler(7), true, 10))

	var flat []int
	for _, b := range got {
		// Batch membership must match the sorted re-batching even when the
		// batch order is shuffled.
		lo := b[0]
		for i, v := range b {
			if v != lo+i {
				t.Fatalf("batch %v is not a contiguous sorted run", b)
			}
		}
		flat = append(flat, b...)
	}
	slices.Sort(flat)
	if !slices.Equal(flat, data) {
		t.Fatalf("shuffled pool lost or duplicated examples: %v", flat)
	}
}

// TestPoolShuffleDeterministic verifies two pools sharing a seed emit the
// same batch order.
func TestPoolShuffleDeterministic(t *testing.T) {
	data := ints(1, 30)
	a := collectBatches(t, Pool(slices.Values(data), 3, identity, nil, NewShuffler(42), true, 10))
	b := collectBatches(t, Pool(slices.Values(data), 3, identity, nil, NewShuffler(42), true, 10))
	if len(a) != len(b) {
		t.Fatalf("batch counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !slices.Equal(a[i], b[i]) {
			t.Fatalf("batch %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

// maxRange returns the spread of values in b.
func maxRange(b []int) int {
	lo, hi := b[0], b[0]
	for _, v := range b {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}

// TestPoolReducesSpread checks the padding-reduction property: bucketed
// batches have a smaller maximum intra-batch length spread than batching the
// same shuffled data directly.
func TestPoolReducesSpread(t *testing.T) {
	sh := NewShuffler(3)
	data := make([]int, 200)
	for i, j := range sh.Perm(200) {
		data[i] = j + 1
	}

	plain := collectBatches(t, Chunks(slices.Values(data), 8, nil))
	pooled := collectBatches(t, Pool(slices.Values(data), 8, identity, nil, NewShuffler(3), true, 5))

	worst := func(batches [][]int) int {
		w := 0
		for _, b := range batches {
			if r := maxRange(b); r > w {
				w = r
			}
		}
		return w
	}
	if wp, wb := worst(plain), worst(pooled); wb >= wp {
		t.Fatalf("pooling did not reduce intra-batch spread: pooled %d, plain %d", wb, wp)
	}
}

package iterator

import (
	"slices"
	"testing"
)

// collectBatches drains a batch sequence into a slice.
func collectBatches(t *testing.T, seq func(yield func([]int) bool)) [][]int {
	t.Helper()
	var out [][]int
	seq(func(b []int) bool {
		out = append(out, slices.Clone(b))
		return true
	})
	return out
}

// ints returns [lo, hi] inclusive.
func ints(lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

// TestChunksCountBased verifies the count-based contract: ten examples with
// capacity three yield three full batches and a trailing partial one.
func TestChunksCountBased(t *testing.T) {
	got := collectBatches(t, Chunks(slices.Values(ints(1, 10)), 3, nil))

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

// TestChunksExactMultiple checks that when the input divides evenly, every
// batch has exactly the capacity.
func TestChunksExactMultiple(t *testing.T) {
	got := collectBatches(t, Chunks(slices.Values(ints(1, 9)), 3, nil))
	if len(got) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(got))
	}
	for i, b := range got {
		if len(b) != 3 {
			t.Fatalf("batch %d has length %d, want 3", i, len(b))
		}
	}
}

// TestChunksEmptyInput verifies empty input yields zero batches.
func TestChunksEmptyInput(t *testing.T) {
	got := collectBatches(t, Chunks(slices.Values([]int(nil)), 3, nil))
	if len(got) != 0 {
		t.Fatalf("expected no batches for empty input, got %v", got)
	}
}

// TestChunksCoverage checks the no-loss property: every example appears in
// exactly one batch.
func TestChunksCoverage(t *testing.T) {
	data := ints(1, 17)
	got := collectBatches(t, Chunks(slices.Values(data), 5, nil))

	var flat []int
	for _, b := range got {
		flat = append(flat, b...)
	}
	if !slices.Equal(flat, data) {
		t.Fatalf("concatenated batches %v do not reproduce input %v", flat, data)
	}
}

// TestChunksTokenBudget exercises a dynamic size function: the batch closes
// without the example that would overshoot a token budget, and that example
// starts the next batch.
func TestChunksTokenBudget(t *testing.T) {
	// Values double as token counts.
	budget := func(ex, count, sofar int) int { return sofar + ex }

	got := collectBatches(t, Chunks(slices.Values([]int{4, 3, 3, 5, 2, 8}), 10, budget))

	// 4+3+3 = 10 closes exactly; 5+2 = 7, adding 8 would overshoot; 8 alone.
	want := [][]int{{4, 3, 3}, {5, 2}, {8}}
	if len(got) != len(want) {
		t.Fatalf("expected batches %v, got %v", want, got)
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Fatalf("batch %d mismatch: got %v want %v", i, got[i], want[i])
		}
	}
}

// TestChunksOversizedExample verifies an example that overshoots the budget
// on its own is emitted alone, with no empty batch around it.
func TestChunksOversizedExample(t *testing.T) {
	budget := func(ex, count, sofar int) int { return sofar + ex }

	got := collectBatches(t, Chunks(slices.Values([]int{12, 4, 3, 15, 2, 2}), 10, budget))

	want := [][]int{{12}, {4, 3}, {15}, {2, 2}}
	if len(got) != len(want) {
		t.Fatalf("expected batches %v, got %v", want, got)
	}
	for i := range want {
		if len(got[i]) == 0 {
			t.Fatalf("batch %d is empty", i)
		}
		if !slices.Equal(got[i], want[i]) {
			t.Fatalf("batch %d mismatch: got %v want %v", i, got[i], want[i])
		}
	}
}

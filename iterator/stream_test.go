package iterator

import (
	"iter"
	"slices"
	"testing"
)

func sliceSource(xs []int) func() iter.Seq[int] {
	return func() iter.Seq[int] {
		return slices.Values(xs)
	}
}

// TestStreamPlainOrder verifies batching across buffer boundaries with a
// partial final buffer: the buffer never merges with the next one, so batch
// boundaries fall where buffers end.
func TestStreamPlainOrder(t *testing.T) {
	s, err := NewStream(sliceSource(ints(1, 23)), StreamOptions[int]{
		BatchSize:  4,
		SortKey:    identity,
		Shuffle:    Bool(false),
		Sort:       Bool(false),
		BufferSize: 10,
	})
	if err != nil {
		t.Fatalf("NewStream failed: %v", err)
	}

	got := collectBatches(t, s.Batches())
	want := [][]int{
		{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10},
		{11, 12, 13, 14}, {15, 16, 17, 18}, {19, 20},
		{21, 22, 23},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d batches, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Fatalf("batch %d: got %v want %v", i, got[i], want[i])
		}
	}
	if s.Iterations() != 7 {
		t.Fatalf("expected 7 iterations, got %d", s.Iterations())
	}
}

// TestStreamBufferLocalSort verifies sorting applies within each buffer, not
// across the whole stream.
func TestStreamBufferLocalSort(t *testing.T) {
	// Two buffers of five: the second buffer's values are all smaller than
	// the first's, which a global sort would interleave.
	src := []int{50, 30, 40, 20, 60, 5, 3, 1, 4, 2}
	s, err := NewStream(sliceSource(src), StreamOptions[int]{
		BatchSize:       5,
		SortKey:         identity,
		Sort:            Bool(true),
		SortWithinBatch: Bool(false),
		BufferSize:      5,
	})
	if err != nil {
		t.Fatalf("NewStream failed: %v", err)
	}

	got := collectBatches(t, s.Batches())
	want := [][]int{{20, 30, 40, 50, 60}, {1, 2, 3, 4, 5}}
	if len(got) != 2 || !slices.Equal(got[0], want[0]) || !slices.Equal(got[1], want[1]) {
		t.Fatalf("got %v want %v", got, want)
	}
}

// TestStreamShuffleCoverage verifies a buffer-shuffled pass still emits every
// example exactly once.
func TestStreamShuffleCoverage(t *testing.T) {
	data := ints(1, 37)
	s, err := NewStream(sliceSource(data), StreamOptions[int]{
		BatchSize:  4,
		SortKey:    identity,
		Train:      true,
		BufferSize: 16,
		Seed:       3,
	})
	if err != nil {
		t.Fatalf("NewStream failed: %v", err)
	}

	var flat []int
	for _, b := range collectBatches(t, s.Batches()) {
		flat = append(flat, b...)
	}
	slices.Sort(flat)
	if !slices.Equal(flat, data) {
		t.Fatalf("stream lost or duplicated examples: %v", flat)
	}
}

// TestStreamBucketCoverage verifies the pooled streaming configuration
// preserves coverage.
func TestStreamBucketCoverage(t *testing.T) {
	data := ints(1, 37)
	s, err := NewStream(sliceSource(data), StreamOptions[int]{
		BatchSize:  4,
		SortKey:    identity,
		Train:      true,
		Bucket:     true,
		BufferSize: 16,
		Seed:       3,
	})
	if err != nil {
		t.Fatalf("NewStream failed: %v", err)
	}

	var flat []int
	for _, b := range collectBatches(t, s.Batches()) {
		flat = append(flat, b...)
	}
	slices.Sort(flat)
	if !slices.Equal(flat, data) {
		t.Fatalf("bucketed stream lost or duplicated examples: %v", flat)
	}
}

// TestStreamRepeat verifies Repeat re-reads the source and replays the same
// deterministic batches.
func TestStreamRepeat(t *testing.T) {
	s, err := NewStream(sliceSource(ints(1, 8)), StreamOptions[int]{
		BatchSize:  4,
		SortKey:    identity,
		Shuffle:    Bool(false),
		Sort:       Bool(false),
		BufferSize: 8,
		Repeat:     true,
	})
	if err != nil {
		t.Fatalf("NewStream failed: %v", err)
	}

	got := takeBatches(t, s.Batches(), 6)
	if len(got) != 6 {
		t.Fatalf("expected 6 batches, got %d", len(got))
	}
	for i := range 2 {
		if !slices.Equal(got[i], got[i+2]) || !slices.Equal(got[i], got[i+4]) {
			t.Fatalf("passes differ under deterministic order: %v", got)
		}
	}
}

// TestNewStreamValidation verifies construction fails fast.
func TestNewStreamValidation(t *testing.T) {
	if _, err := NewStream[int](nil, StreamOptions[int]{BatchSize: 2}); err == nil {
		t.Fatalf("expected error for nil source")
	}
	if _, err := NewStream(sliceSource(nil), StreamOptions[int]{BatchSize: 0}); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

package replacer

import "testing"

// TestBackwardKDistanceEvictionOrder reproduces the canonical LRU-2 scenario:
// frames accessed so that some have fewer than k=2 accesses (+inf distance)
// and others have two or more, and checks eviction picks the +inf frames
// first (earliest access among them), then falls back to the largest
// finite backward distance.
func TestBackwardKDistanceEvictionOrder(t *testing.T) {
	r := New(8, 2)

	// Frame 1 is accessed at t=1,4,7 and frame 2 at t=2,5 (at least two
	// accesses -> finite distance); frame 3 at t=3 and frame 4 at t=6.
	r.RecordAccess(1)
	r.RecordAccess(2)
	r.RecordAccess(3)
	r.RecordAccess(1)
	r.RecordAccess(2)
	r.RecordAccess(4)
	r.RecordAccess(1)

	for _, f := range []int64{1, 2, 3, 4} {
		r.SetEvictable(f, true)
	}

	// Frame 3 has only a single access (t=3): +inf distance, earliest
	// among the +inf group (frame 4 was accessed later at t=6).
	frame, ok := r.Evict()
	if !ok || frame != 3 {
		t.Fatalf("Evict() = %d, %v; want 3, true", frame, ok)
	}

	// Next: frame 4 is the only remaining +inf frame.
	frame, ok = r.Evict()
	if !ok || frame != 4 {
		t.Fatalf("Evict() = %d, %v; want 4, true", frame, ok)
	}

	// Remaining: frames 1 and 2, both with finite distance. After this
	// access frame 1's second-most-recent timestamp (4) is older than
	// frame 2's (5), so frame 1 has the larger backward distance and
	// evicts first.
	r.RecordAccess(2) // frame 2 history becomes [8,5]
	frame, ok = r.Evict()
	if !ok || frame != 1 {
		t.Fatalf("Evict() = %d, %v; want 1, true", frame, ok)
	}
}

func TestEvictReturnsFalseWhenNothingEvictable(t *testing.T) {
	r := New(4, 2)
	r.RecordAccess(1)
	if _, ok := r.Evict(); ok {
		t.Fatalf("Evict() ok=true on non-evictable frame, want false")
	}
}

func TestSetEvictableTogglesSize(t *testing.T) {
	r := New(4, 2)
	r.RecordAccess(1)
	r.RecordAccess(2)
	if r.Size() != 0 {
		t.Fatalf("Size() = %d, want 0 before any SetEvictable", r.Size())
	}
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)
	if r.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", r.Size())
	}
	r.SetEvictable(1, false)
	if r.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", r.Size())
	}
}

func TestRemoveDropsRecordRegardlessOfEvictability(t *testing.T) {
	r := New(4, 2)
	r.RecordAccess(1)
	r.SetEvictable(1, false)
	r.Remove(1)
	r.SetEvictable(1, true) // no-op: record is gone
	if _, ok := r.Evict(); ok {
		t.Fatalf("Evict() found a victim after Remove, want none")
	}
}

func TestUnknownFrameOperationsAreNoops(t *testing.T) {
	r := New(4, 2)
	r.SetEvictable(99, true) // no tracking record for frame 99
	if n := r.Size(); n != 0 {
		t.Fatalf("Size() = %d, want 0", n)
	}
	r.Remove(99) // must not panic
}

package audio

import (
	"sync"
	"testing"
)

func TestRingAppendAndCount(t *testing.T) {
	r := NewRing(1024)

	chunk := make([]int16, 128)
	for i := range chunk {
		chunk[i] = int16(i)
	}
	r.Append(chunk)

	if r.Count() != 128 {
		t.Errorf("Count() = %d after Append(128), want 128", r.Count())
	}
}

func TestRingSnapshotChronological(t *testing.T) {
	r := NewRing(1024)
	r.Append([]int16{1, 2, 3, 4})

	snap := r.Snapshot(1024)
	if len(snap) != 4 {
		t.Fatalf("Snapshot len = %d, want 4", len(snap))
	}
	for i, want := range []int16{1, 2, 3, 4} {
		if snap[i] != want {
			t.Errorf("snap[%d] = %d, want %d", i, snap[i], want)
		}
	}

	// Snapshot must not consume.
	if r.Count() != 4 {
		t.Errorf("Count() = %d after Snapshot, want 4", r.Count())
	}
}

func TestRingSnapshotMostRecent(t *testing.T) {
	r := NewRing(8)
	r.Append([]int16{1, 2, 3, 4, 5, 6})

	snap := r.Snapshot(3)
	if len(snap) != 3 {
		t.Fatalf("Snapshot(3) len = %d, want 3", len(snap))
	}
	for i, want := range []int16{4, 5, 6} {
		if snap[i] != want {
			t.Errorf("snap[%d] = %d, want %d", i, snap[i], want)
		}
	}
}

func TestRingOverflowDropsOldest(t *testing.T) {
	r := NewRing(4)
	r.Append([]int16{1, 2, 3, 4, 5, 6})

	if r.Count() != 4 {
		t.Fatalf("Count() = %d after overflow, want 4", r.Count())
	}
	snap := r.Snapshot(4)
	for i, want := range []int16{3, 4, 5, 6} {
		if snap[i] != want {
			t.Errorf("snap[%d] = %d, want %d", i, snap[i], want)
		}
	}
}

func TestRingBlockLargerThanCapacity(t *testing.T) {
	r := NewRing(4)
	r.Append([]int16{1, 2, 3, 4, 5, 6, 7, 8, 9})

	snap := r.Snapshot(4)
	for i, want := range []int16{6, 7, 8, 9} {
		if snap[i] != want {
			t.Errorf("snap[%d] = %d, want %d", i, snap[i], want)
		}
	}
}

func TestRingCountSaturatesAtCapacity(t *testing.T) {
	r := NewRing(16)
	for i := 0; i < 100; i++ {
		r.Append([]int16{int16(i)})
	}
	if r.Count() != 16 {
		t.Errorf("Count() = %d, want capacity 16", r.Count())
	}
	r.Clear()
	if r.Count() != 0 {
		t.Errorf("Count() = %d after Clear, want 0", r.Count())
	}
}

func TestRingConcurrentAppendSnapshot(t *testing.T) {
	r := NewRing(4096)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			r.Append([]int16{int16(i), int16(i + 1)})
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := r.Snapshot(256)
				if len(snap) > 256 {
					t.Errorf("Snapshot(256) returned %d samples", len(snap))
					return
				}
			}
		}()
	}

	wg.Wait()
}

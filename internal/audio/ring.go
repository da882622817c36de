package audio

import "sync"

// Ring is a thread-safe circular buffer of int16 PCM samples.
// When full, the oldest samples are overwritten — the audio callback must
// never block waiting for a reader.
type Ring struct {
	mu   sync.Mutex
	buf  []int16
	cap  int
	head int // index of next write position
	len  int // number of valid samples
}

// NewRing creates a Ring holding at most capacity samples.
func NewRing(capacity int) *Ring {
	return &Ring{
		buf: make([]int16, capacity),
		cap: capacity,
	}
}

// Append writes samples into the ring, dropping the oldest on overflow.
func (r *Ring) Append(samples []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// If the block alone exceeds capacity only its tail survives.
	if len(samples) >= r.cap {
		copy(r.buf, samples[len(samples)-r.cap:])
		r.head = 0
		r.len = r.cap
		return
	}

	n := copy(r.buf[r.head:], samples)
	if n < len(samples) {
		copy(r.buf, samples[n:])
	}
	r.head = (r.head + len(samples)) % r.cap
	r.len += len(samples)
	if r.len > r.cap {
		r.len = r.cap
	}
}

// Snapshot returns a newly allocated copy of the most recent
// min(Count, max) samples in chronological order. It does not consume
// the buffered samples.
func (r *Ring) Snapshot(max int) []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.len
	if max < n {
		n = max
	}
	if n <= 0 {
		return nil
	}

	out := make([]int16, n)
	start := (r.head - n + r.cap) % r.cap
	m := copy(out, r.buf[start:min(start+n, r.cap)])
	if m < n {
		copy(out[m:], r.buf)
	}
	return out
}

// Count returns the number of samples currently held.
func (r *Ring) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.len
}

// Clear discards all buffered samples.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.len = 0
}

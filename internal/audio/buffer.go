package audio

import (
	"sync"
)

// SampleRing is a thread-safe sliding window over the most recent samples.
// Unlike a FIFO it never refuses a write: once full, the oldest samples are overwritten.
type SampleRing struct {
	buffer []float32
	size   int
	write  int
	filled int
	mu     sync.RWMutex
}

// NewSampleRing creates a new ring holding the last size samples
func NewSampleRing(size int) *SampleRing {
	return &SampleRing{
		buffer: make([]float32, size),
		size:   size,
	}
}

// Write appends samples, overwriting the oldest ones when the ring is full
func (rb *SampleRing) Write(data []float32) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	// Only the tail can survive a write longer than the ring
	if len(data) > rb.size {
		data = data[len(data)-rb.size:]
	}

	for _, s := range data {
		rb.buffer[rb.write] = s
		rb.write = (rb.write + 1) % rb.size
	}

	rb.filled += len(data)
	if rb.filled > rb.size {
		rb.filled = rb.size
	}
}

// Snapshot copies the window into dst, oldest sample first.
// When fewer samples than len(dst) have been written the head of dst is zero-filled.
// Returns the number of real samples copied.
func (rb *SampleRing) Snapshot(dst []float32) int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	n := len(dst)
	if n > rb.size {
		n = rb.size
	}
	avail := rb.filled
	if avail > n {
		avail = n
	}

	pad := len(dst) - avail
	for i := 0; i < pad; i++ {
		dst[i] = 0
	}

	start := (rb.write - avail + rb.size) % rb.size
	for i := 0; i < avail; i++ {
		dst[pad+i] = rb.buffer[(start+i)%rb.size]
	}

	return avail
}

// Available returns the number of samples currently held
func (rb *SampleRing) Available() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.filled
}

// Clear clears the window
func (rb *SampleRing) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.write = 0
	rb.filled = 0
	for i := range rb.buffer {
		rb.buffer[i] = 0
	}
}

// IsEmpty returns true if nothing has been written since the last Clear
func (rb *SampleRing) IsEmpty() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.filled == 0
}

package audio

import (
	"sync"
)

// SampleRingBuffer is a thread-safe circular buffer for audio samples.
// It keeps the most recent samples and allows concurrent reads while writing.
type SampleRingBuffer struct {
	samples []float32
	head    int // Next write position
	count   int // Number of valid samples (up to capacity)
	mu      sync.RWMutex
}

// NewSampleRingBuffer creates a ring buffer with the given capacity.
func NewSampleRingBuffer(capacity int) *SampleRingBuffer {
	return &SampleRingBuffer{
		samples: make([]float32, max(capacity, 1)),
		head:    0,
		count:   0,
		mu:      sync.RWMutex{},
	}
}

// Write appends samples to the buffer, overwriting oldest if full.
func (b *SampleRingBuffer) Write(samples []float32) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.samples)

	for _, sample := range samples {
		b.samples[b.head] = sample
		b.head = (b.head + 1) % capacity

		if b.count < capacity {
			b.count++
		}
	}
}

// ReadSamples returns up to n most recent samples in chronological order.
// Returns fewer samples if the buffer contains less than n.
func (b *SampleRingBuffer) ReadSamples(n int) []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 || n <= 0 {
		return nil
	}

	n = min(n, b.count)

	result := make([]float32, n)
	capacity := len(b.samples)

	// head is the next write position, so the last n samples start at head-n
	start := (b.head - n + capacity) % capacity

	for i := 0; i < n; i++ {
		result[i] = b.samples[(start+i)%capacity]
	}

	return result
}

// Count returns the number of valid samples in the buffer.
func (b *SampleRingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.count
}

// Capacity returns the maximum number of samples the buffer holds.
func (b *SampleRingBuffer) Capacity() int {
	return len(b.samples)
}

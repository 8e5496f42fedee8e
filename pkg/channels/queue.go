package channels

import (
	"sync"
	"sync/atomic"
)

// Queue is an ordered FIFO that never blocks either side.
//
// It stands in for an unbounded channel: Send appends and returns
// immediately, TryRecv returns the oldest element or reports that the queue
// is empty. Close marks the receiving side as gone; any Send after Close
// fails with ErrChannelClosed so producers can stop.
//
// A Queue is safe for one producer and any number of consumers, although
// consumers racing on TryRecv get elements in whatever order they win the
// lock.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int // index of the oldest element
	count  int
	limit  int // 0 means unbounded
	closed bool

	dropped atomic.Int64
}

// NewQueue creates an unbounded queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// NewBoundedQueue creates a queue that holds at most limit elements. When
// full, Send discards the oldest element to make room and counts it as
// dropped. A limit <= 0 yields an unbounded queue.
func NewBoundedQueue[T any](limit int) *Queue[T] {
	if limit < 0 {
		limit = 0
	}

	return &Queue[T]{limit: limit}
}

// Send appends msg to the tail of the queue.
// Returns ErrChannelClosed if the queue has been closed.
func (q *Queue[T]) Send(msg T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrChannelClosed
	}

	if q.limit > 0 && q.count == q.limit {
		var zero T
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
		q.count--
		q.dropped.Add(1)
	}

	if q.count == len(q.items) {
		q.grow()
	}

	q.items[(q.head+q.count)%len(q.items)] = msg
	q.count++

	return nil
}

// TryRecv removes and returns the oldest element.
// ok is false when the queue is empty; it never waits for a producer.
func (q *Queue[T]) TryRecv() (msg T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return msg, false
	}

	msg = q.items[q.head]

	var zero T
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.count--

	if q.count == 0 {
		q.head = 0
	}

	return msg, true
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.count
}

// Dropped returns how many elements a bounded queue discarded on overflow.
func (q *Queue[T]) Dropped() int64 {
	return q.dropped.Load()
}

// Close marks the receiving side as gone. Queued elements remain readable.
// Safe to call multiple times.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

// grow doubles the backing slice, unrolling the ring so head lands at 0.
// Caller must hold q.mu.
func (q *Queue[T]) grow() {
	size := max(2*len(q.items), 16)
	if q.limit > 0 {
		size = min(size, q.limit)
	}

	items := make([]T, size)
	for i := 0; i < q.count; i++ {
		items[i] = q.items[(q.head+i)%len(q.items)]
	}

	q.items = items
	q.head = 0
}

package util

import (
	"sync"
	"sync/atomic"
)

// DropQueue is a bounded single-producer single-consumer FIFO queue that never blocks
// the producer: when the queue is full the oldest element is evicted to make room.
//
// The consumer does not poll. It waits on Ready(), which is signalled after every Push
// and on Close, and then drains the queue with TryPop until it reports empty.
type DropQueue[T interface{}] struct {
	mu     sync.Mutex
	buf    []T
	head   int // index of the oldest element
	size   int
	closed bool

	ready   chan struct{}
	dropped atomic.Uint64
}

// NewDropQueue creates a new drop-oldest queue holding at most capacity elements
func NewDropQueue[T interface{}](capacity int) *DropQueue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &DropQueue[T]{
		buf:   make([]T, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push appends value to the tail of the queue.
// ok is false if the queue is closed, evicted is true if the oldest element had to be dropped.
//
// Push never blocks on the consumer.
func (q *DropQueue[T]) Push(value T) (ok bool, evicted bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, false
	}

	if q.size == len(q.buf) {
		// full: overwrite the oldest slot and advance the head
		q.buf[q.head] = value
		q.head = (q.head + 1) % len(q.buf)
		evicted = true
		q.dropped.Add(1)
	} else {
		q.buf[(q.head+q.size)%len(q.buf)] = value
		q.size++
	}
	q.mu.Unlock()

	q.signal()
	return true, evicted
}

// TryPop removes and returns the oldest element. ok is false if the queue is empty.
// Elements pushed before Close are still returned after Close.
func (q *DropQueue[T]) TryPop() (value T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return value, false
	}

	var zero T
	value = q.buf[q.head]
	q.buf[q.head] = zero // help go gc
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return value, true
}

// Ready returns a channel that receives a value whenever the queue may have new
// elements or was closed. This allows the queue to be used in select statements.
func (q *DropQueue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Close closes the queue, preventing further pushes.
// Any elements already in the queue can still be popped.
func (q *DropQueue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	// Wake up the consumer if it's waiting
	q.signal()
}

// Discard drops all queued elements and returns how many were removed
func (q *DropQueue[T]) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.size
	var zero T
	for i := 0; i < q.size; i++ {
		q.buf[(q.head+i)%len(q.buf)] = zero
	}
	q.head, q.size = 0, 0
	return n
}

// IsClosed returns true if the queue is closed.
func (q *DropQueue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued elements
func (q *DropQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the maximum number of queued elements
func (q *DropQueue[T]) Cap() int {
	return len(q.buf)
}

// Dropped returns the number of elements evicted since the queue was created
func (q *DropQueue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Snapshot returns a copy of the queued elements from oldest to newest. This should only be used for debugging and tests.
func (q *DropQueue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, q.size)
	for i := 0; i < q.size; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

// signal performs a non-blocking send on the ready channel. A pending signal is enough
// since the consumer always drains the queue completely after waking up.
func (q *DropQueue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

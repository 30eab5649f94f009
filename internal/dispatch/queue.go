package dispatch

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Enqueue after Close, and by Dequeue once a closed
// queue has been drained.
var ErrClosed = errors.New("dispatch: queue closed")

// Queue is a bounded FIFO queue backed by a buffered channel.
// It is safe for concurrent use.
type Queue[T any] struct {
	mu     sync.RWMutex
	closed bool
	ch     chan T
}

// NewQueue creates a new queue with the given capacity.
// A non-positive capacity defaults to 1024.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue[T]{
		ch: make(chan T, capacity),
	}
}

// Enqueue appends v, blocking while the queue is full.
func (q *Queue[T]) Enqueue(ctx context.Context, v T) error {
	// The read lock keeps Close from closing the channel under a sender.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes and returns the oldest item, blocking until one is
// available, the queue is closed and empty, or ctx is done.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	select {
	case v, ok := <-q.ch:
		if !ok {
			var zero T
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Len returns the approximate number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Close stops accepting items. Items already queued can still be dequeued.
// Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

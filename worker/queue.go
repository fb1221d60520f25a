package worker

import (
	"errors"
	"sync"
)

var ErrQueueClosed = errors.New("worker: queue is closed")

// Queue is an unbounded FIFO shared by one or more producers and consumers.
// Every Dequeue happens under a single mutex, so exactly one consumer
// receives any given item.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	closed bool
}

func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends an item and wakes one waiting consumer. It never blocks
// on consumers.
func (q *Queue[T]) Enqueue(val T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, val)
	q.cond.Signal()
	return nil
}

// Dequeue blocks until an item is available and removes the oldest one.
// After Close it keeps returning the remaining items; ok is false once the
// queue is both closed and empty.
func (q *Queue[T]) Dequeue() (val T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) && !q.closed {
		q.cond.Wait()
	}

	if q.head == len(q.items) {
		return val, false
	}

	val = q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++

	// Compact once the consumed prefix dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	return val, true
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close rejects further Enqueue calls and wakes every waiting consumer.
// Closing twice is a no-op.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

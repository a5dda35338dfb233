// Package pqueue provides a bounded, goroutine-safe max-priority queue with
// blocking consumption.
//
// The queue is the hand-off point between many producers and a pool of
// consumers: producers call [Queue.Enqueue] and never block, consumers call
// [Queue.Dequeue] and block until an item is available. Items are delivered
// highest priority first. Items with equal priority have no defined order.
//
// Capacity is fixed at construction. A full queue rejects new items
// immediately; retrying or dropping is the caller's decision.
//
// There is no cancellation: a consumer blocked in Dequeue is only released by
// a subsequent Enqueue. Shut down consumer pools by enqueueing sentinel items.
package pqueue

import "sync"

type node[T any] struct {
	value    T
	priority int
}

// Queue is a bounded max-heap guarded by a single mutex.
//
// The zero value is not usable; create queues with [New].
type Queue[T any] struct {
	mu       sync.Mutex
	hasItems *sync.Cond
	heap     []node[T]
	capacity int
}

// New creates a queue that holds at most capacity items.
// Panics if capacity is negative.
func New[T any](capacity int) *Queue[T] {
	if capacity < 0 {
		panic("pqueue: negative capacity")
	}

	q := &Queue[T]{
		heap:     make([]node[T], 0, capacity),
		capacity: capacity,
	}
	q.hasItems = sync.NewCond(&q.mu)

	return q
}

// Enqueue adds value with the given priority. Higher priorities are dequeued
// first. Returns false without blocking if the queue is full.
func (q *Queue[T]) Enqueue(value T, priority int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == q.capacity {
		return false
	}

	q.heap = append(q.heap, node[T]{value: value, priority: priority})
	q.siftUp(len(q.heap) - 1)

	q.hasItems.Signal()

	return true
}

// Dequeue removes and returns the highest-priority item, blocking while the
// queue is empty.
func (q *Queue[T]) Dequeue() T {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Wakeups can be spurious, and another consumer may take the item that
	// triggered the signal before this one reacquires the lock.
	for len(q.heap) == 0 {
		q.hasItems.Wait()
	}

	return q.pop()
}

// TryDequeue removes and returns the highest-priority item if one is
// available. It never blocks.
func (q *Queue[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		var zero T

		return zero, false
	}

	return q.pop(), true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.heap)
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int {
	return q.capacity
}

// pop removes the root. Caller holds mu and guarantees the heap is non-empty.
func (q *Queue[T]) pop() T {
	last := len(q.heap) - 1
	result := q.heap[0].value

	q.heap[0] = q.heap[last]
	q.heap[last] = node[T]{} // drop reference for GC
	q.heap = q.heap[:last]

	q.siftDown(0)

	return result
}

func (q *Queue[T]) siftUp(index int) {
	for index > 0 {
		parent := (index - 1) / 2
		if q.heap[parent].priority >= q.heap[index].priority {
			return
		}

		q.heap[parent], q.heap[index] = q.heap[index], q.heap[parent]
		index = parent
	}
}

func (q *Queue[T]) siftDown(index int) {
	size := len(q.heap)

	for {
		left := 2*index + 1
		right := left + 1
		largest := index

		if left < size && q.heap[left].priority > q.heap[largest].priority {
			largest = left
		}

		if right < size && q.heap[right].priority > q.heap[largest].priority {
			largest = right
		}

		if largest == index {
			return
		}

		q.heap[index], q.heap[largest] = q.heap[largest], q.heap[index]
		index = largest
	}
}

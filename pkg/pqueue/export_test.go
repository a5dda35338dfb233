package pqueue

// HeapOrderedForTesting reports whether every parent's priority is >= both of
// its children's priorities.
func HeapOrderedForTesting[T any](q *Queue[T]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := 1; i < len(q.heap); i++ {
		if q.heap[(i-1)/2].priority < q.heap[i].priority {
			return false
		}
	}

	return true
}

package datastructures

var _ Container[int] = &SimpleQueue[int]{}

// SimpleQueue is a FIFO container with constant time enqueue and dequeue.
// The zero value is an empty queue.
// WARNING: not safe for concurrent use.
type SimpleQueue[E any] struct {
	linkedList[E]

	// bottom is the tail of the chain, nil iff the queue is empty.
	bottom *node[E]
}

// NewQueue creates an empty queue.
func NewQueue[E any]() *SimpleQueue[E] {
	return &SimpleQueue[E]{}
}

// Enqueue appends e to the tail.
func (q *SimpleQueue[E]) Enqueue(e E) {
	n := &node[E]{element: e}
	if q.size == 0 {
		q.top = n
	} else {
		q.bottom.next = n
	}
	q.bottom = n
	q.size++
}

// Dequeue removes and returns the head element.
func (q *SimpleQueue[E]) Dequeue() (E, error) {
	if q.size == 0 {
		var zero E
		return zero, ErrEmptyQueue
	}

	e := q.unlinkTop()
	if q.size == 0 {
		// bottom still points at the node just removed
		q.bottom = nil
	}
	return e, nil
}

// Peek returns the head element without removing it.
func (q *SimpleQueue[E]) Peek() (E, error) {
	if q.size == 0 {
		var zero E
		return zero, ErrEmptyQueue
	}
	return q.top.element, nil
}

// Add is an alias for Enqueue.
func (q *SimpleQueue[E]) Add(e E) {
	q.Enqueue(e)
}

// Get is an alias for Dequeue.
func (q *SimpleQueue[E]) Get() (E, error) {
	return q.Dequeue()
}

package datastructures

// Container is the append/remove contract shared by SimpleStack and
// SimpleQueue.
type Container[E any] interface {
	Add(e E)
	Get() (E, error)
	Size() int
	IsEmpty() bool
}

// linkedList holds the state common to stacks and queues: the element count
// and the head of a singly linked chain. top is nil iff size is 0.
type linkedList[E any] struct {
	size int
	top  *node[E]
}

// Size returns the number of elements.
func (l *linkedList[E]) Size() int {
	return l.size
}

// IsEmpty checks if there are no elements.
func (l *linkedList[E]) IsEmpty() bool {
	return l.size == 0
}

// Values returns the elements from top to the end of the chain.
func (l *linkedList[E]) Values() []E {
	values := make([]E, 0, l.size)
	for n := l.top; n != nil; n = n.next {
		values = append(values, n.element)
	}
	return values
}

// unlinkTop detaches the head node and returns its element. The caller must
// make sure the chain is not empty.
func (l *linkedList[E]) unlinkTop() E {
	n := l.top
	l.top = n.next
	l.size--
	n.next = nil
	return n.element
}

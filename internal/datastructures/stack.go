package datastructures

var _ Container[int] = &SimpleStack[int]{}

// SimpleStack is a LIFO container. The zero value is an empty stack.
// WARNING: not safe for concurrent use.
type SimpleStack[E any] struct {
	linkedList[E]
}

// NewStack creates an empty stack.
func NewStack[E any]() *SimpleStack[E] {
	return &SimpleStack[E]{}
}

// Push puts e on top of the stack.
func (s *SimpleStack[E]) Push(e E) {
	s.top = &node[E]{element: e, next: s.top}
	s.size++
}

// Pop removes and returns the top element.
func (s *SimpleStack[E]) Pop() (E, error) {
	if s.size == 0 {
		var zero E
		return zero, ErrEmptyStack
	}
	return s.unlinkTop(), nil
}

// Peek returns the top element without removing it.
func (s *SimpleStack[E]) Peek() (E, error) {
	if s.size == 0 {
		var zero E
		return zero, ErrEmptyStack
	}
	return s.top.element, nil
}

// Add is an alias for Push.
func (s *SimpleStack[E]) Add(e E) {
	s.Push(e)
}

// Get is an alias for Pop.
func (s *SimpleStack[E]) Get() (E, error) {
	return s.Pop()
}

// Clone returns an independent stack holding the same elements in the same
// order. Nodes are copied, elements are shared.
func (s *SimpleStack[E]) Clone() *SimpleStack[E] {
	c := NewStack[E]()
	var last *node[E]
	for n := s.top; n != nil; n = n.next {
		cp := &node[E]{element: n.element}
		if last == nil {
			c.top = cp
		} else {
			last.next = cp
		}
		last = cp
	}
	c.size = s.size
	return c
}

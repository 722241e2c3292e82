package datastructures

import (
	"fmt"
	"strings"
)

// DoublyLinkedList is a sequence with a single stateful cursor.
//
// The cursor is both the read position of Get/Refer and the position left
// behind by Add: appending an element moves the cursor onto it. Reset puts it
// back on the first element.
// WARNING: not safe for concurrent use.
type DoublyLinkedList[E any] struct {
	top     *dnode[E]
	bottom  *dnode[E]
	current *dnode[E]
	length  int
}

// NewDoublyLinkedList creates a list holding elems in order.
func NewDoublyLinkedList[E any](elems ...E) *DoublyLinkedList[E] {
	top := &dnode[E]{}
	bottom := &dnode[E]{prev: top}
	top.next = bottom

	l := &DoublyLinkedList[E]{
		top:     top,
		bottom:  bottom,
		current: top,
	}
	for _, e := range elems {
		l.Add(e)
	}
	return l
}

// Add appends e to the end of the list and moves the cursor onto it.
func (l *DoublyLinkedList[E]) Add(e E) {
	n := &dnode[E]{
		element: e,
		prev:    l.bottom.prev,
		next:    l.bottom,
	}
	l.bottom.prev.next = n
	l.bottom.prev = n
	l.current = n
	l.length++
}

// Get returns the element under the cursor and advances the cursor.
func (l *DoublyLinkedList[E]) Get() (E, error) {
	if !l.HasNext() {
		var zero E
		return zero, ErrOutOfBounds
	}

	e := l.current.element
	l.current = l.current.next
	return e, nil
}

// Refer returns the element under the cursor without moving it. It does no
// bounds check: a cursor resting on a sentinel yields the zero value.
func (l *DoublyLinkedList[E]) Refer() E {
	return l.current.element
}

// Remove deletes the count elements right behind the cursor, that is the
// last count elements produced by Get. It returns false and leaves the list
// untouched when fewer than count elements precede the cursor.
func (l *DoublyLinkedList[E]) Remove(count int) bool {
	if count < 0 {
		return false
	}

	first := l.current
	for i := 0; i < count; i++ {
		first = first.prev
		if first == l.top || first == nil {
			return false
		}
	}
	if count == 0 {
		return true
	}

	anchor := first.prev
	for n := first; n != l.current; {
		next := n.next
		n.prev = nil
		n.next = nil
		n = next
	}
	anchor.next = l.current
	l.current.prev = anchor
	l.length -= count
	return true
}

// Reset moves the cursor to the first element, or to the tail sentinel for
// an empty list.
func (l *DoublyLinkedList[E]) Reset() {
	l.current = l.top.next
}

// IsEmpty checks if the list holds no elements.
func (l *DoublyLinkedList[E]) IsEmpty() bool {
	return l.top.next == l.bottom
}

// HasNext checks if Get has an element to produce.
func (l *DoublyLinkedList[E]) HasNext() bool {
	return !l.IsEmpty() && l.current != l.bottom
}

// Len returns the number of elements.
func (l *DoublyLinkedList[E]) Len() int {
	return l.length
}

// Values returns all elements in order regardless of the cursor.
func (l *DoublyLinkedList[E]) Values() []E {
	values := make([]E, 0, l.length)
	for n := l.top.next; n != l.bottom; n = n.next {
		values = append(values, n.element)
	}
	return values
}

// Position returns the number of elements in front of the cursor.
func (l *DoublyLinkedList[E]) Position() int {
	if l.current == l.top {
		return 0
	}

	var pos int
	for n := l.top.next; n != l.current; n = n.next {
		pos++
	}
	return pos
}

// String renders every element as "[e1, e2, ]".
func (l *DoublyLinkedList[E]) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for n := l.top.next; n != l.bottom; n = n.next {
		fmt.Fprint(&b, n.element)
		b.WriteString(", ")
	}
	b.WriteByte(']')
	return b.String()
}

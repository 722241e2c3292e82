package datastructures

import "github.com/sirkon/errors"

// Underflow conditions reported by the containers. A failed call never
// changes the container it was made on.
const (
	ErrEmptyStack  errors.Const = "get operation on empty stack"
	ErrEmptyQueue  errors.Const = "get operation on empty queue"
	ErrOutOfBounds errors.Const = "get operation past the end of the list"
)

// IsUnderflow reports whether err is one of the container underflow errors.
func IsUnderflow(err error) bool {
	return errors.Is(err, ErrEmptyStack) ||
		errors.Is(err, ErrEmptyQueue) ||
		errors.Is(err, ErrOutOfBounds)
}

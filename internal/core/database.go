package core

import (
	"sync"

	"github.com/sirkon/errors"
	"github.com/vskvj3/linkd/internal/datastructures"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Keyspace errors
const (
	ErrKeyEmpty  errors.Const = "key cannot be empty"
	ErrNotFound  errors.Const = "key not found"
	ErrWrongType errors.Const = "WRONGTYPE operation against a key holding the wrong kind of value"
)

// Container kinds
const (
	KindStack = "stack"
	KindQueue = "queue"
	KindList  = "list"
)

type (
	stack = datastructures.SimpleStack[string]
	queue = datastructures.SimpleQueue[string]
	list  = datastructures.DoublyLinkedList[string]
)

// Database is the keyspace of named containers. The containers themselves
// are not synchronized, every access goes through mu.
type Database struct {
	mu    sync.Mutex
	store map[string]interface{}
}

// Snapshot is a read-only view of one container.
type Snapshot struct {
	Key    string   `json:"key"`
	Type   string   `json:"type"`
	Len    int      `json:"len"`
	Values []string `json:"values"`
	Cursor *int     `json:"cursor,omitempty"`
	Render string   `json:"render,omitempty"`
}

// Create a new database instance
func NewDatabase() *Database {
	return &Database{
		store: make(map[string]interface{}),
	}
}

// lookup returns the container of type C stored under key. When the key is
// absent it is created with create, or ErrNotFound is returned if create is
// nil. Must be called with db.mu held.
func lookup[C any](db *Database, key string, create func() C) (C, error) {
	var zero C
	if key == "" {
		return zero, ErrKeyEmpty
	}

	v, ok := db.store[key]
	if !ok {
		if create == nil {
			return zero, ErrNotFound
		}
		c := create()
		db.store[key] = c
		return c, nil
	}

	c, ok := v.(C)
	if !ok {
		return zero, errors.Wrap(ErrWrongType, "lookup").Str("key", key).Str("type", kindOf(v))
	}
	return c, nil
}

func kindOf(v interface{}) string {
	switch v.(type) {
	case *stack:
		return KindStack
	case *queue:
		return KindQueue
	case *list:
		return KindList
	default:
		return "unknown"
	}
}

func newList() *list {
	return datastructures.NewDoublyLinkedList[string]()
}

// Push puts value on top of the stack under key, creating the stack if needed.
func (db *Database) Push(key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, err := lookup(db, key, datastructures.NewStack[string])
	if err != nil {
		return err
	}
	s.Push(value)
	return nil
}

// Pop removes the top of the stack under key.
func (db *Database) Pop(key string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, err := lookup[*stack](db, key, nil)
	if err != nil {
		return "", err
	}
	return s.Pop()
}

// StackPeek returns the top of the stack under key.
func (db *Database) StackPeek(key string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, err := lookup[*stack](db, key, nil)
	if err != nil {
		return "", err
	}
	return s.Peek()
}

// CloneStack stores a copy of the stack under src as dest, replacing any
// stack already there.
func (db *Database) CloneStack(src, dest string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, err := lookup[*stack](db, src, nil)
	if err != nil {
		return err
	}
	if _, err := lookup(db, dest, datastructures.NewStack[string]); err != nil {
		return err
	}
	db.store[dest] = s.Clone()
	return nil
}

// Enqueue appends value to the queue under key, creating the queue if needed.
func (db *Database) Enqueue(key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	q, err := lookup(db, key, datastructures.NewQueue[string])
	if err != nil {
		return err
	}
	q.Enqueue(value)
	return nil
}

// Dequeue removes the head of the queue under key.
func (db *Database) Dequeue(key string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	q, err := lookup[*queue](db, key, nil)
	if err != nil {
		return "", err
	}
	return q.Dequeue()
}

// QueuePeek returns the head of the queue under key.
func (db *Database) QueuePeek(key string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	q, err := lookup[*queue](db, key, nil)
	if err != nil {
		return "", err
	}
	return q.Peek()
}

// ListAdd appends value to the list under key and moves its cursor onto it.
func (db *Database) ListAdd(key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	l, err := lookup(db, key, newList)
	if err != nil {
		return err
	}
	l.Add(value)
	return nil
}

// ListGet returns the element under the list cursor and advances it.
func (db *Database) ListGet(key string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	l, err := lookup[*list](db, key, nil)
	if err != nil {
		return "", err
	}
	return l.Get()
}

// ListRefer returns the element under the list cursor. ok is false when the
// cursor rests on either end of the list.
func (db *Database) ListRefer(key string) (value string, ok bool, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	l, err := lookup[*list](db, key, nil)
	if err != nil {
		return "", false, err
	}
	if !l.HasNext() {
		return "", false, nil
	}
	return l.Refer(), true, nil
}

// ListRemove drops the count elements behind the list cursor.
func (db *Database) ListRemove(key string, count int) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	l, err := lookup[*list](db, key, nil)
	if err != nil {
		return false, err
	}
	return l.Remove(count), nil
}

// ListReset rewinds the list cursor.
func (db *Database) ListReset(key string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	l, err := lookup[*list](db, key, nil)
	if err != nil {
		return err
	}
	l.Reset()
	return nil
}

// ListHasNext checks if the list cursor can produce another element.
func (db *Database) ListHasNext(key string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	l, err := lookup[*list](db, key, nil)
	if err != nil {
		return false, err
	}
	return l.HasNext(), nil
}

// ListString renders the list under key.
func (db *Database) ListString(key string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	l, err := lookup[*list](db, key, nil)
	if err != nil {
		return "", err
	}
	return l.String(), nil
}

// Len returns the element count of the container under key.
func (db *Database) Len(key string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	v, err := lookup[interface{}](db, key, nil)
	if err != nil {
		return 0, err
	}
	switch c := v.(type) {
	case *stack:
		return c.Size(), nil
	case *queue:
		return c.Size(), nil
	case *list:
		return c.Len(), nil
	}
	return 0, nil
}

// Type returns the kind of the container under key.
func (db *Database) Type(key string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	v, err := lookup[interface{}](db, key, nil)
	if err != nil {
		return "", err
	}
	return kindOf(v), nil
}

// Del removes key. It reports whether the key existed.
func (db *Database) Del(key string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.store[key]; !ok {
		return false
	}
	delete(db.store, key)
	return true
}

// Keys returns every key in sorted order.
func (db *Database) Keys() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	keys := maps.Keys(db.store)
	slices.Sort(keys)
	return keys
}

// Snapshot returns a view of the container under key.
func (db *Database) Snapshot(key string) (*Snapshot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	v, err := lookup[interface{}](db, key, nil)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Key: key, Type: kindOf(v)}
	switch c := v.(type) {
	case *stack:
		snap.Len = c.Size()
		snap.Values = c.Values()
	case *queue:
		snap.Len = c.Size()
		snap.Values = c.Values()
	case *list:
		pos := c.Position()
		snap.Len = c.Len()
		snap.Values = c.Values()
		snap.Cursor = &pos
		snap.Render = c.String()
	}
	return snap, nil
}

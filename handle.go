package cairngo

import (
	"fmt"
	"sync"
)

// Handle is an opaque address standing in for exclusive ownership of one
// boxed object. The zero Handle is never issued.
type Handle uintptr

// HandleTable boxes Go objects behind opaque integer handles so ownership
// can cross a C boundary without exposing Go pointers.
//
// A handle is created by Box, consumed exactly once by Unbox, and borrowed
// for the duration of single calls in between. A stale handle (never issued,
// or already unboxed) is reported as ErrInvalidHandle instead of reaching
// freed state.
type HandleTable[T any] struct {
	mu      sync.Mutex
	entries map[Handle]T
	next    uintptr
}

// NewHandleTable creates an empty handle table.
func NewHandleTable[T any]() *HandleTable[T] {
	return &HandleTable[T]{
		entries: make(map[Handle]T),
		next:    1,
	}
}

// Box transfers ownership of v to the table and returns its handle.
func (ht *HandleTable[T]) Box(v T) Handle {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	h := Handle(ht.next)
	ht.next++
	ht.entries[h] = v
	return h
}

// Borrow returns the boxed value for the duration of one call.
// Ownership stays with the table.
func (ht *HandleTable[T]) Borrow(h Handle) (T, error) {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	v, ok := ht.entries[h]
	if !ok {
		var zero T
		return zero, fmt.Errorf("handle %d: %w", h, ErrInvalidHandle)
	}
	return v, nil
}

// Unbox removes the value from the table and returns ownership to the
// caller. Each handle can be unboxed exactly once.
func (ht *HandleTable[T]) Unbox(h Handle) (T, error) {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	v, ok := ht.entries[h]
	if !ok {
		var zero T
		return zero, fmt.Errorf("handle %d: %w", h, ErrInvalidHandle)
	}
	delete(ht.entries, h)
	return v, nil
}

// Len returns the number of live handles.
func (ht *HandleTable[T]) Len() int {
	ht.mu.Lock()
	defer ht.mu.Unlock()
	return len(ht.entries)
}

// Package reactive provides an observable value holder. It replaces
// framework-specific ref/watch bindings with an explicit subscription API.
package reactive

import (
	"sync"

	"github.com/IvanBrykalov/pagecache/event"
)

// Value holds a T and notifies subscribers whenever it is replaced or
// mutated through Update. Safe for concurrent use.
type Value[T any] struct {
	mu      sync.RWMutex
	v       T
	changed event.Emitter[T]
}

// NewValue returns a Value holding v.
func NewValue[T any](v T) *Value[T] {
	return &Value[T]{v: v}
}

// Get returns the current value.
func (r *Value[T]) Get() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.v
}

// Set replaces the value and notifies subscribers.
func (r *Value[T]) Set(v T) {
	r.mu.Lock()
	r.v = v
	r.mu.Unlock()
	r.changed.Emit(v)
}

// Update mutates the held value in place and notifies subscribers.
// Use it for nested changes that Set would not observe, e.g. a map field.
func (r *Value[T]) Update(fn func(v *T)) {
	r.mu.Lock()
	fn(&r.v)
	v := r.v
	r.mu.Unlock()
	r.changed.Emit(v)
}

// Notify re-broadcasts the current value without changing it.
func (r *Value[T]) Notify() {
	r.changed.Emit(r.Get())
}

// Subscribe registers fn for future changes and returns its remover.
func (r *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	return r.changed.Subscribe(fn)
}

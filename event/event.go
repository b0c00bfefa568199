// Package event provides a typed publish/subscribe channel used by caches,
// views and the geometry engine to broadcast changes to their holders.
package event

import "sync"

// Emitter delivers values of type T to every subscribed listener.
// The zero value is ready to use. All methods are safe for concurrent use.
//
// Listeners run synchronously on the goroutine that calls Emit, in
// subscription order, outside of the emitter's lock; a listener may therefore
// subscribe, unsubscribe or emit again without deadlocking.
type Emitter[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []listener[T]
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it again.
// The returned function is idempotent.
func (e *Emitter[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, listener[T]{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { e.remove(id) }) }
}

// Emit calls every listener registered at the time of the call with v.
func (e *Emitter[T]) Emit(v T) {
	e.mu.Lock()
	if len(e.subs) == 0 {
		e.mu.Unlock()
		return
	}
	// snapshot: listeners added during delivery see the next Emit only
	subs := make([]listener[T], len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	for _, l := range subs {
		l.fn(v)
	}
}

// Len returns the number of registered listeners.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.subs {
		if l.id == id {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			return
		}
	}
}

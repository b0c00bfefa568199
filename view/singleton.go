package view

import (
	"context"
	"sync"

	"github.com/IvanBrykalov/pagecache/cache"
	"github.com/IvanBrykalov/pagecache/event"
)

// Singleton is a view over exactly one item.
// Its events carry Index -1 unless it proxies an instance row.
type Singleton[T any] interface {
	Get(ctx context.Context) (T, bool, error)
	Modify(v T) bool
	Remove() bool
	Modified() *event.Emitter[cache.ModifiedEvent[T]]
}

// ProxySingleton returns a view over the item of inst at index.
// After Remove the view is permanently empty.
func ProxySingleton[T any](inst cache.Instance[T], index int) Singleton[T] {
	return &proxySingleton[T]{inst: inst, index: index, enabled: true}
}

type proxySingleton[T any] struct {
	inst  cache.Instance[T]
	index int

	mu      sync.Mutex
	enabled bool

	modified event.Emitter[cache.ModifiedEvent[T]]
}

func (s *proxySingleton[T]) isEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *proxySingleton[T]) Get(ctx context.Context) (T, bool, error) {
	if !s.isEnabled() {
		var zero T
		return zero, false, nil
	}
	return s.inst.QueryOne(ctx, s.index)
}

func (s *proxySingleton[T]) Modify(v T) bool {
	if !s.isEnabled() {
		return false
	}
	old, _ := s.inst.Retrieve(s.index)
	if !s.inst.Modify(s.index, v) {
		return false
	}
	s.modified.Emit(cache.ModifiedEvent[T]{Type: cache.EventModify, Index: s.index, Value: v, OldValue: old})
	return true
}

// Remove disables the view whether or not inst accepted the removal.
func (s *proxySingleton[T]) Remove() bool {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return false
	}
	s.enabled = false
	s.mu.Unlock()

	old, _ := s.inst.Retrieve(s.index)
	if !s.inst.Remove(s.index) {
		return false
	}
	s.modified.Emit(cache.ModifiedEvent[T]{Type: cache.EventRemove, Index: s.index, OldValue: old})
	return true
}

func (s *proxySingleton[T]) Modified() *event.Emitter[cache.ModifiedEvent[T]] { return &s.modified }

// -------------------- detached singletons --------------------

// StandaloneSingleton returns a view holding v with no backing instance.
func StandaloneSingleton[T any](v T) Singleton[T] {
	return &valueSingleton[T]{v: v, present: true, invoked: true}
}

// InvokeSingleton returns a view whose value is produced by fn on the first
// Get. A failed fn leaves the view empty; fn is not retried.
func InvokeSingleton[T any](fn func(ctx context.Context) (T, bool, error)) Singleton[T] {
	return &valueSingleton[T]{invoke: fn}
}

type valueSingleton[T any] struct {
	invoke func(ctx context.Context) (T, bool, error)

	mu      sync.Mutex // held across invoke so it runs once
	v       T
	present bool
	invoked bool

	modified event.Emitter[cache.ModifiedEvent[T]]
}

func (s *valueSingleton[T]) Get(ctx context.Context) (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.invoked {
		s.invoked = true
		v, ok, err := s.invoke(ctx)
		if err != nil {
			return v, false, err
		}
		s.v, s.present = v, ok
	}
	return s.v, s.present, nil
}

func (s *valueSingleton[T]) Modify(v T) bool {
	s.mu.Lock()
	if !s.present {
		s.mu.Unlock()
		return false
	}
	old := s.v
	s.v = v
	s.mu.Unlock()

	s.modified.Emit(cache.ModifiedEvent[T]{Type: cache.EventModify, Index: -1, Value: v, OldValue: old})
	return true
}

func (s *valueSingleton[T]) Remove() bool {
	s.mu.Lock()
	if !s.present {
		s.mu.Unlock()
		return false
	}
	old := s.v
	var zero T
	s.v, s.present = zero, false
	s.mu.Unlock()

	s.modified.Emit(cache.ModifiedEvent[T]{Type: cache.EventRemove, Index: -1, OldValue: old})
	return true
}

func (s *valueSingleton[T]) Modified() *event.Emitter[cache.ModifiedEvent[T]] { return &s.modified }

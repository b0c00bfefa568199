// Package view provides index-remapping projections over a cache instance:
// full and list slices, single-row views and a debounced pagination view.
//
// Projections hold nothing but an index mapping. Reads and mutations go to
// the underlying instance; Modified on each view reports view-local indices.
package view

import (
	"context"
	"slices"
	"sync"

	"github.com/IvanBrykalov/pagecache/cache"
	"github.com/IvanBrykalov/pagecache/event"
)

// Mapper converts between instance items T and view items R.
type Mapper[T, R any] struct {
	To   func(T) R
	From func(R) T
}

// Identity returns the Mapper that passes items through unchanged.
func Identity[T any]() Mapper[T, T] {
	id := func(v T) T { return v }
	return Mapper[T, T]{To: id, From: id}
}

// Slice is a view over some of the items of an instance.
type Slice[T any] interface {
	// Get loads the item at local index.
	Get(ctx context.Context, index int) (T, bool, error)
	// Count returns the number of items in the view; 0 while unknown.
	Count() int
	Modify(index int, v T) bool
	Remove(index int) bool
	Modified() *event.Emitter[cache.ModifiedEvent[T]]
}

// -------------------- full slice --------------------

// SliceOfAll returns a passthrough view over every item of inst.
func SliceOfAll[T any](inst cache.Instance[T]) Slice[T] {
	return allSlice[T]{inst: inst}
}

type allSlice[T any] struct{ inst cache.Instance[T] }

func (s allSlice[T]) Get(ctx context.Context, index int) (T, bool, error) {
	return s.inst.QueryOne(ctx, index)
}

func (s allSlice[T]) Count() int {
	n, _ := s.inst.Count()
	return n
}

func (s allSlice[T]) Modify(index int, v T) bool { return s.inst.Modify(index, v) }
func (s allSlice[T]) Remove(index int) bool      { return s.inst.Remove(index) }

func (s allSlice[T]) Modified() *event.Emitter[cache.ModifiedEvent[T]] { return s.inst.Modified() }

// MappedSliceOfAll returns a view over every item of inst converted by m.
func MappedSliceOfAll[T, R any](inst cache.Instance[T], m Mapper[T, R]) Slice[R] {
	return &mappedAll[T, R]{inst: inst, m: m}
}

type mappedAll[T, R any] struct {
	inst     cache.Instance[T]
	m        Mapper[T, R]
	modified event.Emitter[cache.ModifiedEvent[R]]
}

func (s *mappedAll[T, R]) Get(ctx context.Context, index int) (R, bool, error) {
	v, ok, err := s.inst.QueryOne(ctx, index)
	if !ok || err != nil {
		var zero R
		return zero, false, err
	}
	return s.m.To(v), true, nil
}

func (s *mappedAll[T, R]) Count() int {
	n, _ := s.inst.Count()
	return n
}

func (s *mappedAll[T, R]) Modify(index int, v R) bool {
	old, _ := s.inst.Retrieve(index)
	if !s.inst.Modify(index, s.m.From(v)) {
		return false
	}
	s.modified.Emit(cache.ModifiedEvent[R]{Type: cache.EventModify, Index: index, Value: v, OldValue: s.m.To(old)})
	return true
}

func (s *mappedAll[T, R]) Remove(index int) bool {
	old, _ := s.inst.Retrieve(index)
	if !s.inst.Remove(index) {
		return false
	}
	s.modified.Emit(cache.ModifiedEvent[R]{Type: cache.EventRemove, Index: index, OldValue: s.m.To(old)})
	return true
}

func (s *mappedAll[T, R]) Modified() *event.Emitter[cache.ModifiedEvent[R]] { return &s.modified }

// -------------------- list slice --------------------

// SliceOfList returns a view over the items of inst at the given global
// indexes. Local index i maps to indexes[i].
func SliceOfList[T any](inst cache.Instance[T], indexes []int) Slice[T] {
	return MappedSliceOfList(inst, indexes, Identity[T]())
}

// MappedSliceOfList is SliceOfList with items converted by m.
//
// Removing local index i removes the mapped global index g from inst, drops
// i from the view and shifts every remaining entry greater than g down by
// one, matching the renumbering inst applies to itself.
func MappedSliceOfList[T, R any](inst cache.Instance[T], indexes []int, m Mapper[T, R]) Slice[R] {
	return &listSlice[T, R]{inst: inst, m: m, indexes: append([]int(nil), indexes...)}
}

type listSlice[T, R any] struct {
	inst cache.Instance[T]
	m    Mapper[T, R]

	mu      sync.Mutex
	indexes []int

	modified event.Emitter[cache.ModifiedEvent[R]]
}

// global maps a local index, reporting false when it is out of range.
func (s *listSlice[T, R]) global(index int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.indexes) {
		return 0, false
	}
	return s.indexes[index], true
}

func (s *listSlice[T, R]) Get(ctx context.Context, index int) (R, bool, error) {
	var zero R
	g, ok := s.global(index)
	if !ok {
		return zero, false, nil
	}
	v, ok, err := s.inst.QueryOne(ctx, g)
	if !ok || err != nil {
		return zero, false, err
	}
	return s.m.To(v), true, nil
}

func (s *listSlice[T, R]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.indexes)
}

func (s *listSlice[T, R]) Modify(index int, v R) bool {
	g, ok := s.global(index)
	if !ok {
		return false
	}
	old, _ := s.inst.Retrieve(g)
	if !s.inst.Modify(g, s.m.From(v)) {
		return false
	}
	s.modified.Emit(cache.ModifiedEvent[R]{Type: cache.EventModify, Index: index, Value: v, OldValue: s.m.To(old)})
	return true
}

func (s *listSlice[T, R]) Remove(index int) bool {
	g, ok := s.global(index)
	if !ok {
		return false
	}
	old, _ := s.inst.Retrieve(g)
	// not under s.mu: inst emits its own event on this goroutine
	if !s.inst.Remove(g) {
		return false
	}

	s.mu.Lock()
	drop := index
	if drop >= len(s.indexes) || s.indexes[drop] != g {
		// the mapping changed while inst was removing
		drop = slices.Index(s.indexes, g)
	}
	next := make([]int, 0, len(s.indexes))
	for i, j := range s.indexes {
		switch {
		case i == drop:
			continue
		case j > g:
			next = append(next, j-1)
		default:
			next = append(next, j)
		}
	}
	s.indexes = next
	s.mu.Unlock()

	s.modified.Emit(cache.ModifiedEvent[R]{Type: cache.EventRemove, Index: index, OldValue: s.m.To(old)})
	return true
}

func (s *listSlice[T, R]) Modified() *event.Emitter[cache.ModifiedEvent[R]] { return &s.modified }

// Indexes returns a copy of the current local to global mapping.
func Indexes[T any](s Slice[T]) []int {
	if ls, ok := s.(interface{ snapshot() []int }); ok {
		return ls.snapshot()
	}
	return nil
}

func (s *listSlice[T, R]) snapshot() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.indexes...)
}

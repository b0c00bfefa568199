// Package source provides paged data sources and fetch wrappers for the cache.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/pagecache/cache"
)

// ErrUnavailable is returned by a Memory source when a failure is injected.
var ErrUnavailable = errors.New("source: unavailable")

// Error is a fetch failure carrying a short machine readable code.
// cache.ErrorTitle includes the code in the title passed to HandleError.
type Error struct {
	Status string
	Offset int
	Limit  int
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch [%d, +%d): %v", e.Offset, e.Limit, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the failure status, e.g. "unavailable".
func (e *Error) Code() string { return e.Status }

// Memory serves an in-memory slice as a paged source.
// It is safe for concurrent use; Remove and Set mutate the backing data the
// way a server-side edit would.
type Memory[T any] struct {
	mu    sync.RWMutex
	items []T

	latency   time.Duration
	failEvery uint64
	calls     atomic.Uint64
}

// MemoryOption configures a Memory source.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	latency   time.Duration
	failEvery uint64
}

// WithLatency delays every fetch by d, or until ctx ends.
func WithLatency(d time.Duration) MemoryOption {
	return func(o *memoryOptions) { o.latency = d }
}

// WithFailEvery makes every n-th fetch fail with ErrUnavailable. 0 disables.
func WithFailEvery(n int) MemoryOption {
	return func(o *memoryOptions) {
		if n > 0 {
			o.failEvery = uint64(n)
		}
	}
}

// NewMemory returns a source over a copy of items.
func NewMemory[T any](items []T, opts ...MemoryOption) *Memory[T] {
	var o memoryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory[T]{
		items:     append([]T(nil), items...),
		latency:   o.latency,
		failEvery: o.failEvery,
	}
}

// Generate returns a source of n items produced by gen.
func Generate[T any](n int, gen func(i int) T, opts ...MemoryOption) *Memory[T] {
	items := make([]T, n)
	for i := range items {
		items[i] = gen(i)
	}
	m := NewMemory[T](nil, opts...)
	m.items = items
	return m
}

// Fetch implements cache.Fetch.
func (m *Memory[T]) Fetch(ctx context.Context, offset, limit int) (cache.Page[T], error) {
	n := m.calls.Add(1)
	if m.latency > 0 {
		t := time.NewTimer(m.latency)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return cache.Page[T]{}, ctx.Err()
		}
	}
	if m.failEvery > 0 && n%m.failEvery == 0 {
		return cache.Page[T]{}, &Error{Status: "unavailable", Offset: offset, Limit: limit, Err: ErrUnavailable}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	total := len(m.items)
	lo := min(max(offset, 0), total)
	hi := min(lo+max(limit, 0), total)
	return cache.Page[T]{Total: total, Items: append([]T(nil), m.items[lo:hi]...)}, nil
}

// Len returns the current number of items.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Calls returns the number of fetches served so far, failed ones included.
func (m *Memory[T]) Calls() uint64 { return m.calls.Load() }

// Set replaces the item at index.
func (m *Memory[T]) Set(index int, v T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.items) {
		return false
	}
	m.items[index] = v
	return true
}

// Remove deletes the item at index.
func (m *Memory[T]) Remove(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.items) {
		return false
	}
	m.items = append(m.items[:index], m.items[index+1:]...)
	return true
}

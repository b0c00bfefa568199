package singleflight

import (
	"context"
	"sync"
)

// Group coalesces concurrent loads for the same key K so that the supplied
// fn is executed at most once per flight. Every caller, the one that started
// the flight included, waits for the shared result.
//
// Concurrency notes:
//   - fn runs in its own goroutine with a context that carries the starter's
//     values but not its cancellation, so one caller giving up never fails
//     the load for the others.
//   - Waiters select on c.done. Publishing (val, err) happens-before
//     close(c.done), so reads after <-done observe the final values.
//   - The key is released before done is closed; a caller arriving after
//     completion starts a new flight.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed when val/err are published
	val  V
	err  error
}

// Do runs fn once for the given key and returns its result. Concurrent calls
// with the same key share one execution. If ctx ends first, Do returns
// ctx.Err() while fn keeps running for the remaining waiters.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func(ctx context.Context) (V, error)) (V, error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	c, ok := g.m[key]
	if !ok {
		c = &call[V]{done: make(chan struct{})}
		g.m[key] = c
		go g.run(context.WithoutCancel(ctx), key, c, fn)
	}
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// InFlight reports whether a load for key is currently running.
func (g *Group[K, V]) InFlight(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}

func (g *Group[K, V]) run(ctx context.Context, key K, c *call[V], fn func(ctx context.Context) (V, error)) {
	v, err := fn(ctx)

	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()

	// Publish result and wake waiters.
	c.val, c.err = v, err
	close(c.done)
}

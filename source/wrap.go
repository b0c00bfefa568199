package source

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/IvanBrykalov/pagecache/cache"
)

// RateLimited returns a fetch that waits for lim before every call to fetch.
// A nil limiter returns fetch unchanged.
func RateLimited[T any](fetch cache.Fetch[T], lim *rate.Limiter) cache.Fetch[T] {
	if lim == nil {
		return fetch
	}
	return func(ctx context.Context, offset, limit int) (cache.Page[T], error) {
		if err := lim.Wait(ctx); err != nil {
			return cache.Page[T]{}, err
		}
		return fetch(ctx, offset, limit)
	}
}

// Bounded returns a fetch that allows at most n calls to fetch in flight.
// n <= 0 returns fetch unchanged.
func Bounded[T any](fetch cache.Fetch[T], n int) cache.Fetch[T] {
	if n <= 0 {
		return fetch
	}
	sem := semaphore.NewWeighted(int64(n))
	return func(ctx context.Context, offset, limit int) (cache.Page[T], error) {
		if err := sem.Acquire(ctx, 1); err != nil {
			return cache.Page[T]{}, err
		}
		defer sem.Release(1)
		return fetch(ctx, offset, limit)
	}
}

package endpoint

import (
	"context"

	"github.com/IvanBrykalov/pagecache/cache"
	"github.com/IvanBrykalov/pagecache/event"
)

// proxy forwards to the endpoint's current instance at call time.
type proxy[T, K any] struct{ e *Endpoint[T, K] }

func (p *proxy[T, K]) QueryOne(ctx context.Context, index int) (T, bool, error) {
	return p.e.Instance().QueryOne(ctx, index)
}

func (p *proxy[T, K]) QueryRange(ctx context.Context, offset, limit int) ([]T, error) {
	return p.e.Instance().QueryRange(ctx, offset, limit)
}

func (p *proxy[T, K]) QueryList(ctx context.Context, indexes []int) ([]T, []bool, error) {
	return p.e.Instance().QueryList(ctx, indexes)
}

func (p *proxy[T, K]) IsRangeLoaded(offset, limit int) bool {
	return p.e.Instance().IsRangeLoaded(offset, limit)
}

func (p *proxy[T, K]) Count() (int, bool) { return p.e.Instance().Count() }

func (p *proxy[T, K]) Find(pred func(T) bool, priority *cache.Range) (int, bool) {
	return p.e.Instance().Find(pred, priority)
}

func (p *proxy[T, K]) Retrieve(index int) (T, bool) { return p.e.Instance().Retrieve(index) }

func (p *proxy[T, K]) Modify(index int, v T) bool { return p.e.Instance().Modify(index, v) }

func (p *proxy[T, K]) Remove(index int) bool { return p.e.Instance().Remove(index) }

func (p *proxy[T, K]) Modified() *event.Emitter[cache.ModifiedEvent[T]] { return &p.e.modified }

func (p *proxy[T, K]) Stats() cache.Stats { return p.e.Instance().Stats() }

var _ cache.Instance[int] = (*proxy[int, struct{}])(nil)

package view

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/IvanBrykalov/pagecache/cache"
	"github.com/IvanBrykalov/pagecache/endpoint"
	"github.com/IvanBrykalov/pagecache/event"
	"github.com/IvanBrykalov/pagecache/reactive"
)

// DefaultQueryDelay is used when PaginationOptions.QueryDelay is zero.
const DefaultQueryDelay = 250 * time.Millisecond

// Refresher is the part of an endpoint a Pagination view needs.
// *endpoint.Endpoint satisfies it.
type Refresher[T any] interface {
	Proxy() cache.Instance[T]
	Refreshed() *event.Emitter[endpoint.RefreshedEvent[T]]
}

// PaginationOptions configures a Pagination view.
type PaginationOptions struct {
	// QueryDelay debounces requests for windows that are not resident.
	// 0 => DefaultQueryDelay; negative => no delay.
	QueryDelay time.Duration
	Logger     *slog.Logger
}

// PageMetrics describes the published window.
type PageMetrics struct {
	Total      int
	TotalKnown bool
	Offset     int
	Limit      int // number of items in Result
}

// PaginationData is one published window.
type PaginationData[T any] struct {
	Metrics PageMetrics
	Result  []T
}

// Pagination turns a stream of requested windows into published data.
//
// A resident window is published immediately. Any other window is queried
// after QueryDelay, or at once while the total is unknown; a newer request
// supersedes every pending or in-flight older one.
type Pagination[T any] struct {
	src   cache.Instance[T]
	delay time.Duration
	log   *slog.Logger
	data  *reactive.Value[PaginationData[T]]

	ctx    context.Context
	cancel context.CancelFunc
	unsubs []func()

	mu      sync.Mutex
	queryID uint64
	timer   *time.Timer
	want    cache.Range // last requested window

	// publications are delivered one at a time, newest first wins
	pending    *publication[T]
	publishing bool
}

type publication[T any] struct {
	id   uint64
	data PaginationData[T]
}

// NewPagination returns a view over ep's proxy. It resets on every instance
// swap and tracks local edits to the published window.
func NewPagination[T any](ep Refresher[T], opt PaginationOptions) *Pagination[T] {
	delay := opt.QueryDelay
	switch {
	case delay == 0:
		delay = DefaultQueryDelay
	case delay < 0:
		delay = 0
	}
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pagination[T]{
		src:    ep.Proxy(),
		delay:  delay,
		log:    log.With("component", "pagination"),
		data:   reactive.NewValue(PaginationData[T]{}),
		ctx:    ctx,
		cancel: cancel,
	}
	p.unsubs = append(p.unsubs,
		ep.Refreshed().Subscribe(func(endpoint.RefreshedEvent[T]) { p.Reset() }),
		p.src.Modified().Subscribe(p.onModified),
	)
	return p
}

// Data returns the published window as an observable value.
func (p *Pagination[T]) Data() *reactive.Value[PaginationData[T]] { return p.data }

// DataUpdate requests the window [offset, offset+limit).
func (p *Pagination[T]) DataUpdate(offset, limit int) {
	p.mu.Lock()
	p.queryID++
	id := p.queryID
	p.want = cache.Range{Offset: offset, Limit: limit}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}

	if p.src.IsRangeLoaded(offset, limit) {
		p.mu.Unlock()
		p.query(id, offset, limit)
		return
	}

	delay := p.delay
	if _, known := p.src.Count(); !known {
		delay = 0
	}
	p.timer = time.AfterFunc(delay, func() { p.query(id, offset, limit) })
	p.mu.Unlock()
}

// Reset publishes an empty window and drops every pending query. It does
// not refetch; call the endpoint's Refresh for that.
func (p *Pagination[T]) Reset() {
	p.mu.Lock()
	p.queryID++
	id := p.queryID
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()
	p.publish(id, PaginationData[T]{})
}

// Close stops all pending work and detaches from the endpoint.
func (p *Pagination[T]) Close() {
	p.mu.Lock()
	p.queryID++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()
	p.cancel()
	for _, unsub := range p.unsubs {
		unsub()
	}
}

func (p *Pagination[T]) current(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return id == p.queryID
}

func (p *Pagination[T]) query(id uint64, offset, limit int) {
	if !p.current(id) {
		return
	}
	result, err := p.src.QueryRange(p.ctx, offset, limit)
	if err != nil {
		return // closed
	}
	total, known := p.src.Count()

	p.publish(id, PaginationData[T]{
		Metrics: PageMetrics{Total: total, TotalKnown: known, Offset: offset, Limit: len(result)},
		Result:  result,
	})
}

// publish sets d as the view's data if query id is still current. A call
// made while another publication is being delivered, including one from a
// Data listener, is queued and delivered by that caller once it returns, so
// listeners never observe an older window after a newer one.
func (p *Pagination[T]) publish(id uint64, d PaginationData[T]) {
	p.mu.Lock()
	if p.pending == nil || p.pending.id < id {
		p.pending = &publication[T]{id: id, data: d}
	}
	if p.publishing {
		p.mu.Unlock()
		return
	}
	p.publishing = true
	for p.pending != nil {
		next := p.pending
		p.pending = nil
		if next.id != p.queryID {
			p.log.Debug("stale page dropped", "offset", next.data.Metrics.Offset, "limit", next.data.Metrics.Limit)
			continue
		}
		p.mu.Unlock()
		p.data.Set(next.data)
		p.mu.Lock()
	}
	p.publishing = false
	p.mu.Unlock()
}

// onModified patches a modified row inside the published window in place and
// re-queries the last requested window after a removal.
func (p *Pagination[T]) onModified(ev cache.ModifiedEvent[T]) {
	switch ev.Type {
	case cache.EventModify:
		p.mu.Lock()
		id := p.queryID
		p.mu.Unlock()
		cur := p.data.Get()
		i := ev.Index - cur.Metrics.Offset
		if i < 0 || i >= len(cur.Result) {
			return
		}
		result := append([]T(nil), cur.Result...)
		result[i] = ev.Value
		p.publish(id, PaginationData[T]{Metrics: cur.Metrics, Result: result})
	case cache.EventRemove:
		p.mu.Lock()
		want := p.want
		p.mu.Unlock()
		if want.Limit > 0 {
			p.DataUpdate(want.Offset, want.Limit)
		}
	}
}

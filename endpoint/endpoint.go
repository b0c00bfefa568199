// Package endpoint owns the lifecycle of cache instances over a filtered
// query: it rebuilds the instance whenever the filter changes and exposes a
// stable proxy that always forwards to the current one.
package endpoint

import (
	"context"
	"log/slog"
	"sync"

	"github.com/IvanBrykalov/pagecache/cache"
	"github.com/IvanBrykalov/pagecache/event"
	"github.com/IvanBrykalov/pagecache/internal/deepcopy"
	"github.com/IvanBrykalov/pagecache/policy"
	"github.com/IvanBrykalov/pagecache/reactive"
)

// Request fetches one page of the result set selected by filter.
type Request[T, K any] func(ctx context.Context, offset, limit int, filter K) (cache.Page[T], error)

// Options configures an Endpoint. Request is required.
// The cache fields are passed to every instance the endpoint builds.
type Options[T, K any] struct {
	// Filter selects the result set. A change rebuilds the instance.
	// nil means a single zero-valued filter for the endpoint's lifetime.
	Filter *reactive.Value[K]

	Request Request[T, K]

	HandleError        func(title, message string)
	SegmentSize        int
	MaxSegments        int
	Policy             policy.Policy
	MaxConcurrentLoads int
	Metrics            cache.Metrics

	// Clone snapshots the filter for a new instance. Defaults to a
	// reflective deep copy.
	Clone func(K) K

	Logger *slog.Logger
}

// RefreshedEvent is emitted after the current instance was replaced.
type RefreshedEvent[T any] struct {
	// FilterUpdated is true when the swap was caused by a filter change and
	// false for an explicit Refresh.
	FilterUpdated bool
	NewInstance   cache.Instance[T]
}

type swapEvent[T any] struct {
	gen uint64
	ev  RefreshedEvent[T]
}

// Endpoint holds the current cache instance for a filtered query.
// All methods are safe for concurrent use.
type Endpoint[T, K any] struct {
	opt Options[T, K]
	log *slog.Logger

	mu      sync.Mutex
	current cache.Instance[T]
	gen     uint64 // bumped on every swap; fences forwarded events
	detach  func()
	unwatch func()
	closed  bool

	// swap events are delivered one at a time; only the newest is kept
	pending  *swapEvent[T]
	emitting bool

	proxy     proxy[T, K]
	modified  event.Emitter[cache.ModifiedEvent[T]]
	refreshed event.Emitter[RefreshedEvent[T]]
}

// New builds the first instance against the current filter and starts
// watching the filter for changes.
func New[T, K any](opt Options[T, K]) *Endpoint[T, K] {
	if opt.Request == nil {
		panic("endpoint: Options.Request must be set")
	}
	if opt.Clone == nil {
		opt.Clone = deepcopy.Copy[K]
	}
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	e := &Endpoint[T, K]{opt: opt, log: log.With("component", "endpoint")}
	e.proxy.e = e

	e.install(e.filter())
	if opt.Filter != nil {
		e.unwatch = opt.Filter.Subscribe(func(k K) { e.swap(k, true) })
	}
	return e
}

// Proxy returns a stable Instance that forwards every call to whichever
// instance is current. Its Modified stream survives swaps.
func (e *Endpoint[T, K]) Proxy() cache.Instance[T] { return &e.proxy }

// Instance returns the current instance.
func (e *Endpoint[T, K]) Instance() cache.Instance[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Refresh discards the current instance and builds a new one against the
// unchanged filter, so every segment is fetched again on demand.
func (e *Endpoint[T, K]) Refresh() { e.swap(e.filter(), false) }

// Refreshed is the stream of instance swaps.
func (e *Endpoint[T, K]) Refreshed() *event.Emitter[RefreshedEvent[T]] { return &e.refreshed }

// Modified forwards the mutation events of the current instance only.
func (e *Endpoint[T, K]) Modified() *event.Emitter[cache.ModifiedEvent[T]] { return &e.modified }

// Close stops watching the filter and detaches from the current instance.
func (e *Endpoint[T, K]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.gen++
	if e.unwatch != nil {
		e.unwatch()
	}
	if e.detach != nil {
		e.detach()
	}
}

func (e *Endpoint[T, K]) filter() K {
	if e.opt.Filter == nil {
		var zero K
		return zero
	}
	return e.opt.Filter.Get()
}

// swap installs a new instance and announces it. A swap made while another
// is being announced, including one from a Refreshed listener, is handed to
// that caller. An announcement is dropped once a newer swap or Close has
// happened, so listeners only ever see the instance that is current.
func (e *Endpoint[T, K]) swap(filter K, updated bool) {
	inst, gen, ok := e.install(filter)
	if !ok {
		return
	}
	e.log.Debug("instance replaced", "filter_updated", updated)

	e.mu.Lock()
	if e.pending == nil || e.pending.gen < gen {
		e.pending = &swapEvent[T]{gen: gen, ev: RefreshedEvent[T]{FilterUpdated: updated, NewInstance: inst}}
	}
	if e.emitting {
		e.mu.Unlock()
		return
	}
	e.emitting = true
	for e.pending != nil {
		next := e.pending
		e.pending = nil
		if next.gen != e.gen {
			continue
		}
		e.mu.Unlock()
		e.refreshed.Emit(next.ev)
		e.mu.Lock()
	}
	e.emitting = false
	e.mu.Unlock()
}

// install builds an instance over a snapshot of filter and makes it current.
func (e *Endpoint[T, K]) install(filter K) (cache.Instance[T], uint64, bool) {
	snapshot := e.opt.Clone(filter)
	request := e.opt.Request
	inst := cache.New(cache.Options[T]{
		Fetch: func(ctx context.Context, offset, limit int) (cache.Page[T], error) {
			return request(ctx, offset, limit, snapshot)
		},
		HandleError:        e.opt.HandleError,
		SegmentSize:        e.opt.SegmentSize,
		MaxSegments:        e.opt.MaxSegments,
		Policy:             e.opt.Policy,
		MaxConcurrentLoads: e.opt.MaxConcurrentLoads,
		Metrics:            e.opt.Metrics,
		Logger:             e.opt.Logger,
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, 0, false
	}
	if e.detach != nil {
		e.detach()
	}
	e.gen++
	gen := e.gen
	e.current = inst
	e.detach = inst.Modified().Subscribe(func(ev cache.ModifiedEvent[T]) {
		e.mu.Lock()
		stale := e.gen != gen
		e.mu.Unlock()
		if !stale {
			e.modified.Emit(ev)
		}
	})
	return inst, gen, true
}

// Package continuous accumulates a list by loading successive pages on demand,
// as an infinite-scroll feed does. Refresh restarts the accumulation; Next
// appends the following page. Responses that belong to a superseded
// accumulation are discarded by version fencing.
package continuous

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/IvanBrykalov/pagecache/cache"
	"github.com/IvanBrykalov/pagecache/event"
)

// DefaultInitSize is used when Options.InitSize is not positive.
const DefaultInitSize = 40

// Op identifies the kind of request a load was issued for.
type Op int

const (
	OpRefresh Op = iota
	OpNext
)

func (o Op) String() string {
	switch o {
	case OpRefresh:
		return "refresh"
	case OpNext:
		return "next"
	default:
		return "unknown"
	}
}

// Metrics exposes accumulation observability hooks.
type Metrics interface {
	// Load is recorded after every fetch with its duration and outcome.
	Load(op Op, d time.Duration, err error)
	// Discard is recorded when a completed fetch is dropped as stale.
	Discard(op Op)
}

// NoopMetrics is the default Metrics implementation.
type NoopMetrics struct{}

func (NoopMetrics) Load(Op, time.Duration, error) {}
func (NoopMetrics) Discard(Op)                    {}

var _ Metrics = NoopMetrics{}

// Options configures a Cache. Fetch is required.
type Options[T any] struct {
	Fetch cache.Fetch[T]

	// HandleError receives a title and message for every failed fetch.
	HandleError func(title, message string)

	// InitSize is the page size requested by Refresh.
	InitSize int
	// ContinueSize is the page size requested by Next; defaults to InitSize.
	ContinueSize int

	Metrics Metrics
	Logger  *slog.Logger
}

// Data is a snapshot of the accumulated list.
type Data[T any] struct {
	Total  int
	Result []T
}

// Cache is a continuous accumulation over a paged source.
// All methods are safe for concurrent use.
type Cache[T any] struct {
	opt Options[T]
	log *slog.Logger

	mu      sync.Mutex
	version uint64
	data    Data[T]
	loading bool

	changed event.Emitter[Data[T]]
}

// New returns an empty Cache. Nothing is requested until Refresh.
func New[T any](opt Options[T]) *Cache[T] {
	if opt.Fetch == nil {
		panic("continuous: Options.Fetch must be set")
	}
	if opt.InitSize <= 0 {
		opt.InitSize = DefaultInitSize
	}
	if opt.ContinueSize <= 0 {
		opt.ContinueSize = opt.InitSize
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Cache[T]{
		opt: opt,
		log: log.With("component", "continuous"),
	}
}

// Refresh restarts the accumulation with the first InitSize items. Any
// request still in flight is superseded. The returned error is the fetch
// error, if any; a superseded refresh returns nil.
func (c *Cache[T]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.version++
	v := c.version
	c.loading = true
	c.mu.Unlock()

	page, err := c.fetch(ctx, OpRefresh, 0, c.opt.InitSize)

	c.mu.Lock()
	if v != c.version {
		c.mu.Unlock()
		c.stale(OpRefresh, v)
		return nil
	}
	c.loading = false
	if err != nil {
		c.mu.Unlock()
		c.failed(ctx, OpRefresh, err)
		return err
	}
	c.data = Data[T]{Total: page.Total, Result: slices.Clone(page.Items)}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changed.Emit(snap)
	return nil
}

// Next appends the following ContinueSize items. It is a no-op while another
// request is loading.
func (c *Cache[T]) Next(ctx context.Context) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return nil
	}
	v := c.version
	offset := len(c.data.Result)
	bound := offset + c.opt.ContinueSize
	c.loading = true
	c.mu.Unlock()

	page, err := c.fetch(ctx, OpNext, offset, c.opt.ContinueSize)

	c.mu.Lock()
	if v != c.version || len(c.data.Result) > bound {
		c.mu.Unlock()
		c.stale(OpNext, v)
		return nil
	}
	c.loading = false
	if err != nil {
		c.mu.Unlock()
		c.failed(ctx, OpNext, err)
		return err
	}
	c.data.Total = page.Total
	c.data.Result = append(c.data.Result, page.Items...)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changed.Emit(snap)
	return nil
}

// Clear empties the accumulation without requesting anything and supersedes
// any request in flight.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.version++
	c.data = Data[T]{}
	c.loading = false
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changed.Emit(snap)
}

// Data returns a copy of the accumulated list.
func (c *Cache[T]) Data() Data[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Loading reports whether a request of the current accumulation is in flight.
func (c *Cache[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Changed publishes a snapshot after every Refresh, Next or Clear that
// changed the accumulation.
func (c *Cache[T]) Changed() *event.Emitter[Data[T]] { return &c.changed }

func (c *Cache[T]) fetch(ctx context.Context, op Op, offset, limit int) (cache.Page[T], error) {
	begin := time.Now()
	page, err := c.opt.Fetch(ctx, offset, limit)
	c.opt.Metrics.Load(op, time.Since(begin), err)
	if err == nil {
		c.log.Debug("page loaded", "op", op, "offset", offset, "limit", limit, "items", len(page.Items), "total", page.Total)
	}
	return page, err
}

func (c *Cache[T]) stale(op Op, v uint64) {
	c.opt.Metrics.Discard(op)
	c.log.Debug("stale response discarded", "op", op, "version", v)
}

func (c *Cache[T]) failed(ctx context.Context, op Op, err error) {
	c.log.Warn("page fetch failed", "op", op, "error", err)
	if ctx.Err() != nil {
		// the caller gave up; nothing to report
		return
	}
	if c.opt.HandleError != nil {
		c.opt.HandleError(cache.ErrorTitle(err), err.Error())
	}
}

func (c *Cache[T]) snapshotLocked() Data[T] {
	return Data[T]{Total: c.data.Total, Result: slices.Clone(c.data.Result)}
}

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/pagecache/event"
	"github.com/IvanBrykalov/pagecache/internal/singleflight"
	"github.com/IvanBrykalov/pagecache/policy"
	"github.com/IvanBrykalov/pagecache/policy/lru"
)

// cache is a segmented, lazily populated view over a paged data source.
// All methods are safe for concurrent use by multiple goroutines.
type cache[T any] struct {
	// ---- guarded by mu ----
	mu         sync.Mutex
	total      int
	totalKnown bool
	segments   map[int]*segment[T] // loading or loaded segments only
	loadedSet  *roaring.Bitmap     // ids of loaded segments
	head       *segment[T]         // MRU
	tail       *segment[T]         // LRU
	resident   int
	pol        policy.SegmentPolicy

	size int
	opt  Options[T]
	log  *slog.Logger

	// one in-flight fetch per segment id
	sf singleflight.Group[int, loadResult[T]]

	modified event.Emitter[ModifiedEvent[T]]

	loads    atomic.Uint64
	failures atomic.Uint64
}

// New constructs a cache instance with the provided Options.
// Defaults:
//   - SegmentSize <= 0 -> DefaultSegmentSize
//   - nil Metrics      -> NoopMetrics
//   - nil Policy       -> LRU
//   - nil Logger       -> discard
func New[T any](opt Options[T]) Instance[T] {
	if opt.Fetch == nil {
		panic("cache: Options.Fetch must be set")
	}
	if opt.SegmentSize <= 0 {
		opt.SegmentSize = DefaultSegmentSize
	}
	if opt.MaxSegments < 0 {
		opt.MaxSegments = 0
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New()
	}
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	c := &cache[T]{
		segments:  make(map[int]*segment[T]),
		loadedSet: roaring.New(),
		size:      opt.SegmentSize,
		opt:       opt,
		log:       log.With("component", "cache", "segment_size", opt.SegmentSize),
	}
	c.pol = opt.Policy.New(cacheHooks[T]{c: c})
	return c
}

// ---- Instance[T] implementation: async reads ----

// QueryOne returns the item at index, loading its segment on miss.
func (c *cache[T]) QueryOne(ctx context.Context, index int) (T, bool, error) {
	var zero T
	if index < 0 || !c.inRange(index) {
		return zero, false, nil
	}
	id := index / c.size
	snap, ok, err := c.load(ctx, id)
	if err != nil || !ok {
		return zero, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.itemsLocked(id, snap)
	off := index - id*c.size
	if off >= len(items) {
		return zero, false, nil
	}
	return items[off], true, nil
}

// QueryRange returns [offset, offset+limit) clipped to the known total.
func (c *cache[T]) QueryRange(ctx context.Context, offset, limit int) ([]T, error) {
	if offset < 0 {
		limit += offset
		offset = 0
	}
	end := c.clipEnd(offset + limit)
	if end <= offset {
		return []T{}, nil
	}
	first, last := offset/c.size, (end-1)/c.size

	snaps := make([][]T, last-first+1)
	oks := make([]bool, len(snaps))
	g, gctx := errgroup.WithContext(ctx)
	if c.opt.MaxConcurrentLoads > 0 {
		g.SetLimit(c.opt.MaxConcurrentLoads)
	}
	for id := first; id <= last; id++ {
		g.Go(func() error {
			items, ok, err := c.load(gctx, id)
			snaps[id-first], oks[id-first] = items, ok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.totalKnown {
		end = min(end, c.total)
	}
	out := make([]T, 0, max(end-offset, 0))
	for id := first; id <= last; id++ {
		if !oks[id-first] {
			continue
		}
		items := c.itemsLocked(id, snaps[id-first])
		start := id * c.size
		lo := max(offset, start) - start
		hi := min(end-start, len(items))
		if lo < hi {
			out = append(out, items[lo:hi]...)
		}
	}
	return out, nil
}

// QueryList returns the items at indexes; one load per distinct segment.
func (c *cache[T]) QueryList(ctx context.Context, indexes []int) ([]T, []bool, error) {
	values := make([]T, len(indexes))
	found := make([]bool, len(indexes))

	var ids []int
	seen := make(map[int]struct{})
	for _, index := range indexes {
		if index < 0 || !c.inRange(index) {
			continue
		}
		id := index / c.size
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	snaps := make(map[int][]T, len(ids))
	var snapMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if c.opt.MaxConcurrentLoads > 0 {
		g.SetLimit(c.opt.MaxConcurrentLoads)
	}
	for _, id := range ids {
		g.Go(func() error {
			items, ok, err := c.load(gctx, id)
			if ok {
				snapMu.Lock()
				snaps[id] = items
				snapMu.Unlock()
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, index := range indexes {
		if index < 0 {
			continue
		}
		id := index / c.size
		snap, ok := snaps[id]
		if !ok {
			continue
		}
		items := c.itemsLocked(id, snap)
		if off := index - id*c.size; off < len(items) {
			values[i], found[i] = items[off], true
		}
	}
	return values, found, nil
}

// IsRangeLoaded reports whether the whole range is resident.
func (c *cache[T]) IsRangeLoaded(offset, limit int) bool {
	if offset < 0 {
		limit += offset
		offset = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit <= 0 {
		return true
	}
	if !c.totalKnown {
		return false
	}
	end := min(offset+limit, c.total)
	if end <= offset {
		return true
	}
	first, last := uint32(offset/c.size), uint32((end-1)/c.size)
	n := c.loadedSet.Rank(last)
	if first > 0 {
		n -= c.loadedSet.Rank(first - 1)
	}
	return n == uint64(last-first+1)
}

// Count returns the known total.
func (c *cache[T]) Count() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total, c.totalKnown
}

// Modified returns the mutation event stream.
func (c *cache[T]) Modified() *event.Emitter[ModifiedEvent[T]] { return &c.modified }

// Stats returns a snapshot of occupancy and counters.
func (c *cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Stats{Loads: c.loads.Load(), Failures: c.failures.Load()}
	for _, s := range c.segments {
		switch s.state {
		case loaded:
			st.Segments++
			st.Items += len(s.items)
		case loading:
			st.Loading++
		}
	}
	return st
}

// -------------------- loading --------------------

// load returns the items of segment id, fetching them if the segment is not
// resident. Concurrent callers for the same id share one fetch.
// The returned slice is a snapshot; callers read it under mu.
func (c *cache[T]) load(ctx context.Context, id int) ([]T, bool, error) {
	c.mu.Lock()
	if s := c.segments[id]; s != nil && s.state == loaded {
		c.pol.OnGet(s)
		items := s.items
		c.mu.Unlock()
		c.opt.Metrics.Hit()
		return items, true, nil
	}
	c.mu.Unlock()
	c.opt.Metrics.Miss()

	res, err := c.sf.Do(ctx, id, func(ctx context.Context) (loadResult[T], error) {
		return c.fetchSegment(ctx, id), nil
	})
	if err != nil {
		return nil, false, err
	}
	return res.items, res.ok, nil
}

// loadResult is the outcome of one shared fetch.
type loadResult[T any] struct {
	items []T
	ok    bool
}

// fetchSegment performs the single fetch for segment id and installs the
// result. ok is false if the segment could not be loaded.
func (c *cache[T]) fetchSegment(ctx context.Context, id int) loadResult[T] {
	start := id * c.size

	c.mu.Lock()
	s := c.segments[id]
	// double-check after joining the flight
	if s != nil && s.state == loaded {
		items := s.items
		c.mu.Unlock()
		return loadResult[T]{items: items, ok: true}
	}
	limit := c.size
	if c.totalKnown {
		limit = min(c.size, c.total-start)
	}
	if limit <= 0 {
		c.mu.Unlock()
		return loadResult[T]{}
	}
	if s == nil {
		s = &segment[T]{id: id, start: start}
		c.segments[id] = s
	}
	s.state = loading
	c.mu.Unlock()

	begin := time.Now()
	page, err := c.opt.Fetch(ctx, start, limit)
	elapsed := time.Since(begin)
	c.opt.Metrics.Load(elapsed, err)
	c.loads.Add(1)

	c.mu.Lock()
	if err != nil {
		if c.segments[id] == s && s.state == loading {
			delete(c.segments, id)
		}
		c.mu.Unlock()
		c.failures.Add(1)
		c.log.Warn("segment fetch failed", "segment", id, "offset", start, "limit", limit, "error", err)
		if c.opt.HandleError != nil {
			c.opt.HandleError(ErrorTitle(err), err.Error())
		}
		return loadResult[T]{}
	}

	if !c.totalKnown {
		c.total, c.totalKnown = page.Total, true
	} else if page.Total != c.total {
		c.log.Debug("source total differs from cached total", "segment", id, "source_total", page.Total, "total", c.total)
	}
	expected := min(c.size, c.total-start)
	if expected <= 0 || c.segments[id] != s {
		// the segment fell beyond the end of the list while loading
		if c.segments[id] == s {
			delete(c.segments, id)
		}
		c.sizeLocked()
		c.mu.Unlock()
		return loadResult[T]{}
	}

	items := page.Items
	if len(items) < expected {
		// a resident segment always holds min(size, total-start) items
		delete(c.segments, id)
		c.sizeLocked()
		c.mu.Unlock()
		c.failures.Add(1)
		short := &ShortPageError{Offset: start, Want: expected, Got: len(items)}
		c.log.Warn("short page from source", "segment", id, "want", expected, "got", len(items))
		if c.opt.HandleError != nil {
			c.opt.HandleError(ErrorTitle(short), short.Error())
		}
		return loadResult[T]{}
	}
	s.items = slices.Clone(items[:expected])
	s.state = loaded
	c.admitLocked(s)
	out := s.items
	c.sizeLocked()
	c.mu.Unlock()

	c.log.Debug("segment loaded", "segment", id, "offset", start, "items", len(out), "duration", elapsed)
	return loadResult[T]{items: out, ok: true}
}

// -------------------- residency (mu held) --------------------

// admitLocked marks s loaded, lets the policy place it and enforces MaxSegments.
func (c *cache[T]) admitLocked(s *segment[T]) {
	c.loadedSet.Add(uint32(s.id))
	if ev := c.pol.OnAdd(s); ev != nil {
		if victim := c.segments[ev.Segment()]; victim != nil && victim != s {
			c.demoteLocked(victim, EvictPolicy)
		}
	}
	if c.opt.MaxSegments > 0 {
		for c.resident > c.opt.MaxSegments {
			victim := c.tail
			if victim == nil || victim == s {
				break
			}
			c.demoteLocked(victim, EvictCapacity)
		}
	}
}

// demoteLocked returns a loaded segment to not-loaded.
func (c *cache[T]) demoteLocked(s *segment[T], reason EvictReason) {
	c.pol.OnRemove(s)
	c.unlink(s)
	c.loadedSet.Remove(uint32(s.id))
	s.state = notLoaded
	s.items = nil
	if c.segments[s.id] == s {
		delete(c.segments, s.id)
	}
	c.opt.Metrics.Evict(reason)
}

func (c *cache[T]) sizeLocked() {
	items := 0
	for _, s := range c.segments {
		if s.state == loaded {
			items += len(s.items)
		}
	}
	c.opt.Metrics.Size(int(c.loadedSet.GetCardinality()), items)
}

// -------------------- helpers --------------------

// itemsLocked returns the current items of a resident segment, or the
// snapshot taken at load time if the segment was evicted since.
func (c *cache[T]) itemsLocked(id int, snap []T) []T {
	if s := c.segments[id]; s != nil && s.state == loaded {
		return s.items
	}
	return snap
}

// inRange reports whether index may exist given the known total.
func (c *cache[T]) inRange(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.totalKnown || index < c.total
}

// clipEnd clips an exclusive end index to the known total.
func (c *cache[T]) clipEnd(end int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.totalKnown {
		return min(end, c.total)
	}
	return end
}

// ShortPageError reports a page holding fewer items than the cached total
// implies for its range. The segment is left unloaded.
type ShortPageError struct {
	Offset, Want, Got int
}

func (e *ShortPageError) Error() string {
	return fmt.Sprintf("short page at offset %d: want %d items, got %d", e.Offset, e.Want, e.Got)
}

// ErrorTitle returns the title passed to HandleError for err. Errors that
// carry a code (a Code() string method) include it in the title.
func ErrorTitle(err error) string {
	if coded, ok := err.(interface{ Code() string }); ok && coded.Code() != "" {
		return fmt.Sprintf("Error occurred: %s", coded.Code())
	}
	return "Error occurred"
}

// -------------------- policy hooks --------------------

// cacheHooks adapts the cache's resident list operations to policy.Hooks.
type cacheHooks[T any] struct{ c *cache[T] }

func (h cacheHooks[T]) MoveToFront(x policy.Node) { h.c.moveToFront(x.(*segment[T])) }
func (h cacheHooks[T]) PushFront(x policy.Node)   { h.c.pushFront(x.(*segment[T])) }
func (h cacheHooks[T]) Remove(x policy.Node)      { h.c.unlink(x.(*segment[T])) }
func (h cacheHooks[T]) Back() policy.Node {
	if h.c.tail == nil {
		return nil
	}
	return h.c.tail
}
func (h cacheHooks[T]) Len() int { return h.c.resident }

package cache

import (
	"context"

	"github.com/IvanBrykalov/pagecache/event"
)

// Page is one response of a paged data source.
type Page[T any] struct {
	// Total is the size of the whole result set at the time of the request.
	Total int
	// Items holds at most limit items starting at the requested offset.
	Items []T
}

// Fetch requests limit items starting at offset from the data source.
// Retry and backoff, if any, belong to the implementation.
type Fetch[T any] func(ctx context.Context, offset, limit int) (Page[T], error)

// Range is a half-open index window [Offset, Offset+Limit).
type Range struct {
	Offset int
	Limit  int
}

// EventType tags a ModifiedEvent.
type EventType int

const (
	// EventModify: the value at Index was replaced.
	EventModify EventType = iota
	// EventRemove: the value at Index was removed and later indices shifted down.
	EventRemove
)

func (t EventType) String() string {
	if t == EventRemove {
		return "remove"
	}
	return "modify"
}

// ModifiedEvent describes a local mutation applied to a cache or view.
// Value is only meaningful for EventModify.
type ModifiedEvent[T any] struct {
	Type     EventType
	Index    int
	Value    T
	OldValue T
}

// Instance is a lazily populated, segment-granular cache over a paged source.
// All methods are safe for concurrent use by multiple goroutines.
//
// Query methods block until the segments they need are resident. A context
// error is returned only when ctx ends first; fetch failures are reported to
// Options.HandleError and surface as absent values.
type Instance[T any] interface {
	// QueryOne returns the item at index, loading its segment if needed.
	// ok is false if index is out of range or the load failed.
	QueryOne(ctx context.Context, index int) (v T, ok bool, err error)

	// QueryRange returns the items of [offset, offset+limit) in order, loading
	// all missing segments concurrently. Segments that failed to load
	// contribute no items.
	QueryRange(ctx context.Context, offset, limit int) ([]T, error)

	// QueryList returns the items at the given indexes. found[i] reports
	// whether values[i] is present. Each distinct segment is loaded once.
	QueryList(ctx context.Context, indexes []int) (values []T, found []bool, err error)

	// IsRangeLoaded reports whether every segment overlapping the range is
	// resident. It never triggers a load.
	IsRangeLoaded(offset, limit int) bool

	// Count returns the total number of items; ok is false until the first
	// successful fetch.
	Count() (total int, ok bool)

	// Find returns the first resident index whose item satisfies pred.
	// If priority is non-nil its range is scanned first. Never loads.
	Find(pred func(T) bool, priority *Range) (index int, ok bool)

	// Retrieve returns the resident item at index without loading.
	Retrieve(index int) (T, bool)

	// Modify replaces the resident item at index and emits EventModify.
	// Returns false if the owning segment is not loaded.
	Modify(index int, v T) bool

	// Remove deletes the resident item at index, shifting later indices down
	// by one, and emits EventRemove. Returns false if the owning segment is
	// not loaded or index is out of range.
	Remove(index int) bool

	// Modified is the stream of successful Modify/Remove events.
	Modified() *event.Emitter[ModifiedEvent[T]]

	// Stats returns a point-in-time snapshot of cache occupancy and activity.
	Stats() Stats
}

// Stats is a snapshot of cache state and counters.
type Stats struct {
	Segments int    // resident (loaded) segments
	Loading  int    // segments with a fetch in flight
	Items    int    // resident items
	Loads    uint64 // completed fetches
	Failures uint64 // failed fetches
}

package cache

import (
	"log/slog"
	"time"

	"github.com/IvanBrykalov/pagecache/policy"
)

// DefaultSegmentSize is used when Options.SegmentSize is not positive.
const DefaultSegmentSize = 100

// EvictReason explains why a loaded segment went back to not-loaded.
type EvictReason int

const (
	// EvictPolicy: chosen by the active residency policy (e.g., 2Q).
	EvictPolicy EvictReason = iota
	// EvictCapacity: removed to satisfy MaxSegments.
	EvictCapacity
	// EvictInvalidated: its tail could not be repaired after a Remove,
	// or it became empty.
	EvictInvalidated
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	// Hit is recorded when a query finds its segment resident.
	Hit()
	// Miss is recorded when a query has to wait for a load.
	Miss()
	// Load is recorded after every fetch with its duration and outcome.
	Load(d time.Duration, err error)
	Evict(reason EvictReason)
	Size(segments, items int)
}

// Options configures a cache instance. Zero values are safe except Fetch;
// defaults are applied in New():
//   - SegmentSize <= 0 => DefaultSegmentSize
//   - nil Policy       => LRU
//   - nil Metrics      => NoopMetrics
//   - nil Logger       => discard
type Options[T any] struct {
	// Fetch loads one segment from the data source. Required.
	Fetch Fetch[T]

	// HandleError receives a human readable title and message for every
	// failed fetch. Optional.
	HandleError func(title, message string)

	// SegmentSize is the cache granularity: every fetch requests one aligned
	// block of this many items.
	SegmentSize int

	// MaxSegments bounds the number of resident segments; 0 disables the bound.
	MaxSegments int

	// Policy chooses which resident segment to drop when MaxSegments is hit.
	Policy policy.Policy

	// MaxConcurrentLoads limits parallel fetches issued by one QueryRange or
	// QueryList call; 0 means no limit.
	MaxConcurrentLoads int

	Metrics Metrics
	Logger  *slog.Logger
}

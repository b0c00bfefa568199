// Package cache provides a generic, segment-granular, lazily populated cache
// over a remote paged data source, with local mutation that keeps indices
// consistent without re-fetching.
//
// Design
//
//   - Segments: the index space [0, total) is tiled by aligned blocks of
//     Options.SegmentSize items. Each block is not loaded, loading or loaded.
//     A query never fetches less than a whole segment and never fetches the
//     same segment twice concurrently (per-segment singleflight).
//
//   - Total: unknown until the first successful fetch, which records it.
//     Later fetches are clipped against the recorded total; only Remove
//     changes it afterwards.
//
//   - Failures: a failed fetch returns the segment to not loaded, is logged
//     at warn level and reported once to Options.HandleError. Waiting callers
//     observe absent values; the next query retries.
//
//   - Mutation: Modify replaces a resident item. Remove deletes one and
//     shifts every later index down by one. Resident segments after the
//     removed item are repaired in place from their successor; a segment
//     whose successor is not resident is demoted, because its last item is
//     no longer known.
//
//   - Residency: loaded segments live on an intrusive MRU↔LRU list driven by
//     a pluggable policy (LRU by default, 2Q available). Options.MaxSegments
//     bounds the resident set. A roaring bitmap of loaded segment ids answers
//     IsRangeLoaded in O(log n).
//
//   - Metrics: Options.Metrics receives Hit/Miss/Load/Evict/Size signals.
//     By default NoopMetrics is used; metrics/prom exports them to Prometheus.
//
// Basic usage
//
//	c := cache.New[string](cache.Options[string]{
//	    Fetch: func(ctx context.Context, offset, limit int) (cache.Page[string], error) {
//	        // e.g. GET /items?offset=...&limit=...
//	        return cache.Page[string]{Total: 10_000, Items: items}, nil
//	    },
//	    SegmentSize: 100,
//	})
//	rows, err := c.QueryRange(ctx, 250, 40) // loads segments 2 and 3
//
// Local edits
//
//	c.Modify(260, "renamed") // emits EventModify
//	c.Remove(255)            // emits EventRemove, Count() drops by one
//
// Bounded residency with 2Q
//
//	c := cache.New[string](cache.Options[string]{
//	    Fetch:       fetch,
//	    MaxSegments: 64,
//	    Policy:      twoq.New(16 /* A1in */, 64 /* ghosts */),
//	})
//
// Thread-safety
//
// All methods are safe for concurrent use. Events from Modified are emitted
// after the cache lock is released, on the goroutine that made the change.
package cache

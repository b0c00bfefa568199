// Package policy defines how a segmented cache chooses which loaded
// segments stay resident when the number of segments is bounded.
package policy

// Node is the minimal contract a resident segment must satisfy for a policy.
// Segment returns the segment id (start index / segment size); ids are stable
// across structural edits because segments stay aligned to their slot.
type Node interface {
	Segment() int
}

// Hooks expose O(1) list operations that a policy can use to manipulate
// the cache's intrusive MRU/LRU list of resident segments.
//
// Concurrency: all hook calls happen under the cache lock.
// Important: hooks manage only the list; the cache owns the id->segment map
// and the segment state.
type Hooks interface {
	// MoveToFront promotes the segment to MRU.
	MoveToFront(Node)
	// PushFront inserts the segment at MRU (used on admission).
	PushFront(Node)
	// Remove detaches the segment from the list.
	Remove(Node)
	// Back returns the current LRU segment (or nil if empty).
	Back() Node
	// Len returns the number of resident segments.
	Len() int
}

// SegmentPolicy is a residency policy instance bound to cache hooks.
// All methods are invoked under the cache lock.
//
// Semantics:
//   - OnAdd is called when a segment finishes loading. It may return an
//     eviction candidate; the cache demotes that segment to not-loaded and
//     subsequently calls OnRemove for it.
//   - OnGet/OnUpdate typically promote the segment (reads and local edits).
//   - OnRemove is a notification that the segment left the resident set
//     (evicted, invalidated by a structural edit, or emptied).
type SegmentPolicy interface {
	OnAdd(Node) (evict Node)
	OnGet(Node)
	OnUpdate(Node)
	OnRemove(Node)
}

// Policy is a factory that creates a policy instance bound to a cache's hooks.
type Policy interface {
	New(Hooks) SegmentPolicy
}

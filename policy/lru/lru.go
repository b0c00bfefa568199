// Package lru implements the LRU residency policy for loaded segments.
package lru

import "github.com/IvanBrykalov/pagecache/policy"

// lru is a classic "move-to-front" Least-Recently-Used policy.
// It delegates list manipulation to policy.Hooks provided by the cache.
type lru struct {
	h policy.Hooks
}

type lruPolicy struct{}

// New returns a Policy factory that constructs LRU instances.
func New() policy.Policy { return lruPolicy{} }

// New implements policy.Policy by binding cache hooks.
func (lruPolicy) New(h policy.Hooks) policy.SegmentPolicy {
	return &lru{h: h}
}

// OnAdd places a freshly loaded segment at MRU. The cache enforces
// MaxSegments itself by demoting from the back of the list.
func (p *lru) OnAdd(n policy.Node) (evict policy.Node) {
	p.h.PushFront(n)
	return nil
}

// OnGet promotes the segment to MRU.
func (p *lru) OnGet(n policy.Node) { p.h.MoveToFront(n) }

// OnUpdate promotes the segment to MRU (local edits count as use).
func (p *lru) OnUpdate(n policy.Node) { p.h.MoveToFront(n) }

// OnRemove is a no-op for pure LRU.
func (p *lru) OnRemove(_ policy.Node) {}

// Package twoq implements the 2Q residency policy for loaded segments.
package twoq

import (
	"container/list"

	"github.com/IvanBrykalov/pagecache/policy"
)

// twoQ implements the 2Q policy over segment ids.
//
// Resident queues:
//   - A1in (young queue): segments loaded once and not read since; own list
//     plus an index by segment id.
//   - Am (mature queue): every other resident segment; ordering is driven by
//     the cache hooks.
//
// Ghost A1out: ids only, tracks segments recently dropped from A1in so that a
// re-load of the same region (scrolling back) is admitted straight into Am.
//
// A sequential scroll touches every segment once, so it churns A1in and
// leaves the segments the user keeps returning to resident in Am.
//
// Concurrency: all methods are called under the cache lock.
type twoQ struct {
	h policy.Hooks

	capIn    int
	capGhost int

	// A1in: MRU at Front() -> LRU at Back(); element.Value is policy.Node
	inList *list.List
	inIdx  map[int]*list.Element

	// A1out: MRU at Front() -> LRU at Back(); element.Value is int
	ghostList *list.List
	ghostIdx  map[int]*list.Element
}

// New constructs a 2Q policy factory.
// Common choices: capIn ≈ 25% of MaxSegments; capGhost ≈ 50–100% of MaxSegments.
func New(capIn, capGhost int) policy.Policy {
	if capIn < 1 {
		capIn = 1
	}
	if capGhost < 1 {
		capGhost = 1
	}
	return twoQPolicy{capIn: capIn, capGhost: capGhost}
}

type twoQPolicy struct {
	capIn    int
	capGhost int
}

func (p twoQPolicy) New(h policy.Hooks) policy.SegmentPolicy {
	return &twoQ{
		h:         h,
		capIn:     p.capIn,
		capGhost:  p.capGhost,
		inList:    list.New(),
		inIdx:     make(map[int]*list.Element),
		ghostList: list.New(),
		ghostIdx:  make(map[int]*list.Element),
	}
}

// OnAdd admission rules:
//   - a ghost id bypasses A1in and is admitted directly to Am (MRU);
//   - otherwise the segment enters A1in (and MRU of the cache list);
//   - if A1in overflows, its LRU segment is returned for eviction.
func (q *twoQ) OnAdd(n policy.Node) (evict policy.Node) {
	id := n.Segment()
	if ge, ok := q.ghostIdx[id]; ok {
		q.ghostList.Remove(ge)
		delete(q.ghostIdx, id)
		q.h.PushFront(n)
		return nil
	}

	q.h.PushFront(n)
	q.inIdx[id] = q.inList.PushFront(n)

	if q.inList.Len() > q.capIn {
		if lruEl := q.inList.Back(); lruEl != nil {
			return lruEl.Value.(policy.Node)
		}
	}
	return nil
}

// OnGet promotes a segment out of A1in into Am and moves it to MRU.
func (q *twoQ) OnGet(n policy.Node) {
	if el, ok := q.inIdx[n.Segment()]; ok {
		q.inList.Remove(el)
		delete(q.inIdx, n.Segment())
	}
	q.h.MoveToFront(n)
}

// OnUpdate follows OnGet semantics.
func (q *twoQ) OnUpdate(n policy.Node) { q.OnGet(n) }

// OnRemove records segments leaving A1in as ghosts, respecting capGhost.
// Removals from Am do not populate ghosts.
func (q *twoQ) OnRemove(n policy.Node) {
	id := n.Segment()
	el, ok := q.inIdx[id]
	if !ok {
		return
	}
	q.inList.Remove(el)
	delete(q.inIdx, id)

	if old := q.ghostIdx[id]; old != nil {
		q.ghostList.Remove(old)
	}
	q.ghostIdx[id] = q.ghostList.PushFront(id)

	for q.ghostList.Len() > q.capGhost {
		tail := q.ghostList.Back()
		if tail == nil {
			break
		}
		delete(q.ghostIdx, tail.Value.(int))
		q.ghostList.Remove(tail)
	}
}

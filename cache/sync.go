package cache

// Synchronous operations act on resident state only and never fetch.

// Retrieve returns the resident item at index.
func (c *cache[T]) Retrieve(index int) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, off := c.residentLocked(index)
	if s == nil {
		var zero T
		return zero, false
	}
	return s.items[off], true
}

// Find scans resident segments in index order, the priority range first.
// pred runs outside the cache lock on a snapshot of resident items.
func (c *cache[T]) Find(pred func(T) bool, priority *Range) (int, bool) {
	if pred == nil {
		return 0, false
	}
	type block struct {
		start int
		items []T
	}

	c.mu.Lock()
	ids := c.loadedSet.ToArray() // ascending
	blocks := make([]block, 0, len(ids))
	for _, id := range ids {
		if s := c.segments[int(id)]; s != nil && s.state == loaded {
			blocks = append(blocks, block{start: s.start, items: append([]T(nil), s.items...)})
		}
	}
	c.mu.Unlock()

	scan := func(lo, hi int) (int, bool) {
		for _, b := range blocks {
			end := b.start + len(b.items)
			if end <= lo || b.start >= hi {
				continue
			}
			from, to := max(lo, b.start), min(hi, end)
			for i := from; i < to; i++ {
				if pred(b.items[i-b.start]) {
					return i, true
				}
			}
		}
		return 0, false
	}

	const maxIndex = int(^uint(0) >> 1)
	if priority == nil || priority.Limit <= 0 {
		return scan(0, maxIndex)
	}
	lo, hi := max(priority.Offset, 0), priority.Offset+priority.Limit
	if i, ok := scan(lo, hi); ok {
		return i, true
	}
	if i, ok := scan(0, lo); ok {
		return i, true
	}
	return scan(hi, maxIndex)
}

// Modify replaces the resident item at index and emits EventModify.
func (c *cache[T]) Modify(index int, v T) bool {
	c.mu.Lock()
	s, off := c.residentLocked(index)
	if s == nil {
		c.mu.Unlock()
		return false
	}
	old := s.items[off]
	s.items[off] = v
	c.pol.OnUpdate(s)
	c.mu.Unlock()

	c.modified.Emit(ModifiedEvent[T]{Type: EventModify, Index: index, Value: v, OldValue: old})
	return true
}

// Remove deletes the resident item at index and renumbers everything after it.
//
// Every resident segment from the owning one onwards shifts left by one: it
// drops its first item (now owned by the previous segment) and takes the
// first item of the following segment. When the following segment is not
// resident the tail cannot be repaired and the segment is demoted. The last
// segment simply shrinks, and is dropped once empty.
func (c *cache[T]) Remove(index int) bool {
	c.mu.Lock()
	owner, off := c.residentLocked(index)
	if owner == nil {
		c.mu.Unlock()
		return false
	}
	old := owner.items[off]
	lastID := (c.total - 1) / c.size

	// ascending ids of resident segments at or after the owner
	var ids []int
	for _, id := range c.loadedSet.ToArray() {
		if int(id) >= owner.id {
			ids = append(ids, int(id))
		}
	}

	// compute every new slice from the old contents before writing any
	shifted := make(map[int][]T, len(ids))
	var invalid []*segment[T]
	for _, id := range ids {
		s := c.segments[id]
		if len(s.items) != c.wantLocked(s) {
			// cannot be shifted in place
			invalid = append(invalid, s)
			continue
		}
		var items []T
		if s == owner {
			items = make([]T, 0, c.size)
			items = append(items, s.items[:off]...)
			items = append(items, s.items[off+1:]...)
		} else {
			items = append(make([]T, 0, c.size), s.items[1:]...)
		}
		if id < lastID {
			next := c.segments[id+1]
			if next == nil || next.state != loaded || len(next.items) != c.wantLocked(next) {
				invalid = append(invalid, s)
				continue
			}
			items = append(items, next.items[0])
		}
		shifted[id] = items
	}

	c.total--
	for id, items := range shifted {
		c.segments[id].items = items
	}
	for _, s := range invalid {
		c.demoteLocked(s, EvictInvalidated)
	}
	// the former last segment disappears when the total crosses a boundary
	if s := c.segments[lastID]; s != nil && s.state == loaded && len(s.items) == 0 {
		c.demoteLocked(s, EvictInvalidated)
	}
	if s := c.segments[owner.id]; s != nil && s.state == loaded {
		c.pol.OnUpdate(s)
	}
	c.sizeLocked()
	c.mu.Unlock()

	c.log.Debug("item removed", "index", index, "total", c.total, "invalidated", len(invalid))
	c.modified.Emit(ModifiedEvent[T]{Type: EventRemove, Index: index, OldValue: old})
	return true
}

// wantLocked returns the number of items segment s holds at the current total.
func (c *cache[T]) wantLocked(s *segment[T]) int {
	return max(min(c.size, c.total-s.start), 0)
}

// residentLocked returns the loaded segment holding index and the offset
// into its items, or nil if index is not resident.
func (c *cache[T]) residentLocked(index int) (*segment[T], int) {
	if index < 0 || !c.totalKnown || index >= c.total {
		return nil, 0
	}
	s := c.segments[index/c.size]
	if s == nil || s.state != loaded {
		return nil, 0
	}
	off := index - s.start
	if off >= len(s.items) {
		return nil, 0
	}
	return s, off
}

package cache

// segmentState is the load state of one aligned block of the index space.
type segmentState uint8

const (
	notLoaded segmentState = iota // absent from the segments map
	loading                       // a fetch is in flight
	loaded                        // items are resident
)

// segment is one aligned block [start, start+size) of the index space.
// It doubles as an intrusive list element of the resident set
// (head is MRU, tail is LRU) used by the residency policy.
type segment[T any] struct {
	id    int
	start int
	state segmentState

	// len(items) == min(size, total-start) while loaded
	items []T

	// Intrusive list links, only meaningful while resident.
	prev     *segment[T]
	next     *segment[T]
	resident bool
}

// Segment returns the segment id (part of policy.Node interface).
func (s *segment[T]) Segment() int { return s.id }

// -------------------- resident list (mu held) --------------------

// pushFront inserts s at MRU in O(1).
func (c *cache[T]) pushFront(s *segment[T]) {
	if s.resident {
		c.moveToFront(s)
		return
	}
	s.prev = nil
	s.next = c.head
	if c.head != nil {
		c.head.prev = s
	}
	c.head = s
	if c.tail == nil {
		c.tail = s
	}
	s.resident = true
	c.resident++
}

// moveToFront promotes s to MRU in O(1).
func (c *cache[T]) moveToFront(s *segment[T]) {
	if !s.resident || s == c.head {
		return
	}
	// detach
	if s.prev != nil {
		s.prev.next = s.next
	}
	if s.next != nil {
		s.next.prev = s.prev
	}
	if c.tail == s {
		c.tail = s.prev
	}
	// insert at head
	s.prev = nil
	s.next = c.head
	if c.head != nil {
		c.head.prev = s
	}
	c.head = s
	if c.tail == nil {
		c.tail = s
	}
}

// unlink removes s from the resident list in O(1).
func (c *cache[T]) unlink(s *segment[T]) {
	if !s.resident {
		return
	}
	if s.prev != nil {
		s.prev.next = s.next
	}
	if s.next != nil {
		s.next.prev = s.prev
	}
	if c.head == s {
		c.head = s.next
	}
	if c.tail == s {
		c.tail = s.prev
	}
	s.prev, s.next = nil, nil
	s.resident = false
	c.resident--
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/pagecache/policy/twoq"
)

// fakeSource serves "item-<i>" for i in [0, total) and records every request.
type fakeSource struct {
	mu    sync.Mutex
	total int
	calls []Range
	gate  chan struct{} // if non-nil, every fetch waits for it
	fail  atomic.Int64  // number of upcoming fetches that fail
}

func newFakeSource(total int) *fakeSource { return &fakeSource{total: total} }

func (f *fakeSource) fetch(ctx context.Context, offset, limit int) (Page[string], error) {
	f.mu.Lock()
	f.calls = append(f.calls, Range{Offset: offset, Limit: limit})
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.fail.Add(-1) >= 0 {
		return Page[string]{}, errors.New("backend unavailable")
	}
	f.fail.Store(0)

	items := make([]string, 0, limit)
	for i := offset; i < min(offset+limit, f.total); i++ {
		items = append(items, item(i))
	}
	return Page[string]{Total: f.total, Items: items}, nil
}

func (f *fakeSource) requests() []Range {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Range(nil), f.calls...)
}

func item(i int) string { return fmt.Sprintf("item-%d", i) }

func items(from, to int) []string {
	out := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, item(i))
	}
	return out
}

// Loading an index fetches exactly its aligned segment and records the total.
func TestCache_QueryOne_LoadsOwningSegment(t *testing.T) {
	t.Parallel()

	src := newFakeSource(1000)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100})

	if _, ok := c.Count(); ok {
		t.Fatal("total must be unknown before the first fetch")
	}
	v, ok, err := c.QueryOne(context.Background(), 150)
	if err != nil || !ok || v != item(150) {
		t.Fatalf("QueryOne(150) = %q ok=%v err=%v", v, ok, err)
	}
	if diff := cmp.Diff([]Range{{Offset: 100, Limit: 100}}, src.requests()); diff != "" {
		t.Fatalf("requests (-want +got):\n%s", diff)
	}
	if n, ok := c.Count(); !ok || n != 1000 {
		t.Fatalf("Count = %d ok=%v, want 1000", n, ok)
	}
	if !c.IsRangeLoaded(100, 100) {
		t.Fatal("segment 1 must be loaded")
	}

	// resident now: no second fetch
	if v, ok, _ := c.QueryOne(context.Background(), 199); !ok || v != item(199) {
		t.Fatalf("QueryOne(199) = %q ok=%v", v, ok)
	}
	if got := len(src.requests()); got != 1 {
		t.Fatalf("want 1 request, got %d", got)
	}
}

// Two concurrent queries inside one segment share a single fetch.
func TestCache_ConcurrentQueriesShareOneFetch(t *testing.T) {
	t.Parallel()

	src := newFakeSource(1000)
	src.gate = make(chan struct{})
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100})

	var eg errgroup.Group
	for _, index := range []int{5, 7} {
		eg.Go(func() error {
			v, ok, err := c.QueryOne(context.Background(), index)
			if err != nil {
				return err
			}
			if !ok || v != item(index) {
				return fmt.Errorf("QueryOne(%d) = %q ok=%v", index, v, ok)
			}
			return nil
		})
	}

	// let both callers join the flight
	for len(src.requests()) == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(src.gate)

	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]Range{{Offset: 0, Limit: 100}}, src.requests()); diff != "" {
		t.Fatalf("requests (-want +got):\n%s", diff)
	}
}

// QueryRange loads every overlapping segment and returns the exact window.
func TestCache_QueryRange_Window(t *testing.T) {
	t.Parallel()

	src := newFakeSource(250)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100, MaxConcurrentLoads: 2})

	// total unknown: the last segment is requested at full size
	got, err := c.QueryRange(context.Background(), 90, 200)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(items(90, 250), got); diff != "" {
		t.Fatalf("window (-want +got):\n%s", diff)
	}
	if n := len(src.requests()); n != 3 {
		t.Fatalf("want 3 segment fetches, got %d", n)
	}

	// fully resident, clipped to total
	got, err = c.QueryRange(context.Background(), 240, 100)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(items(240, 250), got); diff != "" {
		t.Fatalf("clipped window (-want +got):\n%s", diff)
	}
	if n := len(src.requests()); n != 3 {
		t.Fatalf("resident range must not fetch, got %d requests", n)
	}

	if got, _ := c.QueryRange(context.Background(), 300, 10); len(got) != 0 {
		t.Fatalf("range beyond total must be empty, got %v", got)
	}
}

// Once the total is known the last segment is requested with a short limit.
func TestCache_LastSegmentLimitClippedByTotal(t *testing.T) {
	t.Parallel()

	src := newFakeSource(250)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100})

	if _, ok, _ := c.QueryOne(context.Background(), 0); !ok {
		t.Fatal("QueryOne(0) must succeed")
	}
	if _, ok, _ := c.QueryOne(context.Background(), 249); !ok {
		t.Fatal("QueryOne(249) must succeed")
	}
	if _, ok, _ := c.QueryOne(context.Background(), 250); ok {
		t.Fatal("index == total must be absent")
	}
	want := []Range{{Offset: 0, Limit: 100}, {Offset: 200, Limit: 50}}
	if diff := cmp.Diff(want, src.requests()); diff != "" {
		t.Fatalf("requests (-want +got):\n%s", diff)
	}
}

// The full list read in one call equals the source.
func TestCache_RoundTrip(t *testing.T) {
	t.Parallel()

	src := newFakeSource(733)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 64})

	if _, ok, _ := c.QueryOne(context.Background(), 0); !ok {
		t.Fatal("warm-up failed")
	}
	n, _ := c.Count()
	got, err := c.QueryRange(context.Background(), 0, n)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(items(0, 733), got); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

// A failed fetch is reported, leaves the segment not loaded and is retried.
func TestCache_FetchFailureReportedAndRetried(t *testing.T) {
	t.Parallel()

	src := newFakeSource(500)
	src.fail.Store(1)

	var titles, messages []string
	c := New[string](Options[string]{
		Fetch:       src.fetch,
		SegmentSize: 100,
		HandleError: func(title, message string) {
			titles = append(titles, title)
			messages = append(messages, message)
		},
	})

	v, ok, err := c.QueryOne(context.Background(), 42)
	if err != nil {
		t.Fatalf("fetch failure must not surface as error, got %v", err)
	}
	if ok || v != "" {
		t.Fatalf("failed load must be absent, got %q ok=%v", v, ok)
	}
	if diff := cmp.Diff([]string{"Error occurred"}, titles); diff != "" {
		t.Fatalf("titles (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"backend unavailable"}, messages); diff != "" {
		t.Fatalf("messages (-want +got):\n%s", diff)
	}
	if c.IsRangeLoaded(0, 100) {
		t.Fatal("failed segment must stay not loaded")
	}
	if st := c.Stats(); st.Failures != 1 || st.Loading != 0 {
		t.Fatalf("stats after failure: %+v", st)
	}

	if v, ok, _ := c.QueryOne(context.Background(), 42); !ok || v != item(42) {
		t.Fatalf("retry = %q ok=%v", v, ok)
	}
	if n := len(src.requests()); n != 2 {
		t.Fatalf("want 2 requests, got %d", n)
	}
}

type codedError struct{ code string }

func (e codedError) Error() string { return "coded failure" }
func (e codedError) Code() string  { return e.code }

func TestErrorTitle(t *testing.T) {
	t.Parallel()

	if got := ErrorTitle(errors.New("x")); got != "Error occurred" {
		t.Fatalf("plain title = %q", got)
	}
	if got := ErrorTitle(codedError{code: "E503"}); got != "Error occurred: E503" {
		t.Fatalf("coded title = %q", got)
	}
	if got := ErrorTitle(codedError{}); got != "Error occurred" {
		t.Fatalf("empty code title = %q", got)
	}
}

// A caller that gives up gets ctx.Err(); the shared load still lands.
func TestCache_CallerCancellation(t *testing.T) {
	t.Parallel()

	src := newFakeSource(100)
	src.gate = make(chan struct{})
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 10})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := c.QueryOne(ctx, 3); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}
	if st := c.Stats(); st.Loading != 1 {
		t.Fatalf("load must still be in flight, stats %+v", st)
	}

	close(src.gate)
	v, ok, err := c.QueryOne(context.Background(), 3)
	if err != nil || !ok || v != item(3) {
		t.Fatalf("QueryOne after cancel = %q ok=%v err=%v", v, ok, err)
	}
	if n := len(src.requests()); n != 1 {
		t.Fatalf("want the original load reused, got %d requests", n)
	}
}

func TestCache_IsRangeLoadedNeverFetches(t *testing.T) {
	t.Parallel()

	src := newFakeSource(1000)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100})

	if c.IsRangeLoaded(0, 10) {
		t.Fatal("nothing is loaded yet")
	}
	if !c.IsRangeLoaded(5, 0) {
		t.Fatal("empty range is trivially loaded")
	}
	if _, err := c.QueryRange(context.Background(), 100, 200); err != nil {
		t.Fatal(err)
	}
	switch {
	case !c.IsRangeLoaded(100, 200):
		t.Fatal("segments 1..2 must be loaded")
	case !c.IsRangeLoaded(150, 100):
		t.Fatal("sub-range of loaded segments")
	case c.IsRangeLoaded(50, 100):
		t.Fatal("segment 0 is not loaded")
	case c.IsRangeLoaded(250, 100):
		t.Fatal("segment 3 is not loaded")
	}
	if n := len(src.requests()); n != 2 {
		t.Fatalf("IsRangeLoaded must not fetch, got %d requests", n)
	}
}

func TestCache_QueryList(t *testing.T) {
	t.Parallel()

	src := newFakeSource(300)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100})

	values, found, err := c.QueryList(context.Background(), []int{250, 3, -1, 7, 400})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{item(250), item(3), "", item(7), ""}, values); diff != "" {
		t.Fatalf("values (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{true, true, false, true, false}, found); diff != "" {
		t.Fatalf("found (-want +got):\n%s", diff)
	}
	// 400 is fetched as segment 4 only while the total is unknown
	if n := len(src.requests()); n > 3 {
		t.Fatalf("one load per distinct segment, got %d", n)
	}
}

// Find scans resident items only, the priority range first.
func TestCache_FindPriority(t *testing.T) {
	t.Parallel()

	src := newFakeSource(400)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100})
	if _, err := c.QueryRange(context.Background(), 0, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := c.QueryRange(context.Background(), 200, 100); err != nil {
		t.Fatal(err)
	}

	even := func(s string) bool { return s == item(10) || s == item(210) }
	if i, ok := c.Find(even, nil); !ok || i != 10 {
		t.Fatalf("Find without priority = %d ok=%v, want 10", i, ok)
	}
	if i, ok := c.Find(even, &Range{Offset: 200, Limit: 50}); !ok || i != 210 {
		t.Fatalf("Find with priority = %d ok=%v, want 210", i, ok)
	}
	if _, ok := c.Find(func(s string) bool { return s == item(150) }, nil); ok {
		t.Fatal("Find must not report items of unloaded segments")
	}
	if n := len(src.requests()); n != 2 {
		t.Fatalf("Find must not fetch, got %d requests", n)
	}
}

func TestCache_ModifyEmitsEvent(t *testing.T) {
	t.Parallel()

	src := newFakeSource(200)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100})

	var events []ModifiedEvent[string]
	c.Modified().Subscribe(func(ev ModifiedEvent[string]) { events = append(events, ev) })

	if c.Modify(5, "x") {
		t.Fatal("Modify of an unloaded segment must fail")
	}
	if _, ok, _ := c.QueryOne(context.Background(), 5); !ok {
		t.Fatal("load failed")
	}
	if !c.Modify(5, "x") {
		t.Fatal("Modify of a loaded item must succeed")
	}
	if v, ok := c.Retrieve(5); !ok || v != "x" {
		t.Fatalf("Retrieve after Modify = %q ok=%v", v, ok)
	}
	want := []ModifiedEvent[string]{{Type: EventModify, Index: 5, Value: "x", OldValue: item(5)}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

// Removing an item renumbers the resident tail across segment boundaries.
func TestCache_RemoveRenumbers(t *testing.T) {
	t.Parallel()

	src := newFakeSource(250)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100})
	if _, err := c.QueryRange(context.Background(), 0, 250); err != nil {
		t.Fatal(err)
	}

	var events []ModifiedEvent[string]
	c.Modified().Subscribe(func(ev ModifiedEvent[string]) { events = append(events, ev) })

	if !c.Remove(5) {
		t.Fatal("Remove(5) must succeed")
	}
	if n, _ := c.Count(); n != 249 {
		t.Fatalf("Count = %d, want 249", n)
	}
	ref := append(items(0, 5), items(6, 250)...)
	got, err := c.QueryRange(context.Background(), 0, 249)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ref, got); diff != "" {
		t.Fatalf("after remove (-want +got):\n%s", diff)
	}
	if n := len(src.requests()); n != 3 {
		t.Fatalf("repaired segments must not refetch, got %d requests", n)
	}
	want := []ModifiedEvent[string]{{Type: EventRemove, Index: 5, OldValue: item(5)}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

// A segment whose successor is not resident cannot be repaired.
func TestCache_RemoveDemotesUnrepairableSegment(t *testing.T) {
	t.Parallel()

	src := newFakeSource(250)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100})
	if _, err := c.QueryRange(context.Background(), 0, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := c.QueryRange(context.Background(), 200, 10); err != nil {
		t.Fatal(err)
	}

	if !c.Remove(5) {
		t.Fatal("Remove(5) must succeed")
	}
	if c.IsRangeLoaded(0, 1) {
		t.Fatal("segment 0 must be demoted: segment 1 is not resident")
	}
	// the last segment only shifts
	if v, ok := c.Retrieve(200); !ok || v != item(201) {
		t.Fatalf("Retrieve(200) = %q ok=%v, want %q", v, ok, item(201))
	}
	if v, ok := c.Retrieve(248); !ok || v != item(249) {
		t.Fatalf("Retrieve(248) = %q ok=%v, want %q", v, ok, item(249))
	}
	if _, ok := c.Retrieve(249); ok {
		t.Fatal("index 249 is beyond the new total")
	}
}

// checkSegmentLengths fails t if a resident segment does not hold exactly
// min(size, total-start) items.
func checkSegmentLengths[T any](t *testing.T, in Instance[T]) {
	t.Helper()
	c := in.(*cache[T])
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, s := range c.segments {
		if s.state != loaded {
			continue
		}
		if want := c.wantLocked(s); len(s.items) != want {
			t.Fatalf("segment %d holds %d items, want %d (total %d)", id, len(s.items), want, c.total)
		}
	}
}

// A page shorter than the cached total implies is reported and never
// becomes resident, so a later Remove has nothing malformed to shift.
func TestCache_ShortPageStaysUnloaded(t *testing.T) {
	t.Parallel()

	fetch := func(_ context.Context, offset, limit int) (Page[string], error) {
		if offset >= 20 {
			// the backend shrank after the first pages were served
			return Page[string]{Total: 20}, nil
		}
		return Page[string]{Total: 30, Items: items(offset, offset+limit)}, nil
	}
	var titles []string
	c := New[string](Options[string]{
		Fetch:       fetch,
		SegmentSize: 10,
		HandleError: func(title, _ string) { titles = append(titles, title) },
	})

	ctx := context.Background()
	for _, i := range []int{0, 15} {
		if v, ok, err := c.QueryOne(ctx, i); err != nil || !ok || v != item(i) {
			t.Fatalf("QueryOne(%d) = %q ok=%v err=%v", i, v, ok, err)
		}
	}
	if v, ok, err := c.QueryOne(ctx, 25); err != nil || ok {
		t.Fatalf("QueryOne(25) on a short page = %q ok=%v err=%v", v, ok, err)
	}
	if c.IsRangeLoaded(20, 10) {
		t.Fatal("short page must not be resident")
	}
	if diff := cmp.Diff([]string{"Error occurred"}, titles); diff != "" {
		t.Fatalf("titles (-want +got):\n%s", diff)
	}
	if st := c.Stats(); st.Segments != 2 || st.Failures != 1 {
		t.Fatalf("stats after short page: %+v", st)
	}
	checkSegmentLengths(t, c)

	if !c.Remove(3) {
		t.Fatal("Remove(3) must succeed")
	}
	checkSegmentLengths(t, c)
	if v, ok := c.Retrieve(9); !ok || v != item(10) {
		t.Fatalf("Retrieve(9) = %q ok=%v, want %q", v, ok, item(10))
	}
	if c.IsRangeLoaded(10, 1) {
		t.Fatal("segment 1 must be demoted: segment 2 is not resident")
	}
}

// A segment holding the wrong number of items is demoted instead of shifted.
func TestCache_RemoveDemotesMalformedSegment(t *testing.T) {
	t.Parallel()

	src := newFakeSource(30)
	in := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 10})
	if _, err := in.QueryRange(context.Background(), 0, 30); err != nil {
		t.Fatal(err)
	}
	c := in.(*cache[string])
	c.mu.Lock()
	c.segments[2].items = nil
	c.mu.Unlock()

	if !in.Remove(3) {
		t.Fatal("Remove(3) must succeed")
	}
	checkSegmentLengths(t, in)
	if in.IsRangeLoaded(20, 1) {
		t.Fatal("malformed segment must be demoted")
	}
	if !in.IsRangeLoaded(0, 10) {
		t.Fatal("segment 0 repairs from segment 1")
	}
}

func TestCache_RemoveEmptiesLastSegment(t *testing.T) {
	t.Parallel()

	src := newFakeSource(201)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100})
	if _, err := c.QueryRange(context.Background(), 0, 201); err != nil {
		t.Fatal(err)
	}
	if !c.Remove(200) {
		t.Fatal("Remove(200) must succeed")
	}
	if n, _ := c.Count(); n != 200 {
		t.Fatalf("Count = %d, want 200", n)
	}
	if st := c.Stats(); st.Segments != 2 || st.Items != 200 {
		t.Fatalf("stats after emptying the last segment: %+v", st)
	}
	if !c.IsRangeLoaded(0, 200) {
		t.Fatal("remaining segments must stay loaded")
	}
}

func TestCache_RemoveRejectsUnloadedOrOutOfRange(t *testing.T) {
	t.Parallel()

	src := newFakeSource(300)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100})
	if c.Remove(0) {
		t.Fatal("Remove before any load must fail")
	}
	if _, err := c.QueryRange(context.Background(), 0, 100); err != nil {
		t.Fatal(err)
	}
	for _, index := range []int{-1, 150, 300} {
		if c.Remove(index) {
			t.Fatalf("Remove(%d) must fail", index)
		}
	}
	if n, _ := c.Count(); n != 300 {
		t.Fatalf("failed removes must not change the total, got %d", n)
	}
}

type recordingMetrics struct {
	NoopMetrics
	mu     sync.Mutex
	hits   int
	misses int
	evicts map[EvictReason]int
}

func (m *recordingMetrics) Hit() {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
}

func (m *recordingMetrics) Miss() {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
}

func (m *recordingMetrics) Evict(r EvictReason) {
	m.mu.Lock()
	if m.evicts == nil {
		m.evicts = make(map[EvictReason]int)
	}
	m.evicts[r]++
	m.mu.Unlock()
}

// Deterministic LRU residency: reading segment 0 keeps it over segment 1.
func TestCache_MaxSegmentsEvictsLRU(t *testing.T) {
	t.Parallel()

	src := newFakeSource(1000)
	m := &recordingMetrics{}
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100, MaxSegments: 2, Metrics: m})
	ctx := context.Background()

	c.QueryOne(ctx, 0)   // LRU = 0
	c.QueryOne(ctx, 100) // MRU = 1
	c.QueryOne(ctx, 1)   // promote 0
	c.QueryOne(ctx, 200) // overflow -> evict 1

	switch {
	case !c.IsRangeLoaded(0, 100):
		t.Fatal("segment 0 must survive (promoted)")
	case c.IsRangeLoaded(100, 100):
		t.Fatal("segment 1 must be evicted")
	case !c.IsRangeLoaded(200, 100):
		t.Fatal("segment 2 must be resident")
	}
	if st := c.Stats(); st.Segments != 2 {
		t.Fatalf("resident segments = %d, want 2", st.Segments)
	}
	if m.hits != 1 || m.misses != 3 || m.evicts[EvictCapacity] != 1 {
		t.Fatalf("metrics hits=%d misses=%d evicts=%v", m.hits, m.misses, m.evicts)
	}
}

// Under 2Q a one-pass scroll churns A1in and keeps the re-read segment.
func TestCache_TwoQKeepsRevisitedSegment(t *testing.T) {
	t.Parallel()

	src := newFakeSource(10_000)
	c := New[string](Options[string]{
		Fetch:       src.fetch,
		SegmentSize: 10,
		MaxSegments: 8,
		Policy:      twoq.New(2, 8),
	})
	ctx := context.Background()

	c.QueryOne(ctx, 0)
	c.QueryOne(ctx, 1) // segment 0 -> Am
	for i := 1; i <= 20; i++ {
		c.QueryOne(ctx, i*10)
	}
	if !c.IsRangeLoaded(0, 10) {
		t.Fatal("revisited segment must survive a sequential scan")
	}
	if st := c.Stats(); st.Segments > 8 {
		t.Fatalf("resident segments = %d, want <= 8", st.Segments)
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	src := newFakeSource(1000)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: -5, MaxSegments: -1})
	if _, ok, _ := c.QueryOne(context.Background(), 0); !ok {
		t.Fatal("QueryOne must succeed with defaults")
	}
	want := []Range{{Offset: 0, Limit: DefaultSegmentSize}}
	if diff := cmp.Diff(want, src.requests()); diff != "" {
		t.Fatalf("requests (-want +got):\n%s", diff)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("New without Fetch must panic")
		}
	}()
	New[string](Options[string]{})
}

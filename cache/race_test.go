package cache

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"testing"
	"time"
)

// A mixed workload of concurrent queries, edits and removals over a bounded
// resident set. Should pass under `-race` without detector reports.
func TestRace_Mixed(t *testing.T) {
	src := newFakeSource(20_000)
	c := New[string](Options[string]{
		Fetch:       src.fetch,
		SegmentSize: 50,
		MaxSegments: 16,
	})
	c.Modified().Subscribe(func(ModifiedEvent[string]) {})

	workers := 4 * runtime.GOMAXPROCS(0)
	deadline := time.Now().Add(time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				n, ok := c.Count()
				if !ok {
					n = 20_000
				}
				i := r.Intn(max(n, 1))
				switch r.Intn(100) {
				case 0, 1: // ~2%: Remove
					c.Remove(i)
				case 2, 3, 4, 5, 6: // ~5%: Modify
					c.Modify(i, "x")
				case 7, 8, 9: // ~3%: Find
					c.Find(func(s string) bool { return s == "x" }, &Range{Offset: i, Limit: 100})
				case 10, 11, 12, 13, 14, 15, 16, 17, 18, 19: // ~10%: QueryRange
					c.QueryRange(ctx, i, 120)
				default: // ~80%: QueryOne / IsRangeLoaded
					if !c.IsRangeLoaded(i, 1) {
						c.QueryOne(ctx, i)
					} else {
						c.Retrieve(i)
					}
				}
			}
		}(w)
	}
	wg.Wait()

	if st := c.Stats(); st.Segments > 16 {
		t.Fatalf("resident segments = %d, want <= 16", st.Segments)
	}
}

// One hundred goroutines query the same segment concurrently.
// The fetch should run at most once (singleflight coalescing).
func TestRace_SharedSegment(t *testing.T) {
	src := newFakeSource(1000)
	c := New[string](Options[string]{Fetch: src.fetch, SegmentSize: 100})

	const goroutines = 100
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			<-start
			v, ok, err := c.QueryOne(context.Background(), i)
			if err != nil || !ok {
				t.Errorf("QueryOne(%d) ok=%v err=%v", i, ok, err)
				return
			}
			if v != item(i) {
				t.Errorf("unexpected value: %q", v)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	if got := len(src.requests()); got > 1 {
		t.Fatalf("fetch should run at most once, got %d", got)
	}
}

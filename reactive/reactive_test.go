package reactive

import "testing"

type filter struct {
	Tags map[string]bool
	Page int
}

func TestValue_SetAndUpdateNotify(t *testing.T) {
	t.Parallel()

	v := NewValue(filter{Tags: map[string]bool{}})
	var seen []filter
	un := v.Subscribe(func(f filter) { seen = append(seen, f) })

	v.Set(filter{Tags: map[string]bool{}, Page: 2})
	v.Update(func(f *filter) { f.Tags["x"] = true })
	v.Notify()

	if len(seen) != 3 {
		t.Fatalf("want 3 notifications, got %d", len(seen))
	}
	if seen[0].Page != 2 || !seen[1].Tags["x"] {
		t.Fatalf("unexpected notifications: %+v", seen)
	}

	un()
	v.Set(filter{})
	if len(seen) != 3 {
		t.Fatal("no notification after unsubscribe")
	}
	if got := v.Get(); got.Page != 0 {
		t.Fatalf("Get want zero filter, got %+v", got)
	}
}

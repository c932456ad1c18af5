package realtime

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegistry_RemoveReportsOnce(t *testing.T) {
	r := NewRegistry[int]()
	if !r.Add("a", 1) {
		t.Fatalf("first Add should succeed")
	}
	if r.Add("a", 2) {
		t.Fatalf("duplicate Add should fail")
	}
	if got := r.Snapshot(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("Snapshot=%v want [1]", got)
	}

	var removed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Remove("a") {
				removed.Add(1)
			}
		}()
	}
	wg.Wait()

	if removed.Load() != 1 {
		t.Fatalf("removed=%d want 1", removed.Load())
	}
	if r.Len() != 0 {
		t.Fatalf("Len=%d want 0", r.Len())
	}
}

func TestRegistry_EachAllowsMutation(t *testing.T) {
	r := NewRegistry[string]()
	for _, id := range []string{"a", "b", "c"} {
		r.Add(id, id)
	}

	seen := 0
	r.Each(func(v string) bool {
		seen++
		r.Remove(v)
		return true
	})
	if seen != 3 || r.Len() != 0 {
		t.Fatalf("seen=%d len=%d", seen, r.Len())
	}

	r.Add("x", "x")
	r.Add("y", "y")
	calls := 0
	r.Each(func(string) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Fatalf("Each should stop after false, calls=%d", calls)
	}
}

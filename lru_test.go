package boundcache

import (
	"errors"
	"math/rand"
	"slices"
	"testing"
)

func mustLRU[K comparable, V any](t *testing.T, capacity int) *LRU[K, V] {
	t.Helper()
	l, err := NewLRU[K, V](capacity)
	if err != nil {
		t.Fatalf("NewLRU(%d): %v", capacity, err)
	}
	return l
}

func assertKeys[K comparable, V any](t *testing.T, l *LRU[K, V], want ...K) {
	t.Helper()
	if got := l.Keys(); !slices.Equal(got, want) {
		t.Fatalf("keys (oldest->newest) = %v, want %v", got, want)
	}
}

// ==============================
// Construction
// ==============================

func TestNewRejectsInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, maxCapacity + 1} {
		_, err := NewLRU[string, int](capacity)
		if err == nil {
			t.Fatalf("capacity %d: expected error", capacity)
		}
		if !errors.Is(err, ErrInvalidCapacity) {
			t.Fatalf("capacity %d: expected ErrInvalidCapacity, got %v", capacity, err)
		}
		var ce *CapacityError
		if !errors.As(err, &ce) || ce.Capacity != capacity {
			t.Fatalf("capacity %d: expected *CapacityError, got %#v", capacity, err)
		}
	}
}

// ==============================
// Eviction order
// ==============================

// TestEvictsLeastRecentlyUsed: cap 2; put A, put B, get A, put C -> B evicted.
func TestEvictsLeastRecentlyUsed(t *testing.T) {
	l := mustLRU[string, int](t, 2)
	l.Put("A", 1)
	l.Put("B", 2)
	if v, ok := l.Get("A"); !ok || v != 1 {
		t.Fatalf("Get(A) = %v,%v", v, ok)
	}
	if !l.Put("C", 3) {
		t.Fatalf("Put(C) should report an eviction")
	}

	if l.Contains("B") {
		t.Fatalf("B should have been evicted")
	}
	if v, _ := l.Peek("A"); v != 1 {
		t.Fatalf("A = %d, want 1", v)
	}
	if v, _ := l.Peek("C"); v != 3 {
		t.Fatalf("C = %d, want 3", v)
	}
	assertKeys(t, l, "A", "C")
}

func TestCapacityOneKeepsLatest(t *testing.T) {
	l := mustLRU[string, int](t, 1)
	l.Put("A", 1)
	l.Put("B", 2)
	if l.Len() != 1 {
		t.Fatalf("Len = %d, want 1", l.Len())
	}
	if _, ok := l.Get("A"); ok {
		t.Fatalf("A should be gone")
	}
	if v, ok := l.Get("B"); !ok || v != 2 {
		t.Fatalf("Get(B) = %v,%v", v, ok)
	}
}

func TestPutExistingUpdatesAndRefreshes(t *testing.T) {
	l := mustLRU[string, int](t, 2)
	l.Put("A", 1)
	l.Put("B", 2)
	if l.Put("A", 10) {
		t.Fatalf("update must not evict")
	}
	l.Put("C", 3) // B is oldest now

	if l.Contains("B") {
		t.Fatalf("B should have been evicted after A was refreshed by Put")
	}
	if v, _ := l.Peek("A"); v != 10 {
		t.Fatalf("A = %d, want 10", v)
	}
}

func TestUntouchedEntriesEvictInInsertionOrder(t *testing.T) {
	l := mustLRU[int, int](t, 3)
	for i := 1; i <= 6; i++ {
		l.Put(i, i)
	}
	assertKeys(t, l, 4, 5, 6)
}

func TestRepeatedGetSameAsSingleGet(t *testing.T) {
	once := mustLRU[string, int](t, 3)
	twice := mustLRU[string, int](t, 3)
	for _, l := range []*LRU[string, int]{once, twice} {
		l.Put("a", 1)
		l.Put("b", 2)
		l.Put("c", 3)
	}
	once.Get("a")
	twice.Get("a")
	twice.Get("a")

	once.Put("d", 4)
	twice.Put("d", 4)
	if !slices.Equal(once.Keys(), twice.Keys()) {
		t.Fatalf("order diverged: once=%v twice=%v", once.Keys(), twice.Keys())
	}
	assertKeys(t, once, "c", "a", "d")
}

func TestPutThenGetRoundTrip(t *testing.T) {
	l := mustLRU[string, []byte](t, 4)
	v := []byte("payload")
	l.Put("k", v)
	got, ok := l.Get("k")
	if !ok || string(got) != "payload" {
		t.Fatalf("Get(k) = %q,%v", got, ok)
	}
}

// TestRandomOpsMatchReference drives random Get/Put against a slice-based model
// and checks size bound, contents and recency order after every step.
func TestRandomOpsMatchReference(t *testing.T) {
	const capacity = 5
	l := mustLRU[int, int](t, capacity)
	var model []int // oldest -> newest
	vals := map[int]int{}

	touch := func(k int) {
		if i := slices.Index(model, k); i >= 0 {
			model = slices.Delete(model, i, i+1)
		}
		model = append(model, k)
	}

	rng := rand.New(rand.NewSource(42))
	for step := 0; step < 5000; step++ {
		k := rng.Intn(12)
		if rng.Intn(2) == 0 {
			v := rng.Int()
			l.Put(k, v)
			if !slices.Contains(model, k) && len(model) == capacity {
				delete(vals, model[0])
				model = model[1:]
			}
			vals[k] = v
			touch(k)
		} else {
			got, ok := l.Get(k)
			want, wantOK := vals[k]
			if ok != wantOK || got != want {
				t.Fatalf("step %d: Get(%d) = %d,%v want %d,%v", step, k, got, ok, want, wantOK)
			}
			if ok {
				touch(k)
			}
		}
		if l.Len() > capacity {
			t.Fatalf("step %d: Len %d exceeds capacity", step, l.Len())
		}
		if !slices.Equal(l.Keys(), model) {
			t.Fatalf("step %d: keys %v want %v", step, l.Keys(), model)
		}
	}
}

// ==============================
// Secondary operations
// ==============================

func TestPeekDoesNotRefresh(t *testing.T) {
	l := mustLRU[string, int](t, 2)
	l.Put("a", 1)
	l.Put("b", 2)
	l.Peek("a")
	l.Put("c", 3)
	if l.Contains("a") {
		t.Fatalf("Peek must not refresh recency")
	}
}

func TestRemoveAndReuseSlots(t *testing.T) {
	l := mustLRU[string, int](t, 2)
	l.Put("a", 1)
	l.Put("b", 2)
	if !l.Remove("a") {
		t.Fatalf("Remove(a) = false")
	}
	if l.Remove("a") {
		t.Fatalf("second Remove(a) = true")
	}
	l.Put("c", 3)
	assertKeys(t, l, "b", "c")
	if len(l.nodes) != 3 {
		t.Fatalf("arena grew to %d slots; freed slot not reused", len(l.nodes))
	}
}

func TestOldestAndRemoveOldest(t *testing.T) {
	l := mustLRU[string, int](t, 3)
	if _, _, ok := l.Oldest(); ok {
		t.Fatalf("Oldest on empty cache")
	}
	if _, _, ok := l.RemoveOldest(); ok {
		t.Fatalf("RemoveOldest on empty cache")
	}
	l.Put("a", 1)
	l.Put("b", 2)
	l.Get("a")

	k, v, ok := l.Oldest()
	if !ok || k != "b" || v != 2 {
		t.Fatalf("Oldest = %v,%v,%v", k, v, ok)
	}
	k, _, _ = l.RemoveOldest()
	if k != "b" || l.Len() != 1 {
		t.Fatalf("RemoveOldest removed %q, Len=%d", k, l.Len())
	}
}

func TestRangeStopsEarly(t *testing.T) {
	l := mustLRU[int, int](t, 4)
	for i := 0; i < 4; i++ {
		l.Put(i, i*i)
	}
	var seen []int
	l.Range(func(k, _ int) bool {
		seen = append(seen, k)
		return k < 1
	})
	if !slices.Equal(seen, []int{0, 1}) {
		t.Fatalf("Range visited %v", seen)
	}
}

func TestPurge(t *testing.T) {
	evicted := 0
	l, err := New(Options[string, int]{Capacity: 2, OnEvict: func(string, int) { evicted++ }})
	if err != nil {
		t.Fatal(err)
	}
	l.Put("a", 1)
	l.Put("b", 2)
	l.Purge()
	if l.Len() != 0 || len(l.Keys()) != 0 {
		t.Fatalf("Purge left %v", l.Keys())
	}
	if evicted != 0 {
		t.Fatalf("Purge must not call OnEvict")
	}
	l.Put("c", 3)
	assertKeys(t, l, "c")
}

func TestResize(t *testing.T) {
	var got []string
	l, err := New(Options[string, int]{
		Capacity: 4,
		OnEvict:  func(k string, _ int) { got = append(got, k) },
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b", "c", "d"} {
		l.Put(k, 0)
	}
	n, err := l.Resize(2)
	if err != nil || n != 2 {
		t.Fatalf("Resize = %d,%v", n, err)
	}
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("evicted %v", got)
	}
	if l.Cap() != 2 {
		t.Fatalf("Cap = %d", l.Cap())
	}
	if _, err := l.Resize(0); !errors.Is(err, ErrInvalidCapacity) {
		t.Fatalf("Resize(0) err = %v", err)
	}
}

func TestResizeReportsNewCapacityToHooks(t *testing.T) {
	h := &recordingHooks{}
	l, err := New(Options[string, int]{Capacity: 3, Hooks: h})
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b", "c"} {
		l.Put(k, 0)
	}
	if _, err := l.Resize(1); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(h.reasons, []string{"resize", "resize"}) {
		t.Fatalf("hook reasons %v", h.reasons)
	}
	if !slices.Equal(h.capacities, []int{1, 1}) {
		t.Fatalf("hook capacities %v, want the resized capacity", h.capacities)
	}
}

// ==============================
// Callbacks and stats
// ==============================

type recordingHooks struct {
	NopHooks
	reasons    []string
	capacities []int
}

func (h *recordingHooks) Evicted(reason string, capacity int) {
	h.reasons = append(h.reasons, reason)
	h.capacities = append(h.capacities, capacity)
}

func TestOnEvictAndHooks(t *testing.T) {
	h := &recordingHooks{}
	var keys []string
	l, err := New(Options[string, int]{
		Capacity: 1,
		OnEvict:  func(k string, _ int) { keys = append(keys, k) },
		Hooks:    h,
	})
	if err != nil {
		t.Fatal(err)
	}
	l.Put("a", 1)
	l.Put("b", 2)
	l.Remove("b")

	if !slices.Equal(keys, []string{"a"}) {
		t.Fatalf("OnEvict keys %v", keys)
	}
	if !slices.Equal(h.reasons, []string{"capacity"}) {
		t.Fatalf("hook reasons %v", h.reasons)
	}
}

func TestStats(t *testing.T) {
	l := mustLRU[string, int](t, 1)
	l.Put("a", 1)
	l.Get("a")
	l.Get("a")
	l.Get("zz")
	l.Put("b", 2)

	s := l.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Evictions != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if r := s.HitRatio(); r < 0.66 || r > 0.67 {
		t.Fatalf("HitRatio = %f", r)
	}
	if (Stats{}).HitRatio() != 0 {
		t.Fatalf("empty HitRatio must be 0")
	}
}

package snapshot

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/unkn0wn-root/boundcache"
	c "github.com/unkn0wn-root/boundcache/codec"
)

func filled(t *testing.T, capacity int, keys ...string) *boundcache.LRU[string, int] {
	t.Helper()
	l, err := boundcache.NewLRU[string, int](capacity)
	if err != nil {
		t.Fatal(err)
	}
	for i, k := range keys {
		l.Put(k, i)
	}
	return l
}

func TestWriteReadPreservesRecency(t *testing.T) {
	src := filled(t, 4, "a", "b", "c", "d")
	src.Get("a") // order: b c d a

	var buf bytes.Buffer
	if err := Write(&buf, src, c.String{}, c.JSON[int]{}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	dst := filled(t, 4)
	n, err := Read(&buf, dst, c.String{}, c.JSON[int]{}, nil)
	if err != nil || n != 4 {
		t.Fatalf("Read = %d,%v", n, err)
	}
	if !slices.Equal(dst.Keys(), []string{"b", "c", "d", "a"}) {
		t.Fatalf("keys %v", dst.Keys())
	}
	if v, _ := dst.Peek("a"); v != 0 {
		t.Fatalf("a = %d", v)
	}
	if st := src.Stats(); st.Hits != 1 {
		t.Fatalf("Write must not touch stats: %+v", st)
	}
}

func TestReadIntoSmallerCacheKeepsNewest(t *testing.T) {
	src := filled(t, 5, "a", "b", "c", "d", "e")
	var buf bytes.Buffer
	if err := Write(&buf, src, c.String{}, c.MustCBOR[int](true)); err != nil {
		t.Fatal(err)
	}
	dst := filled(t, 2)
	if _, err := Read(&buf, dst, c.String{}, c.MustCBOR[int](true), nil); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(dst.Keys(), []string{"d", "e"}) {
		t.Fatalf("keys %v", dst.Keys())
	}
}

type dropHooks struct {
	boundcache.NopHooks
	dropped []int
}

func (h *dropHooks) SnapshotEntryDropped(i int, _ error) { h.dropped = append(h.dropped, i) }

type failOn struct {
	c.JSON[int]
	bad int
}

func (f failOn) Decode(b []byte) (int, error) {
	v, err := f.JSON.Decode(b)
	if err == nil && v == f.bad {
		return 0, errors.New("boom")
	}
	return v, err
}

func TestReadSkipsUndecodableEntries(t *testing.T) {
	src := filled(t, 3, "a", "b", "c") // values 0,1,2
	var buf bytes.Buffer
	if err := Write(&buf, src, c.String{}, c.JSON[int]{}); err != nil {
		t.Fatal(err)
	}
	h := &dropHooks{}
	dst := filled(t, 3)
	n, err := Read(&buf, dst, c.String{}, failOn{bad: 1}, h)
	if err != nil || n != 2 {
		t.Fatalf("Read = %d,%v", n, err)
	}
	if !slices.Equal(h.dropped, []int{1}) {
		t.Fatalf("dropped %v", h.dropped)
	}
	if dst.Contains("b") {
		t.Fatalf("b should have been skipped")
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	dst := filled(t, 2)
	if _, err := Read(bytes.NewReader([]byte("nope")), dst, c.String{}, c.JSON[int]{}, nil); err == nil {
		t.Fatalf("expected error")
	}
}

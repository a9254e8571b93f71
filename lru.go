package boundcache

import (
	"math"

	"github.com/unkn0wn-root/boundcache/internal/util"
)

const (
	maxCapacity = math.MaxInt32
	// preallocated arena slots; larger caches grow on demand
	preallocMax = 1 << 12

	reasonCapacity = "capacity"
	reasonResize   = "resize"
)

// node is an arena slot. Links are arena indices; 0 is the list sentinel.
type node[K comparable, V any] struct {
	key  K
	val  V
	prev int32
	next int32
}

// LRU is a fixed-capacity key/value store that evicts the least recently used
// entry when a new key is inserted at capacity. Get and Put both count as use.
//
// Entries live in a slice-backed arena linked into a doubly linked recency list
// (sentinel.next is the most recent, sentinel.prev the oldest); a map indexes
// keys to arena slots. Get, Put, Remove and eviction are O(1).
//
// LRU is not safe for concurrent use. Wrap it with Synced when it is shared.
type LRU[K comparable, V any] struct {
	nodes   []node[K, V]
	index   map[K]int32
	free    []int32
	cap     int
	onEvict func(K, V)
	hooks   Hooks

	hits      Counter
	misses    Counter
	evictions Counter
}

func newLRU[K comparable, V any](opts Options[K, V]) (*LRU[K, V], error) {
	if err := validCapacity(opts.Capacity); err != nil {
		return nil, err
	}
	n := min(opts.Capacity, preallocMax)
	return &LRU[K, V]{
		nodes:   make([]node[K, V], 1, n+1),
		index:   make(map[K]int32, n),
		cap:     opts.Capacity,
		onEvict: opts.OnEvict,
		hooks:   util.Coalesce[Hooks](opts.Hooks, NopHooks{}),
	}, nil
}

func validCapacity(n int) error {
	if n < 1 || n > maxCapacity {
		return &CapacityError{Capacity: n}
	}
	return nil
}

// Put inserts or updates key and marks it most recently used.
// If key is new and the cache is full, the oldest entry is evicted first.
// Reports whether an eviction happened.
func (l *LRU[K, V]) Put(key K, value V) (evicted bool) {
	if i, ok := l.index[key]; ok {
		l.nodes[i].val = value
		l.moveToFront(i)
		return false
	}
	if len(l.index) >= l.cap {
		l.evictOldest(reasonCapacity)
		evicted = true
	}
	i := l.alloc(key, value)
	l.index[key] = i
	l.pushFront(i)
	return evicted
}

// Get returns the value for key and marks it most recently used.
func (l *LRU[K, V]) Get(key K) (V, bool) {
	i, ok := l.index[key]
	if !ok {
		l.misses.IncrementAndGet()
		var zero V
		return zero, false
	}
	l.hits.IncrementAndGet()
	l.moveToFront(i)
	return l.nodes[i].val, true
}

// Peek returns the value for key without touching recency or stats.
func (l *LRU[K, V]) Peek(key K) (V, bool) {
	i, ok := l.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	return l.nodes[i].val, true
}

// Contains reports whether key is present without touching recency.
func (l *LRU[K, V]) Contains(key K) bool {
	_, ok := l.index[key]
	return ok
}

// Remove deletes key. OnEvict is not called.
func (l *LRU[K, V]) Remove(key K) bool {
	i, ok := l.index[key]
	if !ok {
		return false
	}
	l.removeNode(i)
	return true
}

// RemoveOldest deletes and returns the least recently used entry.
// OnEvict is not called.
func (l *LRU[K, V]) RemoveOldest() (K, V, bool) {
	i := l.nodes[0].prev
	if i == 0 {
		var (
			zk K
			zv V
		)
		return zk, zv, false
	}
	k, v := l.nodes[i].key, l.nodes[i].val
	l.removeNode(i)
	return k, v, true
}

// Oldest returns the least recently used entry without removing it.
func (l *LRU[K, V]) Oldest() (K, V, bool) {
	i := l.nodes[0].prev
	if i == 0 {
		var (
			zk K
			zv V
		)
		return zk, zv, false
	}
	return l.nodes[i].key, l.nodes[i].val, true
}

// Keys returns the keys from oldest to newest.
func (l *LRU[K, V]) Keys() []K {
	out := make([]K, 0, len(l.index))
	for i := l.nodes[0].prev; i != 0; i = l.nodes[i].prev {
		out = append(out, l.nodes[i].key)
	}
	return out
}

// Range calls fn for every entry from oldest to newest until fn returns false.
// Recency is not touched. fn must not mutate the cache.
func (l *LRU[K, V]) Range(fn func(key K, value V) bool) {
	for i := l.nodes[0].prev; i != 0; i = l.nodes[i].prev {
		if !fn(l.nodes[i].key, l.nodes[i].val) {
			return
		}
	}
}

func (l *LRU[K, V]) Len() int { return len(l.index) }
func (l *LRU[K, V]) Cap() int { return l.cap }

// Purge drops every entry. OnEvict is not called; stats are kept.
func (l *LRU[K, V]) Purge() {
	clear(l.nodes)
	l.nodes = l.nodes[:1]
	clear(l.index)
	l.free = l.free[:0]
}

// Resize changes the capacity, evicting oldest entries until the cache fits.
// Returns the number of entries evicted.
func (l *LRU[K, V]) Resize(capacity int) (int, error) {
	if err := validCapacity(capacity); err != nil {
		return 0, err
	}
	l.cap = capacity
	evicted := 0
	for len(l.index) > capacity {
		l.evictOldest(reasonResize)
		evicted++
	}
	return evicted, nil
}

// Stats returns a snapshot of the hit, miss and eviction counters.
// It is safe to call concurrently with other methods.
func (l *LRU[K, V]) Stats() Stats {
	return Stats{
		Hits:      l.hits.Get(),
		Misses:    l.misses.Get(),
		Evictions: l.evictions.Get(),
	}
}

func (l *LRU[K, V]) evictOldest(reason string) {
	i := l.nodes[0].prev
	k, v := l.nodes[i].key, l.nodes[i].val
	l.removeNode(i)
	l.evictions.IncrementAndGet()
	l.hooks.Evicted(reason, l.cap)
	if l.onEvict != nil {
		l.onEvict(k, v)
	}
}

func (l *LRU[K, V]) alloc(key K, value V) int32 {
	if n := len(l.free); n > 0 {
		i := l.free[n-1]
		l.free = l.free[:n-1]
		l.nodes[i].key, l.nodes[i].val = key, value
		return i
	}
	l.nodes = append(l.nodes, node[K, V]{key: key, val: value})
	return int32(len(l.nodes) - 1)
}

func (l *LRU[K, V]) removeNode(i int32) {
	l.unlink(i)
	delete(l.index, l.nodes[i].key)
	l.nodes[i] = node[K, V]{} // release key/value for GC
	l.free = append(l.free, i)
}

func (l *LRU[K, V]) unlink(i int32) {
	prev, next := l.nodes[i].prev, l.nodes[i].next
	l.nodes[prev].next = next
	l.nodes[next].prev = prev
}

func (l *LRU[K, V]) pushFront(i int32) {
	head := l.nodes[0].next
	l.nodes[i].prev = 0
	l.nodes[i].next = head
	l.nodes[head].prev = i
	l.nodes[0].next = i
}

func (l *LRU[K, V]) moveToFront(i int32) {
	if l.nodes[0].next == i {
		return
	}
	l.unlink(i)
	l.pushFront(i)
}

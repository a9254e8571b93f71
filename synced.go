package boundcache

import "sync"

// Synced guards an LRU with a single mutex held for the duration of each call.
// Every method, including Get, takes the exclusive lock because a hit
// reorders the recency list.
type Synced[K comparable, V any] struct {
	mu  sync.Mutex
	lru *LRU[K, V]
}

// NewSynced builds a mutex-guarded LRU from opts.
func NewSynced[K comparable, V any](opts Options[K, V]) (*Synced[K, V], error) {
	l, err := newLRU(opts)
	if err != nil {
		return nil, err
	}
	return &Synced[K, V]{lru: l}, nil
}

func (s *Synced[K, V]) Put(key K, value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Put(key, value)
}

func (s *Synced[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Get(key)
}

func (s *Synced[K, V]) Peek(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Peek(key)
}

func (s *Synced[K, V]) Contains(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Contains(key)
}

func (s *Synced[K, V]) Remove(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Remove(key)
}

func (s *Synced[K, V]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Keys()
}

func (s *Synced[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *Synced[K, V]) Purge() {
	s.mu.Lock()
	s.lru.Purge()
	s.mu.Unlock()
}

func (s *Synced[K, V]) Resize(capacity int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Resize(capacity)
}

// Stats does not take the lock; the counters are atomic.
func (s *Synced[K, V]) Stats() Stats { return s.lru.Stats() }

// Do runs fn with the lock held, for compound operations that must not
// interleave with other callers. fn must not retain l.
func (s *Synced[K, V]) Do(fn func(l *LRU[K, V])) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.lru)
}

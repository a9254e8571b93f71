// Package asynchook moves Hooks calls off the cache's hot path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    EvictEvery:    100, // sample logs: ~every 100th eviction
//	    SelfHealEvery: 1,   // log every self-heal
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := tier.New[User](tier.Options[User]{
//	    Namespace: "app:prod:user",
//	    Capacity:  10_000,
//	    Codec:     codec.JSON[User]{},
//	    Provider:  provider,
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/boundcache"
)

// Hooks queues events for worker goroutines. When the queue is full, events
// are dropped and counted.
type Hooks struct {
	inner   boundcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against concurrent try
	closed  bool
	dropped boundcache.Counter
}

var _ boundcache.Hooks = (*Hooks)(nil)

func New(inner boundcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped is the number of events discarded because the queue was full or closed.
func (h *Hooks) Dropped() int64 { return h.dropped.Get() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.IncrementAndGet()
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.IncrementAndGet()
	}
}

func (h *Hooks) Evicted(r string, c int)        { h.try(func() { h.inner.Evicted(r, c) }) }
func (h *Hooks) SpillRejected(k string)         { h.try(func() { h.inner.SpillRejected(k) }) }
func (h *Hooks) SpillError(k string, err error) { h.try(func() { h.inner.SpillError(k, err) }) }
func (h *Hooks) SelfHeal(k, r string)           { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) SnapshotEntryDropped(i int, err error) {
	h.try(func() { h.inner.SnapshotEntryDropped(i, err) })
}

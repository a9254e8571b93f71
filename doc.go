// Package boundcache implements a fixed-capacity LRU cache and a lock-free
// shared counter, plus the pieces needed to run them in a service: a
// mutex-guarded wrapper, leveled logging and event hooks.
//
// Components:
//   - LRU[K, V]: bounded map with recency eviction. Not safe for concurrent use.
//   - Synced[K, V]: LRU behind one mutex held for each call.
//   - Counter: atomic increment-and-get (LockedCounter is the mutex variant).
//   - tier: LRU front with a byte Provider (ristretto, bigcache, redis) behind it
//     that receives evicted entries.
//   - snapshot: write/restore an LRU in recency order.
//   - counterstore: named counters, in-process or in Redis.
//
// Eviction example (capacity 2):
//
//	c, _ := boundcache.NewLRU[string, int](2)
//	c.Put("a", 1)
//	c.Put("b", 2)
//	c.Get("a")    // a is now most recent
//	c.Put("c", 3) // evicts b
package boundcache

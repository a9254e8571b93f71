package boundcache

// Cache is an alias so callers can spell boundcache.Cache[K, V].
type Cache[K comparable, V any] = LRU[K, V]

// Options tune an LRU. Only Capacity is required.
type Options[K comparable, V any] struct {
	// Required: maximum number of entries, 1..2^31-1.
	Capacity int

	// OnEvict is called synchronously for every capacity eviction (from Put or
	// Resize). It is not called for Remove, RemoveOldest or Purge.
	// It runs while a Synced lock is held, so it must not call back into the cache.
	OnEvict func(key K, value V)

	Hooks Hooks // if nil, NopHooks is used
}

// New builds an LRU from opts. It fails with a *CapacityError when the
// capacity is out of range.
func New[K comparable, V any](opts Options[K, V]) (*LRU[K, V], error) {
	return newLRU(opts)
}

// NewLRU is shorthand for New with only a capacity.
func NewLRU[K comparable, V any](capacity int) (*LRU[K, V], error) {
	return newLRU(Options[K, V]{Capacity: capacity})
}

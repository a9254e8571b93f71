package boundcache

import (
	"sync"

	"go.uber.org/atomic"
)

// Incrementer is a shared counter that only moves forward.
type Incrementer interface {
	IncrementAndGet() int64
	Get() int64
}

var (
	_ Incrementer = (*Counter)(nil)
	_ Incrementer = (*LockedCounter)(nil)
)

// Counter is a lock-free counter backed by a single atomic word.
// The zero value is ready to use. Do not copy a Counter after first use.
type Counter struct {
	v atomic.Int64
}

// IncrementAndGet adds one and returns the new value. Concurrent callers never
// lose updates and each observes a distinct value.
func (c *Counter) IncrementAndGet() int64 { return c.v.Inc() }

// Get returns the current value.
func (c *Counter) Get() int64 { return c.v.Load() }

// LockedCounter is the mutex-guarded variant of Counter, for platforms or call
// sites where the increment must be grouped with other state under one lock.
type LockedCounter struct {
	mu sync.Mutex
	n  int64
}

func (c *LockedCounter) IncrementAndGet() int64 {
	c.mu.Lock()
	c.n++
	n := c.n
	c.mu.Unlock()
	return n
}

func (c *LockedCounter) Get() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

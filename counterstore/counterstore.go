// Package counterstore keeps named monotonic counters, either in-process or
// in Redis so several replicas share one count.
package counterstore

import (
	"context"
	"time"
)

// Store abstracts where counters live. Unknown names read as 0.
type Store interface {
	// IncrementAndGet atomically adds one to name and returns the new value.
	IncrementAndGet(ctx context.Context, name string) (int64, error)
	// Get returns the current value; missing => 0.
	Get(ctx context.Context, name string) (int64, error)
	// GetMany returns values for many names; missing => 0.
	GetMany(ctx context.Context, names []string) (map[string]int64, error)
	// Cleanup drops counters idle for longer than retention (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}

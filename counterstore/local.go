package counterstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/unkn0wn-root/boundcache"
)

type localEntry struct {
	n       boundcache.Counter
	touched atomic.Int64 // unix nanos of the last increment
}

// Local keeps counters in-process. Increments of existing counters only take
// the read lock; the counter itself is atomic.
// Optional cleanup loop prunes long-idle counters.
type Local struct {
	mu       sync.RWMutex
	counters map[string]*localEntry

	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Store = (*Local)(nil)

// NewLocal starts a cleanup loop when both cleanupInterval and retention are > 0.
func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{counters: make(map[string]*localEntry)}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) IncrementAndGet(_ context.Context, name string) (int64, error) {
	now := time.Now().UnixNano()

	s.mu.RLock()
	if e, ok := s.counters[name]; ok {
		n := e.n.IncrementAndGet()
		e.touched.Store(now)
		s.mu.RUnlock()
		return n, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	e, ok := s.counters[name]
	if !ok {
		e = &localEntry{}
		s.counters[name] = e
	}
	n := e.n.IncrementAndGet()
	e.touched.Store(now)
	s.mu.Unlock()
	return n, nil
}

func (s *Local) Get(_ context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.counters[name]; ok {
		return e.n.Get(), nil
	}
	return 0, nil
}

// GetMany takes the read lock once for all names.
func (s *Local) GetMany(_ context.Context, names []string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	s.mu.RLock()
	for _, name := range names {
		if e, ok := s.counters[name]; ok {
			out[name] = e.n.Get()
		} else {
			out[name] = 0
		}
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention).UnixNano()

	s.mu.Lock()
	for name, e := range s.counters {
		if e.touched.Load() < cutoff {
			delete(s.counters, name)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Close(_ context.Context) error {
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			s.ticker.Stop()
			close(s.stopCh)
			s.wg.Wait()
		}
	})
	return nil
}

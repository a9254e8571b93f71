// Package ristretto adapts dgraph-io/ristretto as a tier backing store.
// Ristretto admits writes asynchronously and may drop them under contention;
// dropped writes surface as ok=false from Set.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/boundcache/provider"
)

type Provider struct {
	c *rc.Cache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64 // ~10x expected entries
	MaxCost     int64 // total cost budget; tier passes cost per Set
	BufferItems int64 // 64 is the ristretto recommendation
	Metrics     bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto provider: NumCounters, MaxCost and BufferItems must be > 0")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set returns ok=false when ristretto's admission policy or buffers drop the
// write. ttl <= 0 means no expiry.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return p.c.SetWithTTL(key, value, cost, ttl), nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

// Wait blocks until buffered writes are applied. Tests use it to make Set
// visible to Get.
func (p *Provider) Wait() { p.c.Wait() }

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's counters when Config.Metrics is set (not part of provider.Provider).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }

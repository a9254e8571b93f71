// Package config loads lrubench settings from the environment.
package config

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Cache   CacheConfig
	Spill   SpillConfig
	Counter CounterConfig
	Load    LoadConfig
	Log     LogConfig
}

type CacheConfig struct {
	Capacity  int    `env:"LRU_CAPACITY, default=1024"`
	Namespace string `env:"LRU_NAMESPACE, default=lrubench"`
	// Codec selects the value codec used for spills and snapshots: json, cbor or msgpack.
	Codec string `env:"LRU_CODEC, default=json"`
	// SnapshotPath, when set, receives a snapshot of the cache after the run.
	SnapshotPath string `env:"LRU_SNAPSHOT_PATH"`
}

// SpillConfig selects the store evicted entries are written to.
type SpillConfig struct {
	// Provider is one of: none, ristretto, bigcache, redis.
	Provider string        `env:"SPILL_PROVIDER, default=none"`
	TTL      time.Duration `env:"SPILL_TTL, default=1h"`
	// MaxCost bounds ristretto; MaxSizeMB bounds bigcache.
	MaxCost   int64 `env:"SPILL_MAX_COST, default=1048576"`
	MaxSizeMB int   `env:"SPILL_MAX_SIZE_MB, default=64"`
}

type CounterConfig struct {
	// Store is one of: local, redis.
	Store string        `env:"COUNTER_STORE, default=local"`
	TTL   time.Duration `env:"COUNTER_TTL"`
}

type LoadConfig struct {
	Workers    int `env:"LOAD_WORKERS, default=8"`
	Iterations int `env:"LOAD_ITERATIONS, default=10000"`
	KeySpace   int `env:"LOAD_KEYSPACE, default=4096"`
}

type LogConfig struct {
	// Backend is one of: zap, logrus, slog.
	Backend string `env:"LOG_BACKEND, default=zap"`
	Level   string `env:"LOG_LEVEL, default=info"`
}

// RedisConfig is shared by the redis spill provider and counter store.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

// LoadRedis reads REDIS_* settings. Only called when a redis backend is chosen.
func LoadRedis(ctx context.Context) (RedisConfig, error) {
	return loadRedis(ctx, nil)
}

func loadRedis(ctx context.Context, lookup envconfig.Lookuper) (RedisConfig, error) {
	var cfg RedisConfig
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup,
	})
	return cfg, err
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NeedsRedis reports whether any backend talks to redis.
func (c *Config) NeedsRedis() bool {
	return c.Spill.Provider == "redis" || c.Counter.Store == "redis"
}

// Validate checks value ranges and enum settings. It is also called after
// command-line overrides are applied.
func (c *Config) Validate() error {
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("LRU_CAPACITY must be >= 1, got %d", c.Cache.Capacity)
	}
	if c.Cache.Namespace == "" {
		return fmt.Errorf("LRU_NAMESPACE must not be empty")
	}
	if !slices.Contains([]string{"json", "cbor", "msgpack"}, c.Cache.Codec) {
		return fmt.Errorf("LRU_CODEC must be json, cbor or msgpack, got %q", c.Cache.Codec)
	}

	switch c.Spill.Provider {
	case "none", "redis":
	case "ristretto":
		if c.Spill.MaxCost <= 0 {
			return fmt.Errorf("SPILL_MAX_COST must be > 0 for ristretto")
		}
	case "bigcache":
		if c.Spill.TTL <= 0 {
			return fmt.Errorf("SPILL_TTL must be > 0 for bigcache")
		}
	default:
		return fmt.Errorf("SPILL_PROVIDER must be none, ristretto, bigcache or redis, got %q", c.Spill.Provider)
	}

	if c.Counter.Store != "local" && c.Counter.Store != "redis" {
		return fmt.Errorf("COUNTER_STORE must be local or redis, got %q", c.Counter.Store)
	}
	if c.Counter.TTL < 0 {
		return fmt.Errorf("COUNTER_TTL must not be negative")
	}

	if c.Load.Workers < 1 || c.Load.Iterations < 1 || c.Load.KeySpace < 1 {
		return fmt.Errorf("LOAD_WORKERS, LOAD_ITERATIONS and LOAD_KEYSPACE must be >= 1")
	}

	if !slices.Contains([]string{"zap", "logrus", "slog"}, c.Log.Backend) {
		return fmt.Errorf("LOG_BACKEND must be zap, logrus or slog, got %q", c.Log.Backend)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/boundcache"
	"github.com/unkn0wn-root/boundcache/codec"
	"github.com/unkn0wn-root/boundcache/internal/config"
	pr "github.com/unkn0wn-root/boundcache/provider"
	"github.com/unkn0wn-root/boundcache/tier"
)

func baseConfig() config.Config {
	return config.Config{
		Cache:   config.CacheConfig{Capacity: 16, Namespace: "test", Codec: "json"},
		Spill:   config.SpillConfig{Provider: "none", TTL: time.Hour, MaxCost: 1 << 20, MaxSizeMB: 8},
		Counter: config.CounterConfig{Store: "local"},
		Load:    config.LoadConfig{Workers: 8, Iterations: 500, KeySpace: 64},
		Log:     config.LogConfig{Backend: "zap", Level: "info"},
	}
}

func TestRun_CountsEveryOperation(t *testing.T) {
	cases := []struct {
		name    string
		codec   string
		spill   string
		backend string
	}{
		{"zap json no spill", "json", "none", "zap"},
		{"logrus cbor bigcache", "cbor", "bigcache", "logrus"},
		{"slog msgpack ristretto", "msgpack", "ristretto", "slog"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Cache.Codec = tc.codec
			cfg.Spill.Provider = tc.spill
			cfg.Log.Backend = tc.backend
			require.NoError(t, cfg.Validate())

			var logs bytes.Buffer
			rep, err := run(context.Background(), cfg, &logs)
			require.NoError(t, err)

			assert.EqualValues(t, 8*500, rep.Ops)
			assert.EqualValues(t, 8*500, rep.Stored)
			assert.LessOrEqual(t, rep.Len, 16)
			assert.Positive(t, rep.Cache.Evictions)
			assert.Contains(t, logs.String(), "lrubench finished")
			if tc.spill == "none" {
				assert.Zero(t, rep.Cache.Spills)
				assert.Zero(t, rep.Cache.Promotions)
			}
		})
	}
}

func TestRun_WritesLoadableSnapshot(t *testing.T) {
	cfg := baseConfig()
	cfg.Cache.SnapshotPath = filepath.Join(t.TempDir(), "cache.snap")

	rep, err := run(context.Background(), cfg, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, cfg.Cache.SnapshotPath, rep.Snapshot)

	f, err := os.Open(cfg.Cache.SnapshotPath)
	require.NoError(t, err)
	defer f.Close()

	restored, err := tier.New(tier.Options[sample]{
		Namespace: "restore",
		Capacity:  cfg.Cache.Capacity,
		Codec:     codec.JSON[sample]{},
	})
	require.NoError(t, err)
	n, err := restored.Load(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, rep.Len, n)
	assert.Equal(t, rep.Len, restored.Len())
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := run(ctx, baseConfig(), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRootCmd_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("LOAD_WORKERS", "100")
	t.Setenv("LOG_BACKEND", "logrus")

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"-w", "2", "-n", "50", "--capacity", "4", "--keyspace", "10", "--log", "slog"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.True(t, strings.HasPrefix(out.String(), "ops=100 stored=100 "), out.String())
	assert.Contains(t, errOut.String(), `"msg":"lrubench finished"`)
}

func TestRootCmd_RejectsInvalidFlag(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--spill", "memcached"})

	err := cmd.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "SPILL_PROVIDER")
}

type closeRecorder struct {
	pr.Provider
	closed bool
}

func (c *closeRecorder) Close(context.Context) error {
	c.closed = true
	return nil
}

func TestRun_ClosesProviderWhenCacheCannotBeBuilt(t *testing.T) {
	rec := &closeRecorder{}
	orig := openProvider
	openProvider = func(context.Context, config.Config, *goredis.Client) (pr.Provider, error) {
		return rec, nil
	}
	t.Cleanup(func() { openProvider = orig })

	cfg := baseConfig()
	cfg.Cache.Capacity = 0 // rejected by tier.New

	_, err := run(context.Background(), cfg, &bytes.Buffer{})
	require.ErrorIs(t, err, boundcache.ErrInvalidCapacity)
	assert.True(t, rec.closed, "provider left open")
}

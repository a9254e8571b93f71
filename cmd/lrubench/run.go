package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/boundcache"
	"github.com/unkn0wn-root/boundcache/codec"
	"github.com/unkn0wn-root/boundcache/counterstore"
	asynchook "github.com/unkn0wn-root/boundcache/hooks/async"
	"github.com/unkn0wn-root/boundcache/internal/config"
	bclogrus "github.com/unkn0wn-root/boundcache/log/logrus"
	bcslog "github.com/unkn0wn-root/boundcache/log/slog"
	bczap "github.com/unkn0wn-root/boundcache/log/zap"
	pr "github.com/unkn0wn-root/boundcache/provider"
	pbig "github.com/unkn0wn-root/boundcache/provider/bigcache"
	predis "github.com/unkn0wn-root/boundcache/provider/redis"
	pris "github.com/unkn0wn-root/boundcache/provider/ristretto"
	"github.com/unkn0wn-root/boundcache/sloghooks"
	"github.com/unkn0wn-root/boundcache/tier"
)

// sample is the cached value; tags cover every codec lrubench can select.
type sample struct {
	Worker int `json:"w" cbor:"w" msgpack:"w"`
	Seq    int `json:"s" cbor:"s" msgpack:"s"`
}

type report struct {
	Ops      int64 // in-process Counter
	Stored   int64 // counterstore value for this run
	Len      int
	Cache    tier.Stats
	Snapshot string
}

func (r report) String() string {
	s := fmt.Sprintf("ops=%d stored=%d len=%d hits=%d misses=%d hit_ratio=%.3f evictions=%d spills=%d spill_failures=%d promotions=%d",
		r.Ops, r.Stored, r.Len, r.Cache.Hits, r.Cache.Misses, r.Cache.HitRatio(),
		r.Cache.Evictions, r.Cache.Spills, r.Cache.SpillFailures, r.Cache.Promotions)
	if r.Snapshot != "" {
		s += " snapshot=" + r.Snapshot
	}
	return s
}

func run(ctx context.Context, cfg config.Config, logw io.Writer) (report, error) {
	var rep report

	logger, sl, syncLog, err := newLogger(cfg.Log, logw)
	if err != nil {
		return rep, err
	}
	defer syncLog()

	var hooks boundcache.Hooks
	if sl != nil {
		ah := asynchook.New(sloghooks.New(sl, sloghooks.Options{EvictEvery: 100}), 1, 1024)
		defer ah.Close()
		hooks = ah
	}

	vc, ok := codec.ByName[sample](cfg.Cache.Codec)
	if !ok {
		return rep, fmt.Errorf("unknown codec %q", cfg.Cache.Codec)
	}

	var rdb *goredis.Client
	if cfg.NeedsRedis() {
		rc, err := config.LoadRedis(ctx)
		if err != nil {
			return rep, fmt.Errorf("redis config: %w", err)
		}
		rdb = goredis.NewClient(&goredis.Options{Addr: rc.Address, Password: rc.Password, DB: rc.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return rep, fmt.Errorf("redis ping %s: %w", rc.Address, err)
		}
	}

	prov, err := openProvider(ctx, cfg, rdb)
	if err != nil {
		closeBackends(nil, rdb)
		return rep, err
	}

	tc, err := tier.New(tier.Options[sample]{
		Namespace: cfg.Cache.Namespace,
		Capacity:  cfg.Cache.Capacity,
		Codec:     vc,
		Provider:  prov,
		Logger:    logger,
		Hooks:     hooks,
		SpillTTL:  cfg.Spill.TTL,
	})
	if err != nil {
		closeBackends(prov, rdb)
		return rep, err
	}
	defer func() {
		if err := tc.Close(context.Background()); err != nil {
			logger.Warn("close spill provider", boundcache.Fields{"err": err})
		}
	}()

	store := newStore(cfg, rdb)
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("close counter store", boundcache.Fields{"err": err})
		}
	}()

	logger.Info("lrubench starting", boundcache.Fields{
		"capacity":   cfg.Cache.Capacity,
		"codec":      cfg.Cache.Codec,
		"spill":      cfg.Spill.Provider,
		"counter":    cfg.Counter.Store,
		"workers":    cfg.Load.Workers,
		"iterations": cfg.Load.Iterations,
		"keyspace":   cfg.Load.KeySpace,
	})

	// per run so a shared redis store starts from zero
	name := "ops:" + strconv.FormatInt(time.Now().UnixNano(), 36)
	var ops boundcache.Counter
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for id := range cfg.Load.Workers {
		g.Go(func() error {
			return work(gctx, id, cfg.Load, tc, &ops, store, name, logger)
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}

	rep.Ops = ops.Get()
	if rep.Stored, err = store.Get(ctx, name); err != nil {
		return rep, fmt.Errorf("read counter %s: %w", name, err)
	}
	rep.Len = tc.Len()
	rep.Cache = tc.Stats()

	logger.Info("lrubench finished", boundcache.Fields{
		"elapsed":   time.Since(start).String(),
		"ops":       rep.Ops,
		"stored":    rep.Stored,
		"hits":      rep.Cache.Hits,
		"misses":    rep.Cache.Misses,
		"evictions": rep.Cache.Evictions,
		"spills":    rep.Cache.Spills,
	})

	want := int64(cfg.Load.Workers) * int64(cfg.Load.Iterations)
	if rep.Ops != want || rep.Stored != want {
		return rep, fmt.Errorf("lost updates: counter=%d store=%d want=%d", rep.Ops, rep.Stored, want)
	}

	if p := cfg.Cache.SnapshotPath; p != "" {
		if err := writeSnapshot(p, tc); err != nil {
			return rep, err
		}
		rep.Snapshot = p
	}
	return rep, nil
}

func work(ctx context.Context, id int, l config.LoadConfig, tc *tier.Cache[sample],
	ops *boundcache.Counter, store counterstore.Store, name string, logger boundcache.Logger,
) error {
	rng := rand.New(rand.NewPCG(uint64(id), 0x9e3779b97f4a7c15))
	for i := range l.Iterations {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := "k" + strconv.Itoa(rng.IntN(l.KeySpace))

		put := rng.IntN(2) == 0
		if !put {
			_, ok, err := tc.Get(ctx, key)
			if err != nil {
				return fmt.Errorf("worker %d get %s: %w", id, key, err)
			}
			put = !ok
		}
		if put {
			err := tc.Put(ctx, key, sample{Worker: id, Seq: i})
			var se *tier.SpillError
			switch {
			case errors.As(err, &se):
				// the evicted entries are lost; the run continues
				logger.Debug("spill failed", boundcache.Fields{"worker": id, "err": err})
			case err != nil:
				return err
			}
		}

		ops.IncrementAndGet()
		if _, err := store.IncrementAndGet(ctx, name); err != nil {
			return fmt.Errorf("worker %d increment: %w", id, err)
		}
	}
	return nil
}

func writeSnapshot(path string, tc *tier.Cache[sample]) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := tc.Dump(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	return f.Close()
}

// newLogger returns the adapter for the configured backend. For slog it also
// returns the underlying logger so hooks can log through it.
func newLogger(lc config.LogConfig, w io.Writer) (boundcache.Logger, *stdslog.Logger, func(), error) {
	switch lc.Backend {
	case "zap":
		lvl, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, nil, nil, err
		}
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.Lock(zapcore.AddSync(w)),
			lvl,
		)
		zl := zap.New(core).Named("lrubench")
		return bczap.ZapLogger{L: zl}, nil, func() { _ = zl.Sync() }, nil
	case "logrus":
		lvl, err := logrus.ParseLevel(lc.Level)
		if err != nil {
			return nil, nil, nil, err
		}
		lg := logrus.New()
		lg.SetOutput(w)
		lg.SetLevel(lvl)
		return bclogrus.LogrusLogger{E: lg.WithField("component", "lrubench")}, nil, func() {}, nil
	case "slog":
		var lvl stdslog.Level
		if err := lvl.UnmarshalText([]byte(lc.Level)); err != nil {
			return nil, nil, nil, err
		}
		sl := stdslog.New(stdslog.NewJSONHandler(w, &stdslog.HandlerOptions{Level: lvl}))
		return bcslog.Logger{L: sl}, sl, func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown log backend %q", lc.Backend)
}

// closeBackends releases the provider and client when the cache was never
// built to take ownership of them. Closing an already closed client is ignored.
func closeBackends(prov pr.Provider, rdb *goredis.Client) {
	if prov != nil {
		_ = prov.Close(context.Background())
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

// openProvider is swapped in tests.
var openProvider = newProvider

// newProvider returns nil when spilling is disabled.
func newProvider(ctx context.Context, cfg config.Config, rdb *goredis.Client) (pr.Provider, error) {
	switch cfg.Spill.Provider {
	case "none":
		return nil, nil
	case "ristretto":
		return pris.New(pris.Config{
			NumCounters: max(10*int64(cfg.Load.KeySpace), 1000),
			MaxCost:     cfg.Spill.MaxCost,
			BufferItems: 64,
		})
	case "bigcache":
		return pbig.New(ctx, pbig.Config{
			LifeWindow:         cfg.Spill.TTL,
			HardMaxCacheSizeMB: cfg.Spill.MaxSizeMB,
		})
	case "redis":
		// the counter store closes a shared client
		return predis.New(predis.Config{Client: rdb, CloseClient: cfg.Counter.Store != "redis"})
	}
	return nil, fmt.Errorf("unknown spill provider %q", cfg.Spill.Provider)
}

func newStore(cfg config.Config, rdb *goredis.Client) counterstore.Store {
	if cfg.Counter.Store == "redis" {
		return counterstore.NewRedisWithTTL(rdb, cfg.Cache.Namespace, cfg.Counter.TTL)
	}
	return counterstore.NewLocal(time.Minute, time.Hour)
}

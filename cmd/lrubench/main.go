// Package main provides lrubench, a load driver for the tiered LRU cache and
// the shared counters.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/boundcache/internal/config"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lrubench",
		Short: "Drive concurrent load through a bounded LRU and shared counters",
		Long: `lrubench runs N workers that each perform M mixed Get/Put operations
against a bounded LRU (optionally spilling evictions to ristretto, bigcache or
redis) and increment a shared counter per operation. It fails if any increment
was lost.

Settings come from the environment (LRU_*, SPILL_*, COUNTER_*, LOAD_*, LOG_*,
REDIS_*) and can be overridden with flags.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, &cfg); err != nil {
				return err
			}
			rep, err := run(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rep)
			return nil
		},
	}

	f := rootCmd.Flags()
	f.Int("capacity", 0, "LRU capacity (LRU_CAPACITY)")
	f.String("codec", "", "value codec: json, cbor, msgpack (LRU_CODEC)")
	f.String("snapshot", "", "write a cache snapshot to this file after the run (LRU_SNAPSHOT_PATH)")
	f.String("spill", "", "spill provider: none, ristretto, bigcache, redis (SPILL_PROVIDER)")
	f.String("counter", "", "counter store: local, redis (COUNTER_STORE)")
	f.IntP("workers", "w", 0, "concurrent workers (LOAD_WORKERS)")
	f.IntP("iterations", "n", 0, "operations per worker (LOAD_ITERATIONS)")
	f.Int("keyspace", 0, "distinct keys (LOAD_KEYSPACE)")
	f.String("log", "", "log backend: zap, logrus, slog (LOG_BACKEND)")
	f.String("log-level", "", "debug, info, warn, error (LOG_LEVEL)")

	return rootCmd
}

// applyFlags overrides cfg with the flags the user set and re-validates.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	ints := map[string]*int{
		"capacity":   &cfg.Cache.Capacity,
		"workers":    &cfg.Load.Workers,
		"iterations": &cfg.Load.Iterations,
		"keyspace":   &cfg.Load.KeySpace,
	}
	for name, dst := range ints {
		if f.Changed(name) {
			v, err := f.GetInt(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}
	strs := map[string]*string{
		"codec":     &cfg.Cache.Codec,
		"snapshot":  &cfg.Cache.SnapshotPath,
		"spill":     &cfg.Spill.Provider,
		"counter":   &cfg.Counter.Store,
		"log":       &cfg.Log.Backend,
		"log-level": &cfg.Log.Level,
	}
	for name, dst := range strs {
		if f.Changed(name) {
			v, err := f.GetString(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "lrubench:", err)
		stop()
		os.Exit(1)
	}
}

// Package tier puts a bounded LRU in front of a byte store. Entries evicted
// from the LRU are spilled to the store and promoted back (and deleted from
// the store) on the next read. The LRU copy of a key always wins; an older
// store copy is overwritten when the key is evicted again, or deleted if that
// spill fails.
//
// Store writes and deletes for one key are applied in the order they were
// decided under the LRU lock. A read that overlaps a write of the same key
// does not promote what it read from the store.
package tier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/unkn0wn-root/boundcache"
	c "github.com/unkn0wn-root/boundcache/codec"
	"github.com/unkn0wn-root/boundcache/internal/util"
	"github.com/unkn0wn-root/boundcache/internal/wire"
	pr "github.com/unkn0wn-root/boundcache/provider"
	"github.com/unkn0wn-root/boundcache/snapshot"
)

const defaultSpillTTL = time.Hour

type CostFunc func(storageKey string, raw []byte) int64

// Options tune a tier Cache. Namespace, Capacity and Codec are required.
type Options[V any] struct {
	Namespace string // isolates spilled keys: "spill:<ns>:<key>"
	Capacity  int    // LRU entries
	Codec     c.Codec[V]

	Provider    pr.Provider       // nil => LRU only, evictions are dropped
	Logger      boundcache.Logger // if nil, NopLogger is used
	Hooks       boundcache.Hooks  // if nil, NopHooks is used
	SpillTTL    time.Duration     // 0 => 1h
	ComputeCost CostFunc          // default 1
}

// op is one store write (spill) or delete for a key. It runs after the
// previous op on the same key has finished.
type op[V any] struct {
	key   string
	val   V
	del   bool
	after <-chan struct{}
	done  chan struct{}
}

// keyState tracks a key that has store ops in flight or readers between the
// store read and the promotion.
type keyState struct {
	gen      uint64 // bumped on every LRU write of the key
	readers  int
	ops      int
	lastDone chan struct{}
}

// ticket is held by a Get from its store read until it decides to promote.
type ticket struct {
	key   string
	gen   uint64
	stale bool
}

// Stats extends the LRU counters with tier traffic.
type Stats struct {
	boundcache.Stats
	Spills        int64 // evicted entries written to the provider
	SpillFailures int64 // encode errors, provider errors and rejections
	Promotions    int64 // provider hits moved back into the LRU
}

// Cache is safe for concurrent use. The LRU is guarded by one mutex; provider
// IO always happens outside it.
type Cache[V any] struct {
	ns       string
	front    *boundcache.Synced[string, V]
	provider pr.Provider
	codec    c.Codec[V]
	log      boundcache.Logger
	hooks    boundcache.Hooks
	spillTTL time.Duration
	cost     CostFunc

	// guarded by the front lock
	pending []*op[V]
	keys    map[string]*keyState

	spills        boundcache.Counter
	spillFailures boundcache.Counter
	promotions    boundcache.Counter
}

func New[V any](opts Options[V]) (*Cache[V], error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("tier: namespace is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("tier: codec is required")
	}

	tc := &Cache[V]{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		keys:     make(map[string]*keyState),
	}
	tc.log = util.Coalesce[boundcache.Logger](opts.Logger, boundcache.NopLogger{})
	tc.hooks = util.Coalesce[boundcache.Hooks](opts.Hooks, boundcache.NopHooks{})
	tc.spillTTL = util.Coalesce(opts.SpillTTL, defaultSpillTTL)
	if opts.ComputeCost != nil {
		tc.cost = opts.ComputeCost
	} else {
		tc.cost = func(string, []byte) int64 { return 1 }
	}

	lo := boundcache.Options[string, V]{Capacity: opts.Capacity, Hooks: tc.hooks}
	if tc.provider != nil {
		lo.OnEvict = func(k string, v V) { tc.pending = append(tc.pending, &op[V]{key: k, val: v}) }
	}
	front, err := boundcache.NewSynced(lo)
	if err != nil {
		return nil, fmt.Errorf("tier: %w", err)
	}
	tc.front = front
	return tc, nil
}

// Put stores value in the LRU. If that evicts an entry, the entry is written
// to the provider before Put returns. A *SpillError reports spills that failed;
// the value itself is always stored.
func (tc *Cache[V]) Put(ctx context.Context, key string, value V) error {
	var out []*op[V]
	tc.front.Do(func(l *boundcache.LRU[string, V]) {
		l.Put(key, value)
		tc.touch(key)
		out = tc.takePending()
	})
	return tc.apply(ctx, out)
}

// Get returns the value for key. A miss in the LRU falls through to the
// provider; a hit there is promoted into the LRU and removed from the provider.
// If the key is written while the provider read is in flight, the read is
// discarded: Get returns the LRU value if there is one, otherwise a miss.
func (tc *Cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var (
		zero V
		v    V
		hit  bool
		tk   *ticket
	)
	tc.front.Do(func(l *boundcache.LRU[string, V]) {
		if v, hit = l.Get(key); hit || tc.provider == nil {
			return
		}
		tk = tc.watch(key)
	})
	if hit || tk == nil {
		return v, hit, nil
	}

	sk := tc.storageKey(key)
	raw, ok, err := tc.provider.Get(ctx, sk)
	if err != nil || !ok {
		tc.front.Do(func(*boundcache.LRU[string, V]) { tc.unwatch(tk) })
		return zero, false, err
	}
	fullKey, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		tc.selfHeal(ctx, tk, sk, "corrupt")
		return zero, false, nil
	}
	if string(fullKey) != key {
		// another key hashed to the same storage key; leave it alone
		tc.front.Do(func(*boundcache.LRU[string, V]) { tc.unwatch(tk) })
		tc.log.Debug("spilled entry belongs to another key", boundcache.Fields{"key": key})
		return zero, false, nil
	}
	v, err = tc.codec.Decode(payload)
	if err != nil {
		tc.selfHeal(ctx, tk, sk, "value_decode")
		return zero, false, nil
	}

	var (
		out      []*op[V]
		promoted bool
	)
	tc.front.Do(func(l *boundcache.LRU[string, V]) {
		defer tc.unwatch(tk)
		if !tc.valid(tk) {
			// written since the store read; what we read may be stale
			v, hit = l.Peek(key)
			return
		}
		l.Put(key, v)
		tc.touch(key)
		tc.pending = append(tc.pending, &op[V]{key: key, del: true})
		out = tc.takePending()
		promoted = true
	})
	if !promoted {
		tc.log.Debug("promotion skipped, key written concurrently", boundcache.Fields{"key": key})
		return v, hit, nil
	}
	tc.promotions.IncrementAndGet()
	if err := tc.apply(ctx, out); err != nil {
		tc.log.Warn("store update after promote failed", boundcache.Fields{"key": key, "err": err})
	}
	return v, true, nil
}

// Remove drops key from both tiers.
func (tc *Cache[V]) Remove(ctx context.Context, key string) error {
	var out []*op[V]
	tc.front.Do(func(l *boundcache.LRU[string, V]) {
		l.Remove(key)
		tc.touch(key)
		if tc.provider != nil {
			tc.pending = append(tc.pending, &op[V]{key: key, del: true})
			out = tc.takePending()
		}
	})
	return tc.apply(ctx, out)
}

// Len is the number of entries in the LRU.
func (tc *Cache[V]) Len() int { return tc.front.Len() }

func (tc *Cache[V]) Stats() Stats {
	return Stats{
		Stats:         tc.front.Stats(),
		Spills:        tc.spills.Get(),
		SpillFailures: tc.spillFailures.Get(),
		Promotions:    tc.promotions.Get(),
	}
}

// Dump writes the LRU contents (not the provider) as a snapshot, oldest first.
func (tc *Cache[V]) Dump(w io.Writer) error {
	var err error
	tc.front.Do(func(l *boundcache.LRU[string, V]) {
		err = snapshot.Write(w, l, c.String{}, tc.codec)
	})
	return err
}

// Load replays a snapshot into the LRU. Entries pushed out by the replay are
// spilled like any other eviction.
func (tc *Cache[V]) Load(ctx context.Context, r io.Reader) (int, error) {
	var (
		n   int
		err error
		out []*op[V]
	)
	tc.front.Do(func(l *boundcache.LRU[string, V]) {
		n, err = snapshot.Read(r, l, c.String{}, tc.codec, tc.hooks)
		for _, st := range tc.keys {
			st.gen++
		}
		out = tc.takePending()
	})
	if ferr := tc.apply(ctx, out); ferr != nil && err == nil {
		err = ferr
	}
	return n, err
}

func (tc *Cache[V]) Close(ctx context.Context) error {
	if tc.provider != nil {
		return tc.provider.Close(ctx)
	}
	return nil
}

// state, release, touch, watch, valid, unwatch and takePending must be called
// with the front lock held.

func (tc *Cache[V]) state(key string) *keyState {
	st, ok := tc.keys[key]
	if !ok {
		st = &keyState{}
		tc.keys[key] = st
	}
	return st
}

func (tc *Cache[V]) release(key string, st *keyState) {
	if st.readers == 0 && st.ops == 0 {
		delete(tc.keys, key)
	}
}

// touch invalidates tickets of readers racing an LRU write of key.
func (tc *Cache[V]) touch(key string) {
	if st, ok := tc.keys[key]; ok {
		st.gen++
	}
}

// watch issues a ticket. It is stale from the start when store ops for key
// are in flight, since the read could land before them.
func (tc *Cache[V]) watch(key string) *ticket {
	st := tc.state(key)
	st.readers++
	return &ticket{key: key, gen: st.gen, stale: st.ops > 0}
}

func (tc *Cache[V]) valid(tk *ticket) bool {
	st := tc.keys[tk.key]
	return !tk.stale && st.gen == tk.gen
}

func (tc *Cache[V]) unwatch(tk *ticket) {
	st := tc.keys[tk.key]
	st.readers--
	tc.release(tk.key, st)
}

// takePending chains the queued ops behind earlier ops on the same key.
func (tc *Cache[V]) takePending() []*op[V] {
	if len(tc.pending) == 0 {
		return nil
	}
	out := tc.pending
	tc.pending = nil
	for _, o := range out {
		st := tc.state(o.key)
		o.after = st.lastDone
		o.done = make(chan struct{})
		st.lastDone = o.done
		st.ops++
	}
	return out
}

// apply runs ops in order outside the front lock. Spill failures are returned
// as a *SpillError; a failed delete is returned as is.
func (tc *Cache[V]) apply(ctx context.Context, ops []*op[V]) error {
	if len(ops) == 0 {
		return nil
	}
	var (
		se     *SpillError
		delErr error
	)
	for _, o := range ops {
		err := tc.run(ctx, o)
		switch {
		case err == nil:
		case o.del && delErr == nil:
			delErr = err
		case o.del:
			delErr = errors.Join(delErr, err)
		default:
			if se == nil {
				se = &SpillError{}
			}
			se.Keys = append(se.Keys, o.key)
			se.Errs = append(se.Errs, err)
		}
	}
	tc.front.Do(func(*boundcache.LRU[string, V]) {
		for _, o := range ops {
			st := tc.keys[o.key]
			st.ops--
			if st.lastDone == o.done {
				st.lastDone = nil
			}
			tc.release(o.key, st)
		}
	})

	switch {
	case se == nil:
		return delErr
	case delErr == nil:
		return se
	default:
		return errors.Join(delErr, se)
	}
}

func (tc *Cache[V]) run(ctx context.Context, o *op[V]) error {
	defer close(o.done)
	if o.after != nil {
		<-o.after
	}
	sk := tc.storageKey(o.key)
	if o.del {
		return tc.provider.Del(ctx, sk)
	}
	return tc.spill(ctx, sk, o.key, o.val)
}

func (tc *Cache[V]) spill(ctx context.Context, sk, key string, val V) error {
	payload, err := tc.codec.Encode(val)
	if err != nil {
		tc.spillFailed(ctx, sk, err)
		return err
	}
	raw := wire.EncodeEntry([]byte(key), payload)
	ok, err := tc.provider.Set(ctx, sk, raw, tc.cost(sk, raw), tc.spillTTL)
	if err != nil {
		tc.spillFailed(ctx, sk, err)
		return err
	}
	if !ok {
		tc.spillFailures.IncrementAndGet()
		tc.hooks.SpillRejected(sk)
		tc.log.Debug("spill rejected by provider (pressure)", boundcache.Fields{"key": key})
		// an older copy may still sit under sk
		_ = tc.provider.Del(context.WithoutCancel(ctx), sk)
		return nil
	}
	tc.spills.IncrementAndGet()
	return nil
}

func (tc *Cache[V]) spillFailed(ctx context.Context, sk string, err error) {
	tc.spillFailures.IncrementAndGet()
	tc.hooks.SpillError(sk, err)
	tc.log.Warn("spill failed", boundcache.Fields{"storageKey": sk, "err": err})
	_ = tc.provider.Del(context.WithoutCancel(ctx), sk)
}

// selfHeal deletes a bad store entry unless the key was written since it was
// read, in which case the entry may already be a newer, valid one.
func (tc *Cache[V]) selfHeal(ctx context.Context, tk *ticket, sk, reason string) {
	var out []*op[V]
	tc.front.Do(func(*boundcache.LRU[string, V]) {
		defer tc.unwatch(tk)
		if !tc.valid(tk) {
			return
		}
		tc.pending = append(tc.pending, &op[V]{key: tk.key, del: true})
		out = tc.takePending()
	})
	if out == nil {
		return
	}
	_ = tc.apply(ctx, out)
	tc.hooks.SelfHeal(sk, reason)
	tc.log.Debug("self-healed spilled entry", boundcache.Fields{"storageKey": sk, "reason": reason})
}

func (tc *Cache[V]) storageKey(key string) string {
	return util.StorageKey("spill:"+tc.ns, key)
}

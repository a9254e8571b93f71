// Package sloghooks reports boundcache Hooks events through log/slog, with
// per-event sampling and key redaction.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/boundcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	EvictEvery    uint64
	SelfHealEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	evictCtr    atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ boundcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n <= 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Evicted(reason string, capacity int) {
	if h.l == nil || !sample(h.opts.EvictEvery, &h.evictCtr) {
		return
	}
	h.l.Debug("boundcache.evicted",
		"reason", reason,
		"capacity", capacity)
}

func (h *Hooks) SpillRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Info("boundcache.spill_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) SpillError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("boundcache.spill_error",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("boundcache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) SnapshotEntryDropped(index int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("boundcache.snapshot_entry_dropped",
		"index", index,
		"err", err)
}

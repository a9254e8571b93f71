// Package snapshot saves an LRU to a byte stream and restores it with the
// same recency order.
package snapshot

import (
	"fmt"
	"io"

	"github.com/unkn0wn-root/boundcache"
	c "github.com/unkn0wn-root/boundcache/codec"
	"github.com/unkn0wn-root/boundcache/internal/wire"
)

// Write encodes every entry of l, oldest first. Recency and stats are not
// touched. The caller must hold whatever lock guards l.
func Write[K comparable, V any](w io.Writer, l *boundcache.LRU[K, V], kc c.Codec[K], vc c.Codec[V]) error {
	items := make([]wire.Item, 0, l.Len())
	var err error
	l.Range(func(k K, v V) bool {
		var it wire.Item
		if it.Key, err = kc.Encode(k); err != nil {
			err = fmt.Errorf("snapshot: encode key %d: %w", len(items), err)
			return false
		}
		if it.Payload, err = vc.Encode(v); err != nil {
			err = fmt.Errorf("snapshot: encode value %d: %w", len(items), err)
			return false
		}
		items = append(items, it)
		return true
	})
	if err != nil {
		return err
	}
	if _, err := w.Write(wire.EncodeSnapshot(items)); err != nil {
		return fmt.Errorf("snapshot: write: %w", err)
	}
	return nil
}

// Read replays a snapshot into l with Put, oldest first, so the newest entry
// ends up most recently used. If the snapshot holds more entries than l can,
// the oldest are evicted by the replay. Entries that fail to decode are
// skipped and reported to hooks (nil is allowed). Returns the number of
// entries applied.
func Read[K comparable, V any](r io.Reader, l *boundcache.LRU[K, V], kc c.Codec[K], vc c.Codec[V], hooks boundcache.Hooks) (int, error) {
	if hooks == nil {
		hooks = boundcache.NopHooks{}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("snapshot: read: %w", err)
	}
	items, err := wire.DecodeSnapshot(b)
	if err != nil {
		return 0, fmt.Errorf("snapshot: %w", err)
	}

	n := 0
	for i, it := range items {
		k, err := kc.Decode(it.Key)
		if err != nil {
			hooks.SnapshotEntryDropped(i, err)
			continue
		}
		v, err := vc.Decode(it.Payload)
		if err != nil {
			hooks.SnapshotEntryDropped(i, err)
			continue
		}
		l.Put(k, v)
		n++
	}
	return n, nil
}

package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// MaxInlineKey is the longest user key embedded verbatim in a storage key.
const MaxInlineKey = 200

// StorageKey namespaces key under prefix. Keys longer than MaxInlineKey are
// replaced by the first 16 hex chars of their SHA-256, so callers must verify
// the full key stored alongside the value.
func StorageKey(prefix, key string) string {
	if len(key) <= MaxInlineKey {
		return prefix + ":" + key
	}
	sum := sha256.Sum256([]byte(key))
	return prefix + ":h:" + hex.EncodeToString(sum[:8])
}

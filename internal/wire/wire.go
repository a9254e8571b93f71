// Package wire frames cache entries for the tier backing store and for
// snapshots. Every frame starts with a magic, a version and a kind byte so
// foreign or truncated bytes are rejected as ErrCorrupt.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

const (
	version      byte = 1
	kindEntry    byte = 1
	kindSnapshot byte = 2

	hdrLen = 4 + 1 + 1
)

var (
	ErrCorrupt = errors.New("boundcache: corrupt frame")
	magic4     = [...]byte{'B', 'L', 'R', 'U'}
)

func header(b []byte, kind byte) bool {
	return len(b) >= hdrLen && bytes.Equal(b[:4], magic4[:]) && b[4] == version && b[5] == kind
}

// Entry: magic(4) | ver(1) | kind(1=entry) | klen(u32 be) | key | vlen(u32 be) | payload
func EncodeEntry(key, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + 4 + len(key) + 4 + len(payload))
	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)
	writeChunk(&buf, key)
	writeChunk(&buf, payload)
	return buf.Bytes()
}

// DecodeEntry returns sub-slices of b. Trailing bytes are rejected.
func DecodeEntry(b []byte) (key, payload []byte, err error) {
	if !header(b, kindEntry) {
		return nil, nil, ErrCorrupt
	}
	off := hdrLen
	if key, off, err = readChunk(b, off); err != nil {
		return nil, nil, err
	}
	if payload, off, err = readChunk(b, off); err != nil {
		return nil, nil, err
	}
	if off != len(b) {
		return nil, nil, ErrCorrupt
	}
	return key, payload, nil
}

// Item is one snapshot record.
type Item struct {
	Key     []byte
	Payload []byte
}

// Snapshot:
//
//	magic(4) | ver(1) | kind(2=snapshot) | n(u32 be)
//	klen(u32 be) | key | vlen(u32 be) | payload   * n
func EncodeSnapshot(items []Item) []byte {
	total := hdrLen + 4
	for _, it := range items {
		total += 4 + len(it.Key) + 4 + len(it.Payload)
	}

	var buf bytes.Buffer
	buf.Grow(total)
	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindSnapshot)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(items)))
	buf.Write(u4[:])

	for _, it := range items {
		writeChunk(&buf, it.Key)
		writeChunk(&buf, it.Payload)
	}
	return buf.Bytes()
}

func DecodeSnapshot(b []byte) ([]Item, error) {
	if !header(b, kindSnapshot) || len(b) < hdrLen+4 {
		return nil, ErrCorrupt
	}
	off := hdrLen
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// every item needs at least 8 bytes of length prefixes
	if n > (len(b)-off)/8 {
		return nil, ErrCorrupt
	}

	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		var (
			it  Item
			err error
		)
		if it.Key, off, err = readChunk(b, off); err != nil {
			return nil, err
		}
		if it.Payload, off, err = readChunk(b, off); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if off != len(b) {
		return nil, ErrCorrupt
	}
	return items, nil
}

func writeChunk(buf *bytes.Buffer, p []byte) {
	if uint64(len(p)) > math.MaxUint32 {
		panic("boundcache: chunk exceeds 4GiB")
	}
	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(p)))
	buf.Write(u4[:])
	buf.Write(p)
}

func readChunk(b []byte, off int) ([]byte, int, error) {
	if off+4 > len(b) {
		return nil, 0, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if n < 0 || n > len(b)-off { // overflow-safe bound check
		return nil, 0, ErrCorrupt
	}
	return b[off : off+n : off+n], off + n, nil
}

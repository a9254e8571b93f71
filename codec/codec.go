// Package codec converts cache values to and from bytes for the tier backing
// store and for snapshots.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ByName returns the built-in codec registered under name:
// "json", "cbor" or "msgpack". ok is false for unknown names.
func ByName[V any](name string) (c Codec[V], ok bool) {
	switch name {
	case "json", "":
		return JSON[V]{}, true
	case "cbor":
		cb, err := NewCBOR[V](false)
		if err != nil {
			return nil, false
		}
		return cb, true
	case "msgpack":
		return Msgpack[V]{}, true
	}
	return nil, false
}

// Package keycodec implements the order-preserving byte encodings used for
// secondary-index keys: the lexicographic order of the encoded bytes must
// match the natural order of the source value for every supported scalar
// type. Null and nested (list/map) values are not indexable; callers must
// check document.Value.IsScalar before encoding.
package keycodec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind identifies which scalar encoding a key byte string was produced with.
// It is carried alongside the encoded bytes wherever the source type isn't
// otherwise known (e.g. in index maintenance bookkeeping).
type Kind byte

const (
	KindInt Kind = iota + 1
	KindDouble
	KindString
	KindBool
)

// Separator terminates the value portion of an index key, ahead of the
// document id. Encoded scalars never produce this byte (by construction for
// Int/Double/Bool; string values containing '#' are an accepted risk, see
// spec.md §9 and §3).
const Separator = '#'

// EncodeInt encodes a signed 64-bit integer so that byte-lexicographic order
// matches signed integer order: bias by 2^63, then emit 8 bytes big-endian.
func EncodeInt(v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v)^(uint64(1)<<63))
	return buf[:]
}

// DecodeInt reverses EncodeInt. Provided for tests and the WAL CDC JSON
// projection, not used on the hot query path.
func DecodeInt(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("keycodec: invalid int key length %d", len(b))
	}
	u := binary.BigEndian.Uint64(b)
	return int64(u ^ (uint64(1) << 63)), nil
}

// EncodeDouble encodes a float64 for IEEE-754-consistent total order across
// all non-NaN values: if the sign bit is set, invert all bits; otherwise
// invert only the sign bit. Callers must reject NaN before calling this
// (see document.Value, which enforces this at construction).
func EncodeDouble(v float64) []byte {
	bits := math.Float64bits(v)
	if bits&(uint64(1)<<63) != 0 {
		bits = ^bits
	} else {
		bits |= uint64(1) << 63
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	return buf[:]
}

// DecodeDouble reverses EncodeDouble.
func DecodeDouble(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("keycodec: invalid double key length %d", len(b))
	}
	bits := binary.BigEndian.Uint64(b)
	if bits&(uint64(1)<<63) != 0 {
		bits &^= uint64(1) << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}

// EncodeString emits the UTF-8 bytes unmodified; Go's native byte-slice
// comparison already matches codepoint order for valid UTF-8.
func EncodeString(v string) []byte {
	return []byte(v)
}

// DecodeString reverses EncodeString.
func DecodeString(b []byte) string {
	return string(b)
}

// EncodeBool emits the ASCII literals "false"/"true"; "false" < "true"
// byte-lexicographically, matching false < true.
func EncodeBool(v bool) []byte {
	if v {
		return []byte("true")
	}
	return []byte("false")
}

// DecodeBool reverses EncodeBool.
func DecodeBool(b []byte) (bool, error) {
	switch string(b) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("keycodec: invalid bool key %q", b)
	}
}

// IsNaN reports whether v cannot be encoded by EncodeDouble. Callers must
// reject such values at the API boundary (spec.md §9 Open Question).
func IsNaN(v float64) bool {
	return math.IsNaN(v)
}

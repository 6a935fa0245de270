// Package indexkey encodes property values into byte keys whose
// lexicographic order matches the natural order of the value (for
// value-typed index entries) or is stable but otherwise unspecified (for
// hash-typed entries). Keys are one-way: they are never decoded back to a
// value, the record itself is the source of truth.
package indexkey

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/zeebo/xxh3"
)

// stringPrefixLen is the number of UTF-8 bytes of a string kept verbatim
// before the hash suffix, so two strings sharing this prefix still collide
// only on hash collision rather than on prefix truncation alone.
const stringPrefixLen = 1024

// EncodeByte is the identity encoding: a Byte value is already an
// unsigned, order-correct single byte.
func EncodeByte(v byte) []byte { return []byte{v} }

// EncodeInt big-endian encodes a 32-bit signed int with its sign bit
// flipped, so two's-complement order becomes unsigned byte order.
func EncodeInt(v int32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v)^0x80000000)
	return buf[:]
}

// EncodeLong is EncodeInt's 64-bit counterpart.
func EncodeLong(v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v)^0x8000000000000000)
	return buf[:]
}

// EncodeFloat big-endian encodes an IEEE-754 float32 so that
// -Inf < ... < -0 < +0 < ... < +Inf < NaN. Non-negative values (sign bit
// 0) get their sign bit set; negative values get every bit flipped so
// that a more-negative value sorts lower. NaN bit patterns. after the
// sign-dependent transform, sort above every finite/infinite value
// because Go's math.Float32bits for quiet NaNs already carries the
// maximal exponent+mantissa pattern and this encoding preserves relative
// order within same-sign values including NaN vs Inf.
func EncodeFloat(v float32) []byte {
	bits := math.Float32bits(v)
	if bits&0x80000000 == 0 {
		bits |= 0x80000000
	} else {
		bits = ^bits
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], bits)
	return buf[:]
}

// EncodeDouble is EncodeFloat's 64-bit counterpart.
func EncodeDouble(v float64) []byte {
	bits := math.Float64bits(v)
	if bits&0x8000000000000000 == 0 {
		bits |= 0x8000000000000000
	} else {
		bits = ^bits
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	return buf[:]
}

// EncodeString produces the 1024-byte-truncated-prefix + 8-byte XXH3-64
// hash-of-the-full-string key. When caseSensitive is false the string is
// Unicode-lowercased before truncation and hashing.
func EncodeString(s string, caseSensitive bool) []byte {
	if !caseSensitive {
		s = strings.ToLower(s)
	}
	prefix := s
	if len(prefix) > stringPrefixLen {
		prefix = prefix[:stringPrefixLen]
	}
	h := xxh3.HashString(s)
	out := make([]byte, len(prefix)+8)
	copy(out, prefix)
	binary.BigEndian.PutUint64(out[len(prefix):], h)
	return out
}

// Concat joins per-property keys in index-declaration order into one
// composite key. Components are joined without length prefixes. With
// fixed-width components a byte-wise comparison of the concatenation
// orders by each component in declaration order; a variable-length String
// component is not delimited, so its trailing bytes compare against the
// bytes of a longer string in the same position.
func Concat(parts ...[]byte) []byte {
	if len(parts) == 1 {
		return parts[0]
	}
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Package varint implements the little-endian base-128 integer codec and the
// sparse-array codec built on top of it, used by every binary record stream
// in this module (tweets, tweet params, user params, topic params, tweet ids).
package varint

import "math/bits"

// Encode appends the base-128 varint encoding of v to dst and returns the
// result. For each 7-bit group of v from low to high, the emitted byte has
// its MSB set if more groups follow.
func Encode(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// Decode reads a varint from the front of data and returns the decoded value
// and the number of bytes consumed. It returns (0, 0) if data ends mid-varint
// or if the accumulated shift would overflow a uint64.
func Decode(data []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, b := range data {
		if shift >= 64 {
			return 0, 0
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
	}
	return 0, 0
}

// DecodeInto reads a varint from the front of data into an int of width bits
// (32 or 64), failing if the value does not fit. Used for the 32-bit
// user/word/topic ids and the 64-bit tweet ids.
func DecodeInto(data []byte, bitWidth int) (uint64, int) {
	v, n := Decode(data)
	if n == 0 {
		return 0, 0
	}
	if bitWidth < 64 && bits.Len64(v) > bitWidth {
		return 0, 0
	}
	return v, n
}

// EncodeSparse encodes values (length L, zero entries treated as absent) as
// varint(nonzero_count) followed by nonzero_count repetitions of
// (varint(index_delta_from_previous_reported_index), varint(value)).
func EncodeSparse(dst []byte, values []uint64) []byte {
	count := 0
	for _, v := range values {
		if v != 0 {
			count++
		}
	}
	dst = Encode(dst, uint64(count))
	prev := 0
	for i, v := range values {
		if v == 0 {
			continue
		}
		dst = Encode(dst, uint64(i-prev))
		dst = Encode(dst, v)
		prev = i
	}
	return dst
}

// DecodeSparse reconstructs a length-L array from a sparse-array encoding,
// initializing every entry to zero and overwriting the reported indices. It
// returns the number of bytes consumed, or 0 on buffer underrun or on an
// index that would overshoot length.
func DecodeSparse(data []byte, length int) ([]uint64, int) {
	values := make([]uint64, length)

	count, n := Decode(data)
	if n == 0 {
		return nil, 0
	}
	offset := n
	index := 0
	for i := uint64(0); i < count; i++ {
		delta, n := Decode(data[offset:])
		if n == 0 {
			return nil, 0
		}
		offset += n
		index += int(delta)
		if index >= length {
			return nil, 0
		}

		value, n := Decode(data[offset:])
		if n == 0 {
			return nil, 0
		}
		offset += n
		values[index] = value
	}
	return values, offset
}

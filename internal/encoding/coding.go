// Package encoding provides the binary primitives used by the sequence file
// format.
//
// Fixed-width integers are big-endian so that framed lengths read the same
// way in a hex dump as they do in the format description. Variable-length
// integers use 7-bit groups with MSB continuation and carry the lengths of
// header strings and block columns.
package encoding

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

// MaxVarint64Length is the maximum number of bytes a varint64 can occupy.
const MaxVarint64Length = 10

var (
	// ErrVarintOverflow is returned when a varint exceeds the maximum value.
	ErrVarintOverflow = errors.New("encoding: varint overflow")

	// ErrVarintTermination is returned when varint doesn't terminate properly.
	ErrVarintTermination = errors.New("encoding: varint not terminated")
)

// -----------------------------------------------------------------------------
// Fixed-width encoding (big-endian)
// -----------------------------------------------------------------------------

// PutUint32 encodes v into the first 4 bytes of dst.
// REQUIRES: dst has at least 4 bytes.
func PutUint32(dst []byte, v uint32) {
	binary.BigEndian.PutUint32(dst, v)
}

// Uint32 decodes a uint32 from the first 4 bytes of src.
// REQUIRES: src has at least 4 bytes.
func Uint32(src []byte) uint32 {
	return binary.BigEndian.Uint32(src)
}

// PutUint64 encodes v into the first 8 bytes of dst.
// REQUIRES: dst has at least 8 bytes.
func PutUint64(dst []byte, v uint64) {
	binary.BigEndian.PutUint64(dst, v)
}

// Uint64 decodes a uint64 from the first 8 bytes of src.
// REQUIRES: src has at least 8 bytes.
func Uint64(src []byte) uint64 {
	return binary.BigEndian.Uint64(src)
}

// AppendUint64 appends v to dst and returns the extended slice.
func AppendUint64(dst []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, v)
}

// -----------------------------------------------------------------------------
// Variable-length encoding (7-bit with MSB continuation)
// -----------------------------------------------------------------------------

// AppendVarint64 appends value as a varint to dst and returns the extended
// slice.
func AppendVarint64(dst []byte, value uint64) []byte {
	for value >= 0x80 {
		dst = append(dst, byte(value)|0x80)
		value >>= 7
	}
	return append(dst, byte(value))
}

// DecodeVarint64 decodes a varint64 from src.
// Returns the decoded value and the number of bytes consumed.
func DecodeVarint64(src []byte) (value uint64, bytesRead int, err error) {
	for shift := uint(0); shift < 7*MaxVarint64Length; shift += 7 {
		if bytesRead >= len(src) {
			return 0, 0, ErrVarintTermination
		}
		b := src[bytesRead]
		bytesRead++
		if b < 0x80 {
			return value | uint64(b)<<shift, bytesRead, nil
		}
		value |= uint64(b&0x7f) << shift
	}
	return 0, 0, ErrVarintOverflow
}

// ReadVarint64 reads a varint from r one byte at a time.
// It returns io.EOF only if no byte was read.
func ReadVarint64(r io.ByteReader) (uint64, error) {
	var result uint64
	for shift := uint(0); shift < 7*MaxVarint64Length; shift += 7 {
		b, err := r.ReadByte()
		if err != nil {
			if shift > 0 && errors.Is(err, io.EOF) {
				return 0, ErrVarintTermination
			}
			return 0, err
		}
		if b < 0x80 {
			return result | uint64(b)<<shift, nil
		}
		result |= uint64(b&0x7f) << shift
	}
	return 0, ErrVarintOverflow
}

// AppendLengthPrefixedString appends value to dst behind its varint length.
func AppendLengthPrefixedString(dst []byte, value string) []byte {
	dst = AppendVarint64(dst, uint64(len(value)))
	return append(dst, value...)
}

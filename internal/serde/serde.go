// Package serde serializes record keys and values.
//
// Each Serializer handles one type and is registered under a type tag. The
// tag is written once into a file header; readers resolve it back to a
// Serializer through a Registry when the file is opened.
//
// Serialized forms are chosen so that Compare can order them without
// decoding where possible (bytes and strings compare lexicographically,
// integers are stored big-endian with the sign bit flipped).
package serde

import (
	"bytes"
	"encoding"

	coding "github.com/aalhour/seqfile/internal/encoding"
	"github.com/cockroachdb/errors"
)

// ErrUnsupportedType is returned when a serializer is handed a Go value it
// cannot encode or decode into.
var ErrUnsupportedType = errors.New("serde: unsupported type")

// Serializer encodes and decodes values of one type and orders their
// serialized forms.
type Serializer interface {
	// Name is the type tag stored in file headers.
	Name() string

	// Append appends the serialized form of v to dst.
	Append(dst []byte, v any) ([]byte, error)

	// Decode decodes src into v, which must be a pointer.
	Decode(src []byte, v any) error

	// Compare orders two serialized values.
	Compare(a, b []byte) int
}

// Built-in type tags.
const (
	BytesType  = "bytes"
	StringType = "string"
	Int64Type  = "int64"
	Uint64Type = "uint64"
)

// Bytes serializes []byte values verbatim.
type Bytes struct{}

// Name implements Serializer.
func (Bytes) Name() string { return BytesType }

// Append implements Serializer. It accepts []byte and *[]byte.
func (Bytes) Append(dst []byte, v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return append(dst, b...), nil
	case *[]byte:
		return append(dst, *b...), nil
	default:
		return dst, errors.Wrapf(ErrUnsupportedType, "bytes: %T", v)
	}
}

// Decode implements Serializer. v must be *[]byte; the decoded bytes are
// copied into its backing array.
func (Bytes) Decode(src []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return errors.Wrapf(ErrUnsupportedType, "bytes: %T", v)
	}
	*b = append((*b)[:0], src...)
	return nil
}

// Compare implements Serializer.
func (Bytes) Compare(a, b []byte) int { return bytes.Compare(a, b) }

// String serializes UTF-8 strings verbatim.
type String struct{}

// Name implements Serializer.
func (String) Name() string { return StringType }

// Append implements Serializer. It accepts string and *string.
func (String) Append(dst []byte, v any) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return append(dst, s...), nil
	case *string:
		return append(dst, *s...), nil
	default:
		return dst, errors.Wrapf(ErrUnsupportedType, "string: %T", v)
	}
}

// Decode implements Serializer. v must be *string.
func (String) Decode(src []byte, v any) error {
	s, ok := v.(*string)
	if !ok {
		return errors.Wrapf(ErrUnsupportedType, "string: %T", v)
	}
	*s = string(src)
	return nil
}

// Compare implements Serializer.
func (String) Compare(a, b []byte) int { return bytes.Compare(a, b) }

// Int64 serializes signed integers as 8 big-endian bytes with the sign bit
// flipped, so that the byte order matches numeric order.
type Int64 struct{}

// Name implements Serializer.
func (Int64) Name() string { return Int64Type }

// Append implements Serializer. It accepts int, int64 and *int64.
func (Int64) Append(dst []byte, v any) ([]byte, error) {
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case *int64:
		n = *x
	case int:
		n = int64(x)
	default:
		return dst, errors.Wrapf(ErrUnsupportedType, "int64: %T", v)
	}
	return coding.AppendUint64(dst, uint64(n)^(1<<63)), nil
}

// Decode implements Serializer. v must be *int64.
func (Int64) Decode(src []byte, v any) error {
	p, ok := v.(*int64)
	if !ok {
		return errors.Wrapf(ErrUnsupportedType, "int64: %T", v)
	}
	if len(src) != 8 {
		return errors.Newf("serde: int64 needs 8 bytes, got %d", len(src))
	}
	*p = int64(coding.Uint64(src) ^ (1 << 63))
	return nil
}

// Compare implements Serializer.
func (Int64) Compare(a, b []byte) int { return bytes.Compare(a, b) }

// Uint64 serializes unsigned integers as 8 big-endian bytes.
type Uint64 struct{}

// Name implements Serializer.
func (Uint64) Name() string { return Uint64Type }

// Append implements Serializer. It accepts uint64 and *uint64.
func (Uint64) Append(dst []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case uint64:
		return coding.AppendUint64(dst, x), nil
	case *uint64:
		return coding.AppendUint64(dst, *x), nil
	default:
		return dst, errors.Wrapf(ErrUnsupportedType, "uint64: %T", v)
	}
}

// Decode implements Serializer. v must be *uint64.
func (Uint64) Decode(src []byte, v any) error {
	p, ok := v.(*uint64)
	if !ok {
		return errors.Wrapf(ErrUnsupportedType, "uint64: %T", v)
	}
	if len(src) != 8 {
		return errors.Newf("serde: uint64 needs 8 bytes, got %d", len(src))
	}
	*p = coding.Uint64(src)
	return nil
}

// Compare implements Serializer.
func (Uint64) Compare(a, b []byte) int { return bytes.Compare(a, b) }

// Binary serializes any type implementing encoding.BinaryMarshaler, decoding
// into values implementing encoding.BinaryUnmarshaler. Without a CompareFunc
// it orders serialized forms bytewise.
type Binary struct {
	TypeName    string
	CompareFunc func(a, b []byte) int
}

// Name implements Serializer.
func (s Binary) Name() string { return s.TypeName }

// Append implements Serializer.
func (s Binary) Append(dst []byte, v any) ([]byte, error) {
	if a, ok := v.(encoding.BinaryAppender); ok {
		return a.AppendBinary(dst)
	}
	m, ok := v.(encoding.BinaryMarshaler)
	if !ok {
		return dst, errors.Wrapf(ErrUnsupportedType, "%s: %T", s.TypeName, v)
	}
	b, err := m.MarshalBinary()
	if err != nil {
		return dst, err
	}
	return append(dst, b...), nil
}

// Decode implements Serializer.
func (s Binary) Decode(src []byte, v any) error {
	u, ok := v.(encoding.BinaryUnmarshaler)
	if !ok {
		return errors.Wrapf(ErrUnsupportedType, "%s: %T", s.TypeName, v)
	}
	return u.UnmarshalBinary(src)
}

// Compare implements Serializer.
func (s Binary) Compare(a, b []byte) int {
	if s.CompareFunc != nil {
		return s.CompareFunc(a, b)
	}
	return bytes.Compare(a, b)
}

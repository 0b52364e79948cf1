package seqfile

import (
	"github.com/aalhour/seqfile/internal/compression"
)

// ValueBytes is a record value kept as stored: a serialized value that may
// still be compressed. It lets records be copied between files without a
// decode and re-encode round trip.
type ValueBytes struct {
	data    []byte
	codec   compression.Codec // non-nil iff data is compressed
	decoder *compression.Decoder
}

// NewValueBytes returns an uncompressed value holding data. The slice is
// not copied.
func NewValueBytes(data []byte) *ValueBytes {
	return &ValueBytes{data: data}
}

// Size returns the number of stored bytes.
func (v *ValueBytes) Size() int { return len(v.data) }

// Bytes returns the stored bytes, compressed if Compressed reports true.
func (v *ValueBytes) Bytes() []byte { return v.data }

// Compressed reports whether the stored bytes are compressed.
func (v *ValueBytes) Compressed() bool { return v.codec != nil }

// CodecName returns the name of the codec the bytes are compressed with, or
// "" for an uncompressed value.
func (v *ValueBytes) CodecName() string {
	if v.codec == nil {
		return ""
	}
	return v.codec.Name()
}

// Uncompressed appends the serialized, uncompressed value to dst.
func (v *ValueBytes) Uncompressed(dst []byte) ([]byte, error) {
	if v.codec == nil {
		return append(dst, v.data...), nil
	}
	if v.decoder == nil || v.decoder.Codec().Name() != v.codec.Name() {
		v.decoder = compression.NewDecoder(v.codec)
	}
	out, err := v.decoder.DecodeAll(dst, v.data)
	if err != nil {
		return dst, markCorruption(err)
	}
	return out, nil
}

// set copies data into v.
func (v *ValueBytes) set(data []byte, codec compression.Codec, decoder *compression.Decoder) {
	v.data = append(v.data[:0], data...)
	v.codec = codec
	if decoder != nil {
		v.decoder = decoder
	}
}

// RawRecord is a record read without deserialization.
type RawRecord struct {
	Key   []byte
	Value ValueBytes
}

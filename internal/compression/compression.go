// Package compression adapts compression libraries to the stream interface
// used by sequence files.
//
// A Codec produces a Compressor (write side) and a Decompressor (read side).
// Both are resettable so that one stream object serves every record value or
// block column in a file: the writer calls Reset, writes the payload, then
// Finish; the reader calls Reset on the compressed span and reads it out.
//
// Codecs are identified by name in the file header and resolved through a
// Registry. The Default registry holds the built-in codecs and is frozen at
// first use.
package compression

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
)

// Compressor is a resettable compressing stream.
type Compressor interface {
	io.Writer

	// Finish writes all pending output and the stream trailer to the
	// destination without closing the destination. The compressor must be
	// Reset before it is written to again.
	Finish() error

	// Reset discards all state and retargets the compressor at w.
	Reset(w io.Writer)
}

// Decompressor is a resettable decompressing stream.
type Decompressor interface {
	io.Reader

	// Reset discards all state and retargets the decompressor at r.
	Reset(r io.Reader) error

	// Close releases resources held by the decompressor. It does not close
	// the source.
	Close() error
}

// Codec creates compressing and decompressing streams for one algorithm.
// Implementations must be safe for concurrent use; the streams they return
// are not.
type Codec interface {
	// Name is the identifier stored in file headers.
	Name() string

	// NewCompressor returns a compressor writing to w.
	NewCompressor(w io.Writer) (Compressor, error)

	// NewDecompressor returns a decompressor reading from r. Some formats
	// read a stream header eagerly, so r should already hold the data.
	NewDecompressor(r io.Reader) (Decompressor, error)
}

// Encoder compresses whole buffers with a single reusable Compressor.
// An Encoder is not safe for concurrent use.
type Encoder struct {
	codec Codec
	comp  Compressor
	buf   bytes.Buffer
}

// NewEncoder returns an Encoder for c.
func NewEncoder(c Codec) *Encoder {
	return &Encoder{codec: c}
}

// Codec returns the codec used by e.
func (e *Encoder) Codec() Codec {
	return e.codec
}

// EncodeAll appends the compressed form of src to dst.
func (e *Encoder) EncodeAll(dst, src []byte) ([]byte, error) {
	e.buf.Reset()
	if e.comp == nil {
		comp, err := e.codec.NewCompressor(&e.buf)
		if err != nil {
			return dst, errors.Wrapf(err, "compression: %s compressor", e.codec.Name())
		}
		e.comp = comp
	} else {
		e.comp.Reset(&e.buf)
	}
	if _, err := e.comp.Write(src); err != nil {
		return dst, errors.Wrapf(err, "compression: %s write", e.codec.Name())
	}
	if err := e.comp.Finish(); err != nil {
		return dst, errors.Wrapf(err, "compression: %s finish", e.codec.Name())
	}
	return append(dst, e.buf.Bytes()...), nil
}

// Decoder decompresses whole buffers with a single reusable Decompressor.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	codec Codec
	dec   Decompressor
	src   bytes.Reader
}

// NewDecoder returns a Decoder for c.
func NewDecoder(c Codec) *Decoder {
	return &Decoder{codec: c}
}

// Codec returns the codec used by d.
func (d *Decoder) Codec() Codec {
	return d.codec
}

// DecodeAll appends the decompressed form of src to dst.
func (d *Decoder) DecodeAll(dst, src []byte) ([]byte, error) {
	d.src.Reset(src)
	if d.dec == nil {
		dec, err := d.codec.NewDecompressor(&d.src)
		if err != nil {
			return dst, errors.Wrapf(err, "compression: %s decompressor", d.codec.Name())
		}
		d.dec = dec
	} else if err := d.dec.Reset(&d.src); err != nil {
		return dst, errors.Wrapf(err, "compression: %s reset", d.codec.Name())
	}
	out := bytes.NewBuffer(dst)
	if _, err := io.Copy(out, d.dec); err != nil {
		return dst, errors.Wrapf(err, "compression: %s read", d.codec.Name())
	}
	return out.Bytes(), nil
}

// Close releases the underlying decompressor.
func (d *Decoder) Close() error {
	if d.dec == nil {
		return nil
	}
	err := d.dec.Close()
	d.dec = nil
	return err
}

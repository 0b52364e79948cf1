package compression

import (
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Built-in codec names.
const (
	Deflate = "deflate"
	Gzip    = "gzip"
	Snappy  = "snappy"
	LZ4     = "lz4"
	Zstd    = "zstd"
	S2      = "s2"
)

// DefaultCodecName is used when compression is requested without a codec.
const DefaultCodecName = Deflate

// -----------------------------------------------------------------------------
// deflate (zlib framing)
// -----------------------------------------------------------------------------

// DeflateCodec writes zlib-framed deflate streams.
type DeflateCodec struct {
	// Level is a zlib compression level; zero means zlib.DefaultCompression.
	Level int
}

// Name implements Codec.
func (c DeflateCodec) Name() string { return Deflate }

// NewCompressor implements Codec.
func (c DeflateCodec) NewCompressor(w io.Writer) (Compressor, error) {
	level := c.Level
	if level == 0 {
		level = zlib.DefaultCompression
	}
	zw, err := zlib.NewWriterLevel(w, level)
	if err != nil {
		return nil, err
	}
	return closingCompressor{zw}, nil
}

// NewDecompressor implements Codec.
func (c DeflateCodec) NewDecompressor(r io.Reader) (Decompressor, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &zlibDecompressor{ReadCloser: zr}, nil
}

type zlibDecompressor struct {
	io.ReadCloser
}

func (d *zlibDecompressor) Reset(r io.Reader) error {
	return d.ReadCloser.(zlib.Resetter).Reset(r, nil)
}

// -----------------------------------------------------------------------------
// gzip
// -----------------------------------------------------------------------------

// GzipCodec writes gzip members.
type GzipCodec struct {
	// Level is a gzip compression level; zero means gzip.DefaultCompression.
	Level int
}

// Name implements Codec.
func (c GzipCodec) Name() string { return Gzip }

// NewCompressor implements Codec.
func (c GzipCodec) NewCompressor(w io.Writer) (Compressor, error) {
	level := c.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	gw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, err
	}
	return closingCompressor{gw}, nil
}

// NewDecompressor implements Codec.
func (c GzipCodec) NewDecompressor(r io.Reader) (Decompressor, error) {
	return gzip.NewReader(r)
}

// -----------------------------------------------------------------------------
// snappy (framed)
// -----------------------------------------------------------------------------

// SnappyCodec writes snappy framed streams.
type SnappyCodec struct{}

// Name implements Codec.
func (SnappyCodec) Name() string { return Snappy }

// NewCompressor implements Codec.
func (SnappyCodec) NewCompressor(w io.Writer) (Compressor, error) {
	return closingCompressor{snappy.NewBufferedWriter(w)}, nil
}

// NewDecompressor implements Codec.
func (SnappyCodec) NewDecompressor(r io.Reader) (Decompressor, error) {
	return &resetReader[*snappy.Reader]{r: snappy.NewReader(r)}, nil
}

// -----------------------------------------------------------------------------
// lz4 (frame format)
// -----------------------------------------------------------------------------

// LZ4Codec writes LZ4 frames.
type LZ4Codec struct {
	// Level selects the compression level; zero means lz4.Fast.
	Level lz4.CompressionLevel
}

// Name implements Codec.
func (c LZ4Codec) Name() string { return LZ4 }

// NewCompressor implements Codec.
func (c LZ4Codec) NewCompressor(w io.Writer) (Compressor, error) {
	lw := lz4.NewWriter(w)
	level := c.Level
	if level == 0 {
		level = lz4.Fast
	}
	if err := lw.Apply(lz4.CompressionLevelOption(level), lz4.ConcurrencyOption(1)); err != nil {
		return nil, err
	}
	return closingCompressor{lw}, nil
}

// NewDecompressor implements Codec.
func (c LZ4Codec) NewDecompressor(r io.Reader) (Decompressor, error) {
	return &resetReader[*lz4.Reader]{r: lz4.NewReader(r)}, nil
}

// -----------------------------------------------------------------------------
// zstd
// -----------------------------------------------------------------------------

// ZstdCodec writes Zstandard frames.
type ZstdCodec struct {
	// Level is the encoder level; zero means zstd.SpeedDefault.
	Level zstd.EncoderLevel
}

// Name implements Codec.
func (c ZstdCodec) Name() string { return Zstd }

// NewCompressor implements Codec.
func (c ZstdCodec) NewCompressor(w io.Writer) (Compressor, error) {
	level := c.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return closingCompressor{enc}, nil
}

// NewDecompressor implements Codec.
func (c ZstdCodec) NewDecompressor(r io.Reader) (Decompressor, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return zstdDecompressor{dec}, nil
}

type zstdDecompressor struct {
	*zstd.Decoder
}

func (d zstdDecompressor) Close() error {
	d.Decoder.Close()
	return nil
}

// -----------------------------------------------------------------------------
// s2 (snappy-compatible framing, faster)
// -----------------------------------------------------------------------------

// S2Codec writes S2 streams.
type S2Codec struct{}

// Name implements Codec.
func (S2Codec) Name() string { return S2 }

// NewCompressor implements Codec.
func (S2Codec) NewCompressor(w io.Writer) (Compressor, error) {
	return closingCompressor{s2.NewWriter(w, s2.WriterConcurrency(1))}, nil
}

// NewDecompressor implements Codec.
func (S2Codec) NewDecompressor(r io.Reader) (Decompressor, error) {
	return &resetReader[*s2.Reader]{r: s2.NewReader(r)}, nil
}

// -----------------------------------------------------------------------------
// adapters
// -----------------------------------------------------------------------------

// closeResetWriter is satisfied by every library writer used here: Close
// flushes the stream trailer without closing the destination, and Reset makes
// the writer reusable.
type closeResetWriter interface {
	io.WriteCloser
	Reset(w io.Writer)
}

// closingCompressor maps Finish onto the library's Close.
type closingCompressor struct {
	w closeResetWriter
}

func (c closingCompressor) Write(p []byte) (int, error) { return c.w.Write(p) }
func (c closingCompressor) Finish() error               { return c.w.Close() }
func (c closingCompressor) Reset(w io.Writer)           { c.w.Reset(w) }

// resetReader adapts readers whose Reset has no error result.
type resetReader[R interface {
	io.Reader
	Reset(io.Reader)
}] struct {
	r R
}

func (d *resetReader[R]) Read(p []byte) (int, error) { return d.r.Read(p) }

func (d *resetReader[R]) Reset(r io.Reader) error {
	d.r.Reset(r)
	return nil
}

func (d *resetReader[R]) Close() error { return nil }

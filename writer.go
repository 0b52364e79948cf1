package seqfile

// writer.go implements sequence file writing.
//
// A Writer serializes records through the key and value serializers named
// in its options, frames them according to the compression regime and
// interleaves sync markers. In CompressionNone and CompressionRecord files a
// marker precedes a record once at least SyncInterval bytes were written
// since the previous one; the marker at the end of the header counts as the
// first. In CompressionBlock files every block starts with a marker.

import (
	"bufio"
	"math"

	"github.com/aalhour/seqfile/internal/compression"
	"github.com/aalhour/seqfile/internal/encoding"
	"github.com/aalhour/seqfile/internal/logging"
	"github.com/aalhour/seqfile/internal/serde"
	"github.com/aalhour/seqfile/internal/vfs"
	"github.com/cockroachdb/errors"
)

const writeBufferSize = 64 << 10

// Writer appends records to a sequence file.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	name   string
	f      vfs.WritableFile
	w      *bufio.Writer
	opts   WriterOptions
	hdr    header
	keySer serde.Serializer
	valSer serde.Serializer
	enc    *compression.Encoder // nil for CompressionNone

	pos      int64 // bytes handed to w
	lastSync int64 // pos right after the last sync marker
	block    *blockBuffer
	records  int64
	closed   bool

	frame  [recordHeaderSize]byte
	keyBuf []byte
	valBuf []byte
	encBuf []byte
	rawBuf []byte
	colBuf []byte
}

// Create creates name on fs and writes the file header. Options are
// validated before the file is created.
func Create(fs vfs.FS, name string, opts WriterOptions) (*Writer, error) {
	opts.ensureDefaults()
	res, err := opts.validate()
	if err != nil {
		return nil, err
	}
	f, err := fs.Create(name)
	if err != nil {
		return nil, errors.Wrapf(err, "seqfile: create %s", name)
	}
	w, err := newWriter(f, name, opts, res)
	if err != nil {
		_ = fs.Remove(name)
		return nil, err
	}
	return w, nil
}

// NewWriter writes a header to f and returns a Writer appending to it. The
// Writer owns f from then on: Close closes it, and so does a failed
// NewWriter.
func NewWriter(f vfs.WritableFile, opts WriterOptions) (*Writer, error) {
	opts.ensureDefaults()
	res, err := opts.validate()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return newWriter(f, "", opts, res)
}

func newWriter(f vfs.WritableFile, name string, opts WriterOptions, res resolved) (*Writer, error) {
	w := &Writer{
		name:   name,
		f:      f,
		w:      bufio.NewWriterSize(f, writeBufferSize),
		opts:   opts,
		keySer: res.keySer,
		valSer: res.valSer,
		hdr: header{
			version:     Version,
			keyType:     opts.KeyType,
			valueType:   opts.ValueType,
			compression: opts.Compression,
			codec:       opts.Codec,
			metadata:    opts.Metadata,
		},
	}
	if opts.SyncMarker != nil {
		w.hdr.sync = *opts.SyncMarker
	} else {
		w.hdr.sync = NewSyncMarker()
	}
	if res.codec != nil {
		w.enc = compression.NewEncoder(res.codec)
	}
	if opts.Compression == CompressionBlock {
		w.block = &blockBuffer{}
	}

	if err := w.write(w.hdr.appendTo(nil)); err != nil {
		_ = f.Close()
		return nil, err
	}
	w.lastSync = w.pos
	opts.Logger.Debugf(logging.NSWriter+"created %s: %s/%s compression=%s codec=%q",
		w.displayName(), opts.KeyType, opts.ValueType, opts.Compression, opts.Codec)
	return w, nil
}

func (w *Writer) displayName() string {
	if w.name == "" {
		return "<stream>"
	}
	return w.name
}

// write hands p to the buffered writer and advances the position.
func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	w.opts.Metrics.bytesWritten(n)
	if err != nil {
		return errors.Wrapf(err, "seqfile: write %s at offset %d", w.displayName(), w.pos)
	}
	return nil
}

// Append serializes key and value and appends them as one record.
func (w *Writer) Append(key, value any) error {
	if w.closed {
		return ErrClosed
	}
	var err error
	if w.keyBuf, err = w.keySer.Append(w.keyBuf[:0], key); err != nil {
		return errors.Wrapf(err, "seqfile: serialize key")
	}
	if w.valBuf, err = w.valSer.Append(w.valBuf[:0], value); err != nil {
		return errors.Wrapf(err, "seqfile: serialize value")
	}
	return w.appendSerialized(w.keyBuf, w.valBuf)
}

// AppendRaw appends a serialized key and a stored value. A value compressed
// with the codec of a CompressionRecord writer is copied as-is; any other
// value is decompressed and re-framed for this file's regime.
func (w *Writer) AppendRaw(key []byte, value *ValueBytes) error {
	if w.closed {
		return ErrClosed
	}
	if !value.Compressed() {
		return w.appendSerialized(key, value.Bytes())
	}
	if w.hdr.compression == CompressionRecord && value.CodecName() == w.hdr.codec {
		return w.appendFrame(key, value.Bytes())
	}
	raw, err := value.Uncompressed(w.rawBuf[:0])
	if err != nil {
		return err
	}
	w.rawBuf = raw
	return w.appendSerialized(key, raw)
}

// appendSerialized appends a record whose value is serialized but not
// compressed.
func (w *Writer) appendSerialized(key, value []byte) error {
	switch w.hdr.compression {
	case CompressionRecord:
		var err error
		if w.encBuf, err = w.enc.EncodeAll(w.encBuf[:0], value); err != nil {
			return err
		}
		return w.appendFrame(key, w.encBuf)
	case CompressionBlock:
		return w.appendToBlock(key, value)
	default:
		return w.appendFrame(key, value)
	}
}

// appendFrame writes one record frame, preceded by a sync marker when the
// sync interval has elapsed.
func (w *Writer) appendFrame(key, value []byte) error {
	recLen := uint64(len(key)) + uint64(len(value))
	if recLen >= math.MaxUint32 {
		return errors.Newf("seqfile: record of %d bytes exceeds the frame limit", recLen)
	}
	if w.pos-w.lastSync >= int64(w.opts.SyncInterval) {
		if err := w.writeSync(); err != nil {
			return err
		}
	}
	encoding.PutUint32(w.frame[0:4], uint32(recLen))
	encoding.PutUint32(w.frame[4:8], uint32(len(key)))
	if err := w.write(w.frame[:]); err != nil {
		return err
	}
	if err := w.write(key); err != nil {
		return err
	}
	if err := w.write(value); err != nil {
		return err
	}
	w.records++
	w.opts.Metrics.recordWritten()
	return nil
}

func (w *Writer) writeSync() error {
	frame := w.hdr.sync.frame()
	if err := w.write(frame[:]); err != nil {
		return err
	}
	w.lastSync = w.pos
	w.opts.Metrics.syncMarker()
	return nil
}

// Sync writes a sync marker before the next record. In CompressionBlock
// files it flushes the pending block, which starts with a marker. Sync is
// a no-op if nothing was written since the last marker.
func (w *Writer) Sync() error {
	if w.closed {
		return ErrClosed
	}
	if w.block != nil {
		return w.flushBlock()
	}
	if w.pos == w.lastSync {
		return nil
	}
	return w.writeSync()
}

// Position returns the number of bytes written so far. Records buffered
// in a pending block are not counted until the block is flushed.
func (w *Writer) Position() int64 {
	return w.pos
}

// Records returns the number of records appended.
func (w *Writer) Records() int64 {
	return w.records
}

// Compression returns the file's compression regime.
func (w *Writer) Compression() CompressionType { return w.hdr.compression }

// CodecName returns the file's codec name, or "" for CompressionNone.
func (w *Writer) CodecName() string { return w.hdr.codec }

// SyncMarker returns the file's sync marker.
func (w *Writer) SyncMarker() SyncMarker { return w.hdr.sync }

// Close flushes pending data and closes the file. The file is closed even
// if flushing fails. Close is idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var err error
	if w.block != nil {
		err = w.flushBlock()
	}
	if err == nil {
		if ferr := w.w.Flush(); ferr != nil {
			err = errors.Wrapf(ferr, "seqfile: flush %s", w.displayName())
		}
	}
	if cerr := w.f.Close(); cerr != nil {
		err = errors.CombineErrors(err, errors.Wrapf(cerr, "seqfile: close %s", w.displayName()))
	}
	if err != nil {
		w.opts.Logger.Warnf(logging.NSWriter+"close %s: %v", w.displayName(), err)
		return err
	}
	w.opts.Logger.Debugf(logging.NSWriter+"closed %s: %d records, %d bytes",
		w.displayName(), w.records, w.pos)
	return nil
}

package seqfile

// reader.go implements sequence file reading.
//
// Records can be read materialized (Next, or NextKey followed by
// CurrentValue) or raw (NextRaw, or NextRawKey followed by
// CurrentRawValue). The two-step forms observe exactly the record the
// one-step forms would. A clean end of file returns (false, nil); a file
// that ends inside a record or block returns an error marked ErrTruncated.

import (
	"bytes"
	"io"

	"github.com/aalhour/seqfile/internal/compression"
	"github.com/aalhour/seqfile/internal/encoding"
	"github.com/aalhour/seqfile/internal/logging"
	"github.com/aalhour/seqfile/internal/serde"
	"github.com/aalhour/seqfile/internal/vfs"
	"github.com/cockroachdb/errors"
)

// Reader reads records from a sequence file.
//
// A Reader is not safe for concurrent use. Several Readers may read the
// same closed file concurrently.
type Reader struct {
	name      string
	in        *input
	hdr       *header
	headerEnd int64
	opts      ReaderOptions
	keySer    serde.Serializer
	valSer    serde.Serializer
	codec     compression.Codec // nil for CompressionNone
	dec       *compression.Decoder
	blk       *blockReader // non-nil for CompressionBlock
	closed    bool

	// Current record.
	valid    bool
	syncSeen bool
	key      []byte
	val      []byte // as stored; unused for CompressionBlock
	valBuf   []byte // decompressed value scratch

	lenBuf [4]byte
	marker SyncMarker
}

// Open opens name on fs and reads its header.
func Open(fs vfs.FS, name string, opts ReaderOptions) (*Reader, error) {
	f, err := fs.OpenRandomAccess(name)
	if err != nil {
		return nil, errors.Wrapf(err, "seqfile: open %s", name)
	}
	r, err := newReader(f, name, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

// NewReader reads the header of f and returns a Reader over it. The Reader
// owns f from then on: Close closes it, and so does a failed NewReader.
func NewReader(f vfs.RandomAccessFile, opts ReaderOptions) (*Reader, error) {
	r, err := newReader(f, "", opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f vfs.RandomAccessFile, name string, opts ReaderOptions) (*Reader, error) {
	opts.ensureDefaults()
	if name == "" {
		name = "<stream>"
	}
	r := &Reader{
		name: name,
		in:   newInput(name, f, opts.BufferSize),
		opts: opts,
	}
	hdr, err := decodeHeader(r.in)
	if err != nil {
		return nil, errors.Wrapf(err, "seqfile: %s: header", name)
	}
	r.hdr = hdr
	r.headerEnd = r.in.pos

	if r.keySer, err = opts.Serializers.Lookup(hdr.keyType); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "seqfile: %s: key type", name), ErrConfig)
	}
	if r.valSer, err = opts.Serializers.Lookup(hdr.valueType); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "seqfile: %s: value type", name), ErrConfig)
	}
	if hdr.compression != CompressionNone {
		if r.codec, err = opts.Codecs.Lookup(hdr.codec); err != nil {
			opts.Logger.Warnf(logging.NSCodec+"%s: no codec for %q", name, hdr.codec)
			return nil, errors.Mark(errors.Wrapf(err, "seqfile: %s: codec", name), ErrConfig)
		}
		r.dec = compression.NewDecoder(r.codec)
	}
	if hdr.compression == CompressionBlock {
		r.blk = &blockReader{}
	}
	opts.Logger.Debugf(logging.NSReader+"opened %s: %s/%s compression=%s codec=%q header=%d bytes",
		name, hdr.keyType, hdr.valueType, hdr.compression, hdr.codec, r.headerEnd)
	return r, nil
}

// advance moves to the next record.
func (r *Reader) advance() (bool, error) {
	if r.closed {
		return false, ErrClosed
	}
	r.valid = false
	var ok bool
	var err error
	if r.blk != nil {
		ok, err = r.nextInBlock()
	} else {
		ok, err = r.readRecord()
	}
	if ok {
		r.valid = true
		r.opts.Metrics.recordRead()
	}
	return ok, err
}

// readRecord reads one record frame, consuming a preceding sync marker.
func (r *Reader) readRecord() (bool, error) {
	// A record starting right after the header follows the header's marker.
	r.syncSeen = r.in.pos == r.headerEnd
	recLen, err := r.in.readUint32(r.lenBuf[:])
	if err == io.EOF {
		return false, nil
	} else if err != nil {
		return false, r.in.frameErr(err, "record length")
	}
	if recLen == syncEscape {
		if err := r.readSyncMarker(); err != nil {
			return false, err
		}
		r.syncSeen = true
		recLen, err = r.in.readUint32(r.lenBuf[:])
		if err == io.EOF {
			return false, nil
		} else if err != nil {
			return false, r.in.frameErr(err, "record length")
		}
		if recLen == syncEscape {
			return false, corruptionf("seqfile: %s: consecutive sync markers at offset %d", r.name, r.in.pos-4)
		}
	}
	keyLen, err := r.in.readUint32(r.lenBuf[:])
	if err != nil {
		return false, r.in.frameErr(err, "key length")
	}
	if keyLen > recLen {
		return false, corruptionf("seqfile: %s: key length %d exceeds record length %d at offset %d",
			r.name, keyLen, recLen, r.in.pos-recordHeaderSize)
	}
	if int64(recLen) > r.in.remaining() {
		return false, truncatedf("seqfile: %s: record length %d exceeds remaining %d bytes at offset %d",
			r.name, recLen, r.in.remaining(), r.in.pos-recordHeaderSize)
	}
	r.key = resize(r.key, int(keyLen))
	if err := r.in.readFull(r.key); err != nil {
		return false, r.in.frameErr(err, "key")
	}
	r.val = resize(r.val, int(recLen-keyLen))
	if err := r.in.readFull(r.val); err != nil {
		return false, r.in.frameErr(err, "value")
	}
	return true, nil
}

func (r *Reader) readSyncMarker() error {
	if err := r.in.readFull(r.marker[:]); err != nil {
		return r.in.frameErr(err, "sync marker")
	}
	if r.marker != r.hdr.sync {
		return corruptionf("seqfile: %s: sync marker mismatch at offset %d: got %s, want %s",
			r.name, r.in.pos-SyncMarkerSize, r.marker, r.hdr.sync)
	}
	return nil
}

// Next reads the next record into key and value and reports whether one
// was read.
func (r *Reader) Next(key, value any) (bool, error) {
	ok, err := r.NextKey(key)
	if !ok || err != nil {
		return ok, err
	}
	if err := r.CurrentValue(value); err != nil {
		return false, err
	}
	return true, nil
}

// NextKey reads the next record's key. The value can then be read with
// CurrentValue or CurrentRawValue.
func (r *Reader) NextKey(key any) (bool, error) {
	ok, err := r.advance()
	if !ok || err != nil {
		return ok, err
	}
	if err := r.keySer.Decode(r.key, key); err != nil {
		return false, errors.Wrapf(err, "seqfile: %s: deserialize key at offset %d", r.name, r.in.pos)
	}
	return true, nil
}

// CurrentValue deserializes the value of the current record into value.
func (r *Reader) CurrentValue(value any) error {
	raw, err := r.currentValue()
	if err != nil {
		return err
	}
	if err := r.valSer.Decode(raw, value); err != nil {
		return errors.Wrapf(err, "seqfile: %s: deserialize value at offset %d", r.name, r.in.pos)
	}
	return nil
}

// currentValue returns the serialized, uncompressed value of the current
// record.
func (r *Reader) currentValue() ([]byte, error) {
	if !r.valid {
		return nil, errors.Newf("seqfile: %s: no current record", r.name)
	}
	switch r.hdr.compression {
	case CompressionRecord:
		var err error
		if r.valBuf, err = r.dec.DecodeAll(r.valBuf[:0], r.val); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "seqfile: %s: value before offset %d", r.name, r.in.pos), ErrCorruption)
		}
		return r.valBuf, nil
	case CompressionBlock:
		return r.blk.value(r)
	default:
		return r.val, nil
	}
}

// NextRaw reads the next record without deserializing it. In
// CompressionRecord files the value stays compressed.
func (r *Reader) NextRaw(rec *RawRecord) (bool, error) {
	ok, err := r.NextRawKey(rec)
	if !ok || err != nil {
		return ok, err
	}
	if err := r.CurrentRawValue(rec); err != nil {
		return false, err
	}
	return true, nil
}

// NextRawKey reads the next record's serialized key into rec.Key.
func (r *Reader) NextRawKey(rec *RawRecord) (bool, error) {
	ok, err := r.advance()
	if !ok || err != nil {
		return ok, err
	}
	rec.Key = append(rec.Key[:0], r.key...)
	return true, nil
}

// CurrentRawValue copies the stored value of the current record into
// rec.Value.
func (r *Reader) CurrentRawValue(rec *RawRecord) error {
	if !r.valid {
		return errors.Newf("seqfile: %s: no current record", r.name)
	}
	switch r.hdr.compression {
	case CompressionRecord:
		rec.Value.set(r.val, r.codec, r.dec)
	case CompressionBlock:
		v, err := r.blk.value(r)
		if err != nil {
			return err
		}
		rec.Value.set(v, nil, nil)
	default:
		rec.Value.set(r.val, nil, nil)
	}
	return nil
}

// Position returns the offset of the next unread byte. In CompressionBlock
// files this is the end of the current block.
func (r *Reader) Position() int64 {
	return r.in.pos
}

// SyncSeen reports whether the last record read was preceded by a sync
// marker. The first record after the header counts as preceded by the
// header's marker.
func (r *Reader) SyncSeen() bool {
	return r.syncSeen
}

// SeekTo positions the reader at pos, which must be a record or block
// boundary previously returned by Position.
func (r *Reader) SeekTo(pos int64) error {
	if r.closed {
		return ErrClosed
	}
	if pos < r.headerEnd || pos > r.in.size {
		return errors.Newf("seqfile: %s: seek to %d outside [%d, %d]", r.name, pos, r.headerEnd, r.in.size)
	}
	r.in.seek(pos)
	r.resetRecord()
	return nil
}

// SeekToSync positions the reader at the first sync point at or after off.
// Offsets within the header go to the first record. If no marker follows
// off, the reader is positioned at the end of the file.
//
// A candidate marker is accepted only if the frames after it parse up to the
// next marker or the end of the file, so marker bytes stored inside a key or
// value are skipped. Detection remains probabilistic: data that embeds the
// marker followed by well-formed frames is indistinguishable from a real
// sync point.
func (r *Reader) SeekToSync(off int64) error {
	if r.closed {
		return ErrClosed
	}
	if off <= r.headerEnd {
		return r.SeekTo(r.headerEnd)
	}
	size := r.in.size
	pattern := r.hdr.sync.frame()
	// Markers are usually within a sync interval of off, so the scan
	// starts small and grows.
	chunk := syncScanMinChunk
	var buf []byte
	for p := off; p < size; {
		buf = resize(buf, int(min(int64(chunk+syncFrameSize-1), size-p)))
		n, err := r.in.f.ReadAt(buf, p)
		if err != nil && err != io.EOF {
			return errors.Wrapf(err, "seqfile: %s: scan for sync marker at offset %d", r.name, p)
		}
		for from := 0; ; {
			i := bytes.Index(buf[from:n], pattern[:])
			if i < 0 {
				break
			}
			q := p + int64(from+i)
			ok, err := r.confirmSync(q)
			if err != nil {
				return err
			}
			if ok {
				r.in.seek(q)
				r.resetRecord()
				return nil
			}
			from += i + 1
		}
		if p+int64(n) >= size || n < syncFrameSize {
			break
		}
		// Overlap chunks so a marker spanning a boundary is found.
		p += int64(n - (syncFrameSize - 1))
		chunk = min(2*chunk, syncScanMaxChunk)
	}
	r.in.seek(size)
	r.resetRecord()
	return nil
}

const (
	syncScanMinChunk = 4 << 10
	syncScanMaxChunk = 64 << 10

	// syncConfirmLimit bounds how far confirmSync walks record frames.
	syncConfirmLimit = 64 << 10
)

// confirmSync reports whether the escape and marker found at q start a
// well-formed run of frames.
func (r *Reader) confirmSync(q int64) (bool, error) {
	if r.blk != nil {
		return r.confirmBlock(q)
	}
	size := r.in.size
	var hdr [recordHeaderSize]byte
	var marker SyncMarker
	for pos := q + syncFrameSize; pos < size && pos-q < syncConfirmLimit; {
		ok, err := r.readAt(hdr[:4], pos)
		if !ok || err != nil {
			return false, err
		}
		recLen := encoding.Uint32(hdr[:4])
		if recLen == syncEscape {
			ok, err := r.readAt(marker[:], pos+4)
			return ok && marker == r.hdr.sync, err
		}
		if ok, err = r.readAt(hdr[:], pos); !ok || err != nil {
			return false, err
		}
		if keyLen := encoding.Uint32(hdr[4:]); keyLen > recLen || int64(recLen) > size-pos-recordHeaderSize {
			return false, nil
		}
		pos += recordHeaderSize + int64(recLen)
	}
	return true, nil
}

// confirmBlock reports whether a block header and its four columns follow
// the marker at q and end at the end of the file or at the next marker.
func (r *Reader) confirmBlock(q int64) (bool, error) {
	size := r.in.size
	pos := q + syncFrameSize
	var vb [encoding.MaxVarint64Length]byte
	for i := range 1 + len(columnNames) {
		n := min(int64(len(vb)), size-pos)
		if n <= 0 {
			return false, nil
		}
		if _, err := r.readAt(vb[:n], pos); err != nil {
			return false, err
		}
		v, k, err := encoding.DecodeVarint64(vb[:n])
		if err != nil {
			return false, nil
		}
		pos += int64(k)
		if v > uint64(size-pos) || (i == 0 && v == 0) {
			return false, nil
		}
		if i > 0 {
			pos += int64(v)
		}
	}
	if pos == size {
		return true, nil
	}
	var next [syncFrameSize]byte
	ok, err := r.readAt(next[:], pos)
	return ok && next == r.hdr.sync.frame(), err
}

// readAt fills p from offset off. It reports false if the file ends first.
func (r *Reader) readAt(p []byte, off int64) (bool, error) {
	if off+int64(len(p)) > r.in.size {
		return false, nil
	}
	if _, err := r.in.f.ReadAt(p, off); err != nil && err != io.EOF {
		return false, errors.Wrapf(err, "seqfile: %s: read at offset %d", r.name, off)
	}
	return true, nil
}

func (r *Reader) resetRecord() {
	r.valid = false
	r.syncSeen = false
	if r.blk != nil {
		r.blk.remaining = 0
	}
}

// Name returns the file name the reader was opened with.
func (r *Reader) Name() string { return r.name }

// Size returns the file size.
func (r *Reader) Size() int64 { return r.in.size }

// HeaderSize returns the size of the header, which is also the offset of
// the first record.
func (r *Reader) HeaderSize() int64 { return r.headerEnd }

// Version returns the file's format version.
func (r *Reader) Version() byte { return r.hdr.version }

// KeyType returns the key serializer tag.
func (r *Reader) KeyType() string { return r.hdr.keyType }

// ValueType returns the value serializer tag.
func (r *Reader) ValueType() string { return r.hdr.valueType }

// KeySerializer returns the serializer of the file's keys.
func (r *Reader) KeySerializer() Serializer { return r.keySer }

// ValueSerializer returns the serializer of the file's values.
func (r *Reader) ValueSerializer() Serializer { return r.valSer }

// Compression returns the file's compression regime.
func (r *Reader) Compression() CompressionType { return r.hdr.compression }

// CodecName returns the file's codec name, or "" for CompressionNone.
func (r *Reader) CodecName() string { return r.hdr.codec }

// Metadata returns a copy of the header metadata.
func (r *Reader) Metadata() Metadata {
	if r.hdr.metadata == nil {
		return nil
	}
	m := make(Metadata, len(r.hdr.metadata))
	for k, v := range r.hdr.metadata {
		m[k] = v
	}
	return m
}

// SyncMarker returns the file's sync marker.
func (r *Reader) SyncMarker() SyncMarker { return r.hdr.sync }

// Close releases the file. Close is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var err error
	if r.dec != nil {
		err = r.dec.Close()
	}
	if cerr := r.in.f.Close(); cerr != nil {
		err = errors.CombineErrors(err, errors.Wrapf(cerr, "seqfile: close %s", r.name))
	}
	return err
}

func resize(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

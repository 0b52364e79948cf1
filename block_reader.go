package seqfile

import (
	"io"

	"github.com/aalhour/seqfile/internal/encoding"
	"github.com/cockroachdb/errors"
)

// blockReader holds the current block of a CompressionBlock file. Key
// columns are decompressed when the block is loaded; value columns only
// when a value of the block is first requested.
type blockReader struct {
	start     int64 // offset of the block's sync escape
	count     int
	remaining int // records not yet returned
	index     int // index of the current record

	raw [4][]byte // compressed columns as stored

	keyLens           []byte
	keys              []byte
	keyLenOff, keyOff int

	valsDecoded       bool
	valLens           []byte
	vals              []byte
	valLenOff, valOff int
	valIndex          int // values consumed
	curVal            []byte
	curValIndex       int
}

const (
	colKeyLens = iota
	colKeys
	colValLens
	colVals
)

var columnNames = [4]string{"key lengths", "keys", "value lengths", "values"}

// nextInBlock positions the reader on the next record, loading a new block
// when the current one is exhausted.
func (r *Reader) nextInBlock() (bool, error) {
	b := r.blk
	if b.remaining == 0 {
		ok, err := r.readBlock()
		if !ok || err != nil {
			return ok, err
		}
	} else {
		r.syncSeen = false
	}

	klen, n, err := encoding.DecodeVarint64(b.keyLens[b.keyLenOff:])
	if err != nil {
		return false, r.blockCorruption("key length %d: %v", b.index+1, err)
	}
	b.keyLenOff += n
	if klen > uint64(len(b.keys)-b.keyOff) {
		return false, r.blockCorruption("key length %d of record %d exceeds key column", klen, b.index+1)
	}
	r.key = b.keys[b.keyOff : b.keyOff+int(klen)]
	b.keyOff += int(klen)
	b.index++
	b.remaining--
	if b.remaining == 0 && (b.keyLenOff != len(b.keyLens) || b.keyOff != len(b.keys)) {
		return false, r.blockCorruption("key columns hold more than %d records", b.count)
	}
	return true, nil
}

// readBlock reads and validates the next block header and columns.
func (r *Reader) readBlock() (bool, error) {
	b := r.blk
	in := r.in
	b.start = in.pos
	esc, err := in.readUint32(r.lenBuf[:])
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, in.frameErr(err, "block sync escape")
	}
	if esc != syncEscape {
		return false, corruptionf("seqfile: %s: expected sync escape at block offset %d, got %#x", r.name, b.start, esc)
	}
	if err := r.readSyncMarker(); err != nil {
		return false, err
	}
	r.syncSeen = true

	count, err := in.readUvarint("block record count")
	if err != nil {
		return false, err
	}
	if count == 0 || count > uint64(in.remaining()) {
		return false, corruptionf("seqfile: %s: invalid block record count %d at offset %d", r.name, count, b.start)
	}
	for i := range b.raw {
		n, err := in.readLength("block " + columnNames[i] + " column")
		if err != nil {
			return false, err
		}
		b.raw[i] = resize(b.raw[i], n)
		if err := in.readFull(b.raw[i]); err != nil {
			return false, in.frameErr(err, "block "+columnNames[i]+" column")
		}
	}

	if b.keyLens, err = r.dec.DecodeAll(b.keyLens[:0], b.raw[colKeyLens]); err != nil {
		return false, r.columnErr(err, colKeyLens)
	}
	if b.keys, err = r.dec.DecodeAll(b.keys[:0], b.raw[colKeys]); err != nil {
		return false, r.columnErr(err, colKeys)
	}
	b.count = int(count)
	b.remaining = b.count
	b.index = -1
	b.keyLenOff, b.keyOff = 0, 0
	b.valsDecoded = false
	b.curValIndex = -1
	return true, nil
}

// value returns the serialized value of the current record, skipping the
// values of records whose values were never requested.
func (b *blockReader) value(r *Reader) ([]byte, error) {
	if b.curValIndex == b.index {
		return b.curVal, nil
	}
	if !b.valsDecoded {
		var err error
		if b.valLens, err = r.dec.DecodeAll(b.valLens[:0], b.raw[colValLens]); err != nil {
			return nil, r.columnErr(err, colValLens)
		}
		if b.vals, err = r.dec.DecodeAll(b.vals[:0], b.raw[colVals]); err != nil {
			return nil, r.columnErr(err, colVals)
		}
		b.valsDecoded = true
		b.valLenOff, b.valOff, b.valIndex = 0, 0, 0
	}
	for b.valIndex <= b.index {
		vlen, n, err := encoding.DecodeVarint64(b.valLens[b.valLenOff:])
		if err != nil {
			return nil, r.blockCorruption("value length %d: %v", b.valIndex, err)
		}
		b.valLenOff += n
		if vlen > uint64(len(b.vals)-b.valOff) {
			return nil, r.blockCorruption("value length %d of record %d exceeds value column", vlen, b.valIndex)
		}
		b.curVal = b.vals[b.valOff : b.valOff+int(vlen)]
		b.valOff += int(vlen)
		b.valIndex++
	}
	b.curValIndex = b.index
	return b.curVal, nil
}

func (r *Reader) columnErr(err error, col int) error {
	return errors.Mark(errors.Wrapf(err, "seqfile: %s: block at offset %d: %s column",
		r.name, r.blk.start, columnNames[col]), ErrCorruption)
}

func (r *Reader) blockCorruption(format string, args ...any) error {
	return corruptionf("seqfile: %s: block at offset %d: %s",
		r.name, r.blk.start, errors.Newf(format, args...))
}

package seqfile

import (
	"github.com/aalhour/seqfile/internal/encoding"
)

// blockBuffer accumulates the four columns of a pending block.
type blockBuffer struct {
	keyLens []byte // varints
	keys    []byte
	valLens []byte // varints
	vals    []byte
	count   int
}

func (b *blockBuffer) add(key, value []byte) {
	b.keyLens = encoding.AppendVarint64(b.keyLens, uint64(len(key)))
	b.keys = append(b.keys, key...)
	b.valLens = encoding.AppendVarint64(b.valLens, uint64(len(value)))
	b.vals = append(b.vals, value...)
	b.count++
}

// size returns the uncompressed size of the pending block.
func (b *blockBuffer) size() int {
	return len(b.keyLens) + len(b.keys) + len(b.valLens) + len(b.vals)
}

func (b *blockBuffer) columns() [4][]byte {
	return [4][]byte{b.keyLens, b.keys, b.valLens, b.vals}
}

func (b *blockBuffer) reset() {
	b.keyLens = b.keyLens[:0]
	b.keys = b.keys[:0]
	b.valLens = b.valLens[:0]
	b.vals = b.vals[:0]
	b.count = 0
}

func (w *Writer) appendToBlock(key, value []byte) error {
	w.block.add(key, value)
	w.records++
	w.opts.Metrics.recordWritten()
	if w.block.size() >= w.opts.BlockSize ||
		(w.opts.BlockRecords > 0 && w.block.count >= w.opts.BlockRecords) {
		return w.flushBlock()
	}
	return nil
}

// flushBlock writes the pending block: a sync marker, the record count and
// the four compressed columns, each prefixed by its compressed length.
func (w *Writer) flushBlock() error {
	if w.block.count == 0 {
		return nil
	}
	if err := w.writeSync(); err != nil {
		return err
	}
	w.encBuf = encoding.AppendVarint64(w.encBuf[:0], uint64(w.block.count))
	for _, col := range w.block.columns() {
		var err error
		if w.colBuf, err = w.enc.EncodeAll(w.colBuf[:0], col); err != nil {
			return err
		}
		w.encBuf = encoding.AppendVarint64(w.encBuf, uint64(len(w.colBuf)))
		w.encBuf = append(w.encBuf, w.colBuf...)
	}
	if err := w.write(w.encBuf); err != nil {
		return err
	}
	w.block.reset()
	w.opts.Metrics.block()
	return nil
}

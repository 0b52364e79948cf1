package seqfile

// split.go implements reading one byte range of a file.
//
// A file cut into consecutive ranges is read by one SplitReader per range
// such that every record is returned by exactly one of them: a reader
// starts at the first sync point at or after its range start and stops
// before the first record that follows a sync point at or after its range
// end. A record straddling the end is always read in full.

import (
	"github.com/aalhour/seqfile/internal/vfs"
)

// SplitReader reads the records of one byte range of a sequence file.
type SplitReader struct {
	r    *Reader
	end  int64
	more bool
}

// NewSplitReader opens name and positions it for the range
// [start, start+length).
func NewSplitReader(fs vfs.FS, name string, start, length int64, opts ReaderOptions) (*SplitReader, error) {
	if start < 0 || length < 0 {
		return nil, configf("seqfile: invalid split [%d, +%d)", start, length)
	}
	r, err := Open(fs, name, opts)
	if err != nil {
		return nil, err
	}
	if err := r.SeekToSync(start); err != nil {
		_ = r.Close()
		return nil, err
	}
	return &SplitReader{r: r, end: start + length, more: true}, nil
}

// Next reads the next record of the split into key and value.
func (s *SplitReader) Next(key, value any) (bool, error) {
	return s.step(func() (bool, error) { return s.r.Next(key, value) })
}

// NextRaw reads the next record of the split without deserializing it.
func (s *SplitReader) NextRaw(rec *RawRecord) (bool, error) {
	return s.step(func() (bool, error) { return s.r.NextRaw(rec) })
}

func (s *SplitReader) step(next func() (bool, error)) (bool, error) {
	if !s.more {
		return false, nil
	}
	pos := s.r.Position()
	ok, err := next()
	if err != nil {
		s.more = false
		return false, err
	}
	if pos >= s.end && s.r.SyncSeen() {
		// The record belongs to the next split.
		ok = false
	}
	s.more = ok
	return ok, nil
}

// Reader returns the underlying reader, for header accessors.
func (s *SplitReader) Reader() *Reader { return s.r }

// Close closes the underlying reader.
func (s *SplitReader) Close() error { return s.r.Close() }

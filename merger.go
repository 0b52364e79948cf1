package seqfile

// merger.go implements the k-way merge of sorted segments.
//
// Each input is read through a segment cursor; the cursors form the arena
// of an index heap (internal/iterator) ordered by key and then by input
// position, so equal keys are emitted in input order. Values are passed
// through raw, and copied without recompression when the input and output
// share a codec.

import (
	"time"

	"github.com/aalhour/seqfile/internal/iterator"
	"github.com/aalhour/seqfile/internal/logging"
	"github.com/aalhour/seqfile/internal/vfs"
	"github.com/cockroachdb/errors"
)

// CombineFunc reduces a run of records with equal keys. values holds the
// serialized, uncompressed values in merge order; the slices are only
// valid during the call. Every value passed to emit is appended to the
// output under key.
type CombineFunc func(key []byte, values [][]byte, emit func(value []byte) error) error

// Merger merges sorted sequence files.
type Merger struct {
	fs   vfs.FS
	opts MergerOptions
}

// NewMerger returns a Merger reading and writing through fs.
func NewMerger(fs vfs.FS, opts MergerOptions) *Merger {
	opts.ensureDefaults()
	return &Merger{fs: fs, opts: opts}
}

// Merge merges the sorted segments into output in one pass. The output
// takes its types, compression and metadata from the first segment. On
// failure the output is removed.
func (m *Merger) Merge(segments []string, output string) error {
	return m.mergeFiles(segments, output, true, m.opts.Comparator, m.opts.Combiner)
}

// MergeTo merges the records of readers into w. It neither closes w nor
// the readers.
func (m *Merger) MergeTo(readers []*Reader, w *Writer) error {
	if len(readers) == 0 {
		return nil
	}
	cmp := m.opts.Comparator
	if cmp == nil {
		cmp = readers[0].KeySerializer().Compare
	}
	return m.mergeTo(readers, w, cmp, m.opts.Combiner)
}

// mergeFiles opens names, merges them into output and removes output on
// failure. final selects the output options of a final pass.
func (m *Merger) mergeFiles(names []string, output string, final bool, cmp Comparator, combine CombineFunc) (err error) {
	if len(names) == 0 {
		return configf("seqfile: merge into %s: no segments", output)
	}
	readers := make([]*Reader, 0, len(names))
	defer func() {
		for _, r := range readers {
			err = errors.CombineErrors(err, r.Close())
		}
	}()
	for _, name := range names {
		r, err := Open(m.fs, name, m.opts.readerOptions())
		if err != nil {
			return err
		}
		readers = append(readers, r)
		if err := checkCompatible(readers[0], r); err != nil {
			return err
		}
	}
	if cmp == nil {
		cmp = readers[0].KeySerializer().Compare
	}

	w, err := Create(m.fs, output, m.opts.outputOptions(readers[0], final))
	if err != nil {
		return err
	}
	err = m.mergeTo(readers, w, cmp, combine)
	err = errors.CombineErrors(err, w.Close())
	if err != nil {
		m.opts.Logger.Warnf(logging.NSMerge+"merge into %s failed: %v", output, err)
		_ = m.fs.Remove(output)
		return err
	}
	return nil
}

func (m *Merger) mergeTo(readers []*Reader, w *Writer, cmp Comparator, combine CombineFunc) error {
	start := time.Now()
	cursors := make([]segmentCursor, len(readers))
	children := make([]iterator.Cursor, len(readers))
	for i, r := range readers {
		cursors[i] = segmentCursor{r: r, index: i}
		children[i] = &cursors[i]
	}
	mi := iterator.NewMergingIterator(children, cmp)
	out := newSink(w, combine, cmp, m.opts.Metrics)
	for mi.Next() {
		c := &cursors[mi.Index()]
		if err := out.add(c.rec.Key, &c.rec.Value); err != nil {
			return err
		}
	}
	if err := mi.Error(); err != nil {
		return err
	}
	if err := out.finish(); err != nil {
		return err
	}
	m.opts.Metrics.mergePass(start)
	m.opts.Logger.Infof(logging.NSMerge+"merged %d segments: %d records in %s",
		len(readers), w.Records(), time.Since(start))
	return nil
}

// checkCompatible verifies that r holds the same key and value types as
// first.
func checkCompatible(first, r *Reader) error {
	if r.KeyType() != first.KeyType() || r.ValueType() != first.ValueType() {
		return configf("seqfile: %s holds %s/%s records, %s holds %s/%s",
			r.Name(), r.KeyType(), r.ValueType(), first.Name(), first.KeyType(), first.ValueType())
	}
	return nil
}

// segmentCursor adapts a Reader to iterator.Cursor.
type segmentCursor struct {
	r     *Reader
	index int
	rec   RawRecord
	err   error
}

func (c *segmentCursor) Next() bool {
	ok, err := c.r.NextRaw(&c.rec)
	if err != nil {
		c.err = errors.Wrapf(err, "seqfile: merge segment %d (%s)", c.index, c.r.Name())
		return false
	}
	return ok
}

func (c *segmentCursor) Key() []byte { return c.rec.Key }

func (c *segmentCursor) Err() error { return c.err }

// recordSink receives records in output order.
type recordSink interface {
	add(key []byte, value *ValueBytes) error
	finish() error
}

func newSink(w *Writer, combine CombineFunc, cmp Comparator, metrics *Metrics) recordSink {
	if combine == nil {
		return writerSink{w}
	}
	return &combineSink{w: w, fn: combine, cmp: cmp, metrics: metrics}
}

type writerSink struct {
	w *Writer
}

func (s writerSink) add(key []byte, value *ValueBytes) error { return s.w.AppendRaw(key, value) }

func (s writerSink) finish() error { return nil }

// combineSink groups runs of equal keys and hands each run to a
// CombineFunc.
type combineSink struct {
	w       *Writer
	fn      CombineFunc
	cmp     Comparator
	metrics *Metrics

	key    []byte
	arena  []byte
	ends   []int // end offset of each value in arena
	values [][]byte
}

func (s *combineSink) add(key []byte, value *ValueBytes) error {
	if len(s.ends) > 0 && s.cmp(s.key, key) != 0 {
		if err := s.flush(); err != nil {
			return err
		}
	}
	if len(s.ends) == 0 {
		s.key = append(s.key[:0], key...)
	}
	var err error
	if s.arena, err = value.Uncompressed(s.arena); err != nil {
		return err
	}
	s.ends = append(s.ends, len(s.arena))
	return nil
}

func (s *combineSink) flush() error {
	s.values = s.values[:0]
	start := 0
	for _, end := range s.ends {
		s.values = append(s.values, s.arena[start:end])
		start = end
	}
	err := s.fn(s.key, s.values, s.emit)
	s.arena = s.arena[:0]
	s.ends = s.ends[:0]
	s.metrics.combinedRun()
	if err != nil {
		return errors.Wrapf(err, "seqfile: combine")
	}
	return nil
}

func (s *combineSink) emit(value []byte) error {
	if s.w.closed {
		return ErrClosed
	}
	return s.w.appendSerialized(s.key, value)
}

func (s *combineSink) finish() error {
	if len(s.ends) == 0 {
		return nil
	}
	return s.flush()
}

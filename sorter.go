package seqfile

// sorter.go implements the external sort.
//
// Records are read raw into a sort buffer until the memory budget is
// reached, sorted stably by key and spilled to a temporary segment. When
// the inputs fit in one buffer the sorted buffer is written straight to the
// output. Otherwise the segments are merged in passes of at most Factor
// consecutive segments until one final pass writes the output.
//
// Temporary files live in a private directory under TempDir, which is
// removed when the sort returns, on success or failure. Input files are
// never modified or removed.

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aalhour/seqfile/internal/logging"
	"github.com/aalhour/seqfile/internal/vfs"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// ctxCheckInterval is the number of records read between context checks.
const ctxCheckInterval = 1024

// SortJob names the inputs and output of one sort.
type SortJob struct {
	Inputs []string
	Output string
}

// Sorter sorts and merges sequence files by key.
//
// A Sorter holds no per-sort state and may run several sorts concurrently.
type Sorter struct {
	fs     vfs.FS
	opts   SorterOptions
	merger *Merger
}

// NewSorter returns a Sorter reading and writing through fs.
func NewSorter(fs vfs.FS, opts SorterOptions) (*Sorter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.ensureDefaults()
	return &Sorter{
		fs:     fs,
		opts:   opts,
		merger: NewMerger(fs, opts.MergerOptions),
	}, nil
}

// Sort sorts input into output.
func (s *Sorter) Sort(input, output string) error {
	return s.SortFiles([]string{input}, output)
}

// SortFiles sorts the records of all inputs into output. The inputs must
// hold the same key and value types; the output takes its format from the
// first input.
func (s *Sorter) SortFiles(inputs []string, output string) error {
	return s.sortFiles(context.Background(), inputs, output)
}

// Merge merges already sorted inputs into output, using as many passes as
// Factor requires.
func (s *Sorter) Merge(inputs []string, output string) error {
	return s.mergeFiles(context.Background(), inputs, output)
}

// SortEach runs independent sorts with at most Parallelism in flight. The
// first failure cancels the sorts that have not finished.
func (s *Sorter) SortEach(ctx context.Context, jobs []SortJob) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	for _, job := range jobs {
		g.Go(func() error {
			return s.sortFiles(ctx, job.Inputs, job.Output)
		})
	}
	return g.Wait()
}

func (s *Sorter) tempDir(output string) string {
	if s.opts.TempDir != "" {
		return s.opts.TempDir
	}
	return filepath.Dir(output)
}

// withTempDir runs fn with a fresh temporary directory and removes the
// directory afterwards.
func (s *Sorter) withTempDir(output string, fn func(tmp string) error) (err error) {
	tmp, err := s.fs.MkdirTemp(s.tempDir(output), "seqfile-sort-")
	if err != nil {
		return errors.Wrapf(err, "seqfile: create temporary directory")
	}
	defer func() {
		if rerr := s.fs.RemoveAll(tmp); rerr != nil {
			s.opts.Logger.Warnf(logging.NSSort+"remove %s: %v", tmp, rerr)
			err = errors.CombineErrors(err, rerr)
		}
	}()
	return fn(tmp)
}

func (s *Sorter) sortFiles(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return configf("seqfile: sort into %s: no inputs", output)
	}
	start := time.Now()
	err := s.withTempDir(output, func(tmp string) error {
		run := &sortRun{
			s:   s,
			ctx: ctx,
			tmp: tmp,
			buf: newSortBuffer(s.opts.Memory),
		}
		for _, name := range inputs {
			if err := run.consume(name); err != nil {
				return err
			}
		}
		if len(run.segments) == 0 {
			return run.writeBuffer(output, run.finalOpts, s.opts.Combiner)
		}
		if run.buf.len() > 0 {
			if err := run.spill(); err != nil {
				return err
			}
		}
		return s.mergeSegments(ctx, tmp, run.segments, output, run.cmp)
	})
	if err != nil {
		return err
	}
	s.opts.Metrics.sorted(start)
	s.opts.Logger.Infof(logging.NSSort+"sorted %d inputs into %s in %s", len(inputs), output, time.Since(start))
	return nil
}

func (s *Sorter) mergeFiles(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return configf("seqfile: merge into %s: no inputs", output)
	}
	segs := make([]segment, len(inputs))
	for i, name := range inputs {
		segs[i] = segment{name: name}
	}
	return s.withTempDir(output, func(tmp string) error {
		return s.mergeSegments(ctx, tmp, segs, output, s.opts.Comparator)
	})
}

// segment is a sorted file taking part in a merge.
type segment struct {
	name string
	temp bool // created by this sort, removed once merged
}

// mergeSegments merges segs into output. While more than Factor segments
// remain, consecutive groups of Factor segments are merged into
// intermediate segments under tmp. The combiner only runs in the final
// pass.
func (s *Sorter) mergeSegments(ctx context.Context, tmp string, segs []segment, output string, cmp Comparator) error {
	for pass := 0; len(segs) > s.opts.Factor; pass++ {
		var next []segment
		for i := 0; i < len(segs); i += s.opts.Factor {
			if err := ctx.Err(); err != nil {
				return err
			}
			group := segs[i:min(i+s.opts.Factor, len(segs))]
			if len(group) == 1 {
				next = append(next, group[0])
				continue
			}
			name := filepath.Join(tmp, fmt.Sprintf("merge-%03d-%05d.seq", pass, i/s.opts.Factor))
			if err := s.merger.mergeFiles(segmentNames(group), name, false, cmp, nil); err != nil {
				return err
			}
			s.removeTemps(group)
			next = append(next, segment{name: name, temp: true})
		}
		s.opts.Logger.Debugf(logging.NSMerge+"pass %d: %d segments left", pass, len(next))
		segs = next
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.merger.mergeFiles(segmentNames(segs), output, true, cmp, s.opts.Combiner)
}

func (s *Sorter) removeTemps(segs []segment) {
	for _, seg := range segs {
		if !seg.temp {
			continue
		}
		if err := s.fs.Remove(seg.name); err != nil {
			s.opts.Logger.Warnf(logging.NSSort+"remove %s: %v", seg.name, err)
		}
	}
}

func segmentNames(segs []segment) []string {
	names := make([]string, len(segs))
	for i, seg := range segs {
		names[i] = seg.name
	}
	return names
}

// sortRun is the state of one sort.
type sortRun struct {
	s   *Sorter
	ctx context.Context
	tmp string
	buf *sortBuffer

	first     *inputInfo
	cmp       Comparator
	spillOpts WriterOptions
	finalOpts WriterOptions
	segments  []segment
	rec       RawRecord
}

// inputInfo remembers the types of the first input.
type inputInfo struct {
	name, keyType, valueType string
}

// consume reads every record of name into the buffer, spilling whenever
// the buffer is full.
func (run *sortRun) consume(name string) (err error) {
	s := run.s
	r, err := Open(s.fs, name, s.opts.readerOptions())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, r.Close())
	}()
	if run.first == nil {
		run.first = &inputInfo{name: r.Name(), keyType: r.KeyType(), valueType: r.ValueType()}
		run.cmp = s.opts.Comparator
		if run.cmp == nil {
			run.cmp = r.KeySerializer().Compare
		}
		run.spillOpts = s.opts.outputOptions(r, false)
		run.finalOpts = s.opts.outputOptions(r, true)
	} else if r.KeyType() != run.first.keyType || r.ValueType() != run.first.valueType {
		return configf("seqfile: %s holds %s/%s records, %s holds %s/%s",
			r.Name(), r.KeyType(), r.ValueType(), run.first.name, run.first.keyType, run.first.valueType)
	}

	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := run.ctx.Err(); err != nil {
				return err
			}
		}
		ok, err := r.NextRaw(&run.rec)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if !run.buf.fits(&run.rec) && run.buf.len() > 0 {
			if err := run.spill(); err != nil {
				return err
			}
		}
		if !run.buf.fits(&run.rec) {
			return configf("seqfile: record of %d bytes in %s exceeds sort memory of %d bytes",
				recordCost(&run.rec), name, s.opts.Memory)
		}
		run.buf.add(&run.rec)
	}
}

// spill sorts the buffer into a new temporary segment.
func (run *sortRun) spill() error {
	name := filepath.Join(run.tmp, fmt.Sprintf("spill-%05d.seq", len(run.segments)))
	records := run.buf.len()
	if err := run.writeBuffer(name, run.spillOpts, nil); err != nil {
		return err
	}
	run.segments = append(run.segments, segment{name: name, temp: true})
	run.buf.reset()
	run.s.opts.Metrics.spill()
	run.s.opts.Logger.Debugf(logging.NSSort+"spilled %d records to %s", records, name)
	return nil
}

// writeBuffer sorts the buffer and writes it to name, removing name on
// failure.
func (run *sortRun) writeBuffer(name string, opts WriterOptions, combine CombineFunc) error {
	run.buf.sort(run.cmp)
	w, err := Create(run.s.fs, name, opts)
	if err != nil {
		return err
	}
	err = run.buf.writeTo(newSink(w, combine, run.cmp, run.s.opts.Metrics))
	err = errors.CombineErrors(err, w.Close())
	if err != nil {
		_ = run.s.fs.Remove(name)
		return err
	}
	return nil
}

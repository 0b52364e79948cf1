package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aalhour/seqfile"
	"github.com/aalhour/seqfile/internal/testutil"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

type benchFlags struct {
	rwonly   bool
	nocreate bool
	check    bool
	merge    bool
}

func (t *toolT) benchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench <file>",
		Short: "write, read, sort or merge, and check generated records",
		Long: `
Write --count generated records to <file> and read them back, then sort the
file into <file>.sorted. With --merge the records are instead dealt
round-robin into --factor files that are sorted independently and merged
into <file>.sorted. --check verifies <file>.sorted against an in-memory
sort of the same records.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return t.runBench(cmd.OutOrStdout(), args[0])
		},
	}
	t.addGeneratorFlags(cmd)
	t.addWriteFlags(cmd)
	t.addSortFlags(cmd, false)
	cmd.Flags().BoolVar(&t.bench.rwonly, "rwonly", false, "only write and read, do not sort")
	cmd.Flags().BoolVar(&t.bench.nocreate, "nocreate", false, "reuse an existing <file>")
	cmd.Flags().BoolVar(&t.bench.check, "check", false, "verify the sorted output")
	cmd.Flags().BoolVar(&t.bench.merge, "merge", false, "sort --factor parts and merge them")
	return cmd
}

func (t *toolT) runBench(w io.Writer, file string) error {
	b := t.bench
	if b.rwonly && (b.nocreate || b.merge) {
		return errors.New("--rwonly cannot be combined with --nocreate or --merge")
	}
	sorted := file + ".sorted"
	count, seed := t.gen.count, t.gen.seed

	if !b.nocreate && !b.merge {
		start := time.Now()
		if err := t.writeFile(file, seed, count); err != nil {
			return err
		}
		fmt.Fprintf(w, "write: %d records in %s\n", count, time.Since(start))

		start = time.Now()
		expected := testutil.NewExpectedState(testutil.Generate(seed, count))
		if _, err := t.verifyFile(file, expected); err != nil {
			return err
		}
		fmt.Fprintf(w, "read: %d records in %s\n", count, time.Since(start))
	}

	if !b.rwonly {
		start := time.Now()
		if b.merge {
			if err := t.benchMerge(file, sorted); err != nil {
				return err
			}
			fmt.Fprintf(w, "merge: %d parts in %s\n", t.sort.factor, time.Since(start))
		} else {
			s, err := seqfile.NewSorter(t.fs, t.sorterOptions())
			if err != nil {
				return err
			}
			if err := s.Sort(file, sorted); err != nil {
				return err
			}
			fmt.Fprintf(w, "sort: %s in %s\n", sorted, time.Since(start))
		}
	}

	if b.check {
		start := time.Now()
		n, err := t.verifyFile(sorted, sortedExpected(seed, count))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "check: %d records in %s\n", n, time.Since(start))
	}
	return nil
}

// benchMerge deals the generated records round-robin into parts, sorts the
// parts concurrently and merges them into sorted.
func (t *toolT) benchMerge(file, sorted string) error {
	parts := t.sort.factor
	if parts < 2 {
		return errors.Newf("--merge needs a factor of at least 2, got %d", parts)
	}
	opts, err := t.writerOptions()
	if err != nil {
		return err
	}
	writers := make([]*seqfile.Writer, 0, parts)
	closeAll := func() error {
		var err error
		for _, w := range writers {
			err = errors.CombineErrors(err, w.Close())
		}
		return err
	}
	jobs := make([]seqfile.SortJob, parts)
	for i := range parts {
		name := fmt.Sprintf("%s.%d", file, i)
		w, err := seqfile.Create(t.fs, name, opts)
		if err != nil {
			return errors.CombineErrors(err, closeAll())
		}
		writers = append(writers, w)
		jobs[i] = seqfile.SortJob{Inputs: []string{name}, Output: name + ".sorted"}
	}
	g := testutil.NewDatumGenerator(t.gen.seed)
	for i := range t.gen.count {
		g.Next()
		if err := writers[i%parts].Append(g.Key(), g.Value()); err != nil {
			return errors.CombineErrors(err, closeAll())
		}
	}
	if err := closeAll(); err != nil {
		return err
	}

	s, err := seqfile.NewSorter(t.fs, t.sorterOptions())
	if err != nil {
		return err
	}
	if err := s.SortEach(context.Background(), jobs); err != nil {
		return err
	}
	outputs := make([]string, parts)
	for i, job := range jobs {
		outputs[i] = job.Output
	}
	return s.Merge(outputs, sorted)
}

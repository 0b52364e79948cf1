package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/aalhour/seqfile"
	"github.com/aalhour/seqfile/internal/logging"
	"github.com/aalhour/seqfile/internal/serde"
	"github.com/aalhour/seqfile/internal/testutil"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

type generatorFlags struct {
	count int
	seed  int64
}

type writeFlags struct {
	compress     string
	codec        string
	blockSize    int
	syncInterval int
}

type sortFlags struct {
	out       string
	megabytes int
	factor    int
	tempDir   string
	fast      bool
	parallel  int
}

type dumpFlags struct {
	limit  int
	hex    bool
	start  int64
	length int64
}

func (t *toolT) addGeneratorFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(
		&t.gen.count, "count", 1000, "number of records")
	cmd.Flags().Int64Var(
		&t.gen.seed, "seed", time.Now().UnixNano(), "seed of the record generator")
}

func (t *toolT) addWriteFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&t.write.compress, "compress", "none", "compression type: none, record or block")
	cmd.Flags().StringVar(
		&t.write.codec, "codec", "", "compression codec (default deflate when compressing)")
	cmd.Flags().IntVar(
		&t.write.blockSize, "block-size", seqfile.DefaultBlockSize, "uncompressed block size")
	cmd.Flags().IntVar(
		&t.write.syncInterval, "sync-interval", seqfile.DefaultSyncInterval, "minimum bytes between sync markers")
}

func (t *toolT) addSortFlags(cmd *cobra.Command, withOut bool) {
	if withOut {
		cmd.Flags().StringVarP(
			&t.sort.out, "out", "o", "", "output file (required)")
	}
	cmd.Flags().IntVarP(
		&t.sort.megabytes, "megabytes", "m", 1, "sort buffer size in megabytes")
	cmd.Flags().IntVarP(
		&t.sort.factor, "factor", "f", seqfile.DefaultSortFactor, "merge fan-in")
	cmd.Flags().StringVar(
		&t.sort.tempDir, "tmp", "", "directory for temporary segments (default: next to the output)")
	cmd.Flags().BoolVar(
		&t.sort.fast, "fast", true, "compare serialized keys instead of decoded keys")
	cmd.Flags().IntVar(
		&t.sort.parallel, "parallel", 0, "concurrent sorts (default GOMAXPROCS)")
}

func (t *toolT) writerOptions() (seqfile.WriterOptions, error) {
	c, err := seqfile.ParseCompressionType(t.write.compress)
	if err != nil {
		return seqfile.WriterOptions{}, err
	}
	opts := seqfile.DefaultWriterOptions()
	opts.Compression = c
	opts.Codec = t.write.codec
	opts.BlockSize = t.write.blockSize
	opts.SyncInterval = t.write.syncInterval
	opts.Logger = t.logger
	opts.Metrics = t.m
	return opts, nil
}

func (t *toolT) sorterOptions() seqfile.SorterOptions {
	opts := seqfile.DefaultSorterOptions()
	opts.Memory = int64(t.sort.megabytes) << 20
	opts.Factor = t.sort.factor
	opts.TempDir = t.sort.tempDir
	opts.Parallelism = t.sort.parallel
	opts.Logger = t.logger
	opts.Metrics = t.m
	if !t.sort.fast {
		opts.Comparator = seqfile.MaterializedComparator(serde.Bytes{}, bytes.Compare)
	}
	return opts
}

// writeFile writes count generated records to name.
func (t *toolT) writeFile(name string, seed int64, count int) error {
	opts, err := t.writerOptions()
	if err != nil {
		return err
	}
	start := time.Now()
	w, err := seqfile.Create(t.fs, name, opts)
	if err != nil {
		return err
	}
	g := testutil.NewDatumGenerator(seed)
	for range count {
		g.Next()
		if err := w.Append(g.Key(), g.Value()); err != nil {
			_ = w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	t.logger.Infof(logging.NSWriter+"wrote %d records to %s in %s", count, name, time.Since(start))
	return nil
}

// verifyFile reads name and compares it with expected. A nil expected
// only counts the records.
func (t *toolT) verifyFile(name string, expected *testutil.ExpectedState) (int, error) {
	r, err := seqfile.Open(t.fs, name, t.readerOptions())
	if err != nil {
		return 0, err
	}
	defer r.Close()
	var key, value []byte
	n := 0
	for {
		ok, err := r.Next(&key, &value)
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		if expected != nil {
			if err := expected.Verify(n, key, value); err != nil {
				return n, errors.Wrapf(err, "%s", name)
			}
		}
		n++
	}
	if expected != nil && n != expected.Len() {
		return n, errors.Newf("%s: read %d records, want %d", name, n, expected.Len())
	}
	return n, nil
}

func (t *toolT) writeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write <file>",
		Short: "write generated records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := t.writeFile(args[0], t.gen.seed, t.gen.count); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s (seed %d)\n", t.gen.count, args[0], t.gen.seed)
			return nil
		},
	}
	t.addGeneratorFlags(cmd)
	t.addWriteFlags(cmd)
	return cmd
}

func (t *toolT) readCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "read a file, optionally verifying it against the generator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var expected *testutil.ExpectedState
			if check {
				expected = testutil.NewExpectedState(testutil.Generate(t.gen.seed, t.gen.count))
			}
			n, err := t.verifyFile(args[0], expected)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "read %d records from %s\n", n, args[0])
			return nil
		},
	}
	t.addGeneratorFlags(cmd)
	cmd.Flags().BoolVar(&check, "check", false, "verify records against --seed and --count")
	return cmd
}

func (t *toolT) dumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "print the header and records of a file",
		Long: `
Print the header and records of a file. With --start and --length only the
records of that split are printed.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return t.runDump(cmd.OutOrStdout(), args[0])
		},
	}
	cmd.Flags().IntVar(&t.dump.limit, "limit", 0, "maximum number of records (0 = unlimited)")
	cmd.Flags().BoolVar(&t.dump.hex, "hex", false, "print keys and values in hex")
	cmd.Flags().Int64Var(&t.dump.start, "start", 0, "split start offset")
	cmd.Flags().Int64Var(&t.dump.length, "length", -1, "split length (-1 = to the end)")
	return cmd
}

func (t *toolT) runDump(w io.Writer, name string) error {
	length := t.dump.length
	if length < 0 {
		fi, err := t.fs.Stat(name)
		if err != nil {
			return err
		}
		length = max(fi.Size()-t.dump.start, 0)
	}
	s, err := seqfile.NewSplitReader(t.fs, name, t.dump.start, length, t.readerOptions())
	if err != nil {
		return err
	}
	defer s.Close()

	r := s.Reader()
	fmt.Fprintf(w, "file:        %s\n", name)
	fmt.Fprintf(w, "version:     %d\n", r.Version())
	fmt.Fprintf(w, "types:       %s / %s\n", r.KeyType(), r.ValueType())
	fmt.Fprintf(w, "compression: %s %s\n", r.Compression(), r.CodecName())
	fmt.Fprintf(w, "sync marker: %s\n", r.SyncMarker())
	md := r.Metadata()
	for _, k := range md.Keys() {
		fmt.Fprintf(w, "metadata:    %s=%s\n", k, md[k])
	}

	format := func(b []byte) string {
		if t.dump.hex {
			return hex.EncodeToString(b)
		}
		return fmt.Sprintf("%q", b)
	}
	var rec seqfile.RawRecord
	var value []byte
	for n := 0; t.dump.limit == 0 || n < t.dump.limit; n++ {
		ok, err := s.NextRaw(&rec)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if value, err = rec.Value.Uncompressed(value[:0]); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s => %s\n", format(rec.Key), format(value))
	}
	return nil
}

func (t *toolT) sortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sort <files>",
		Short: "sort files by key into --out",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if t.sort.out == "" {
				return errors.New("--out is required")
			}
			s, err := seqfile.NewSorter(t.fs, t.sorterOptions())
			if err != nil {
				return err
			}
			start := time.Now()
			if err := s.SortFiles(args, t.sort.out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sorted %d files into %s in %s\n", len(args), t.sort.out, time.Since(start))
			return nil
		},
	}
	t.addSortFlags(cmd, true)
	return cmd
}

func (t *toolT) mergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <files>",
		Short: "merge sorted files into --out",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if t.sort.out == "" {
				return errors.New("--out is required")
			}
			s, err := seqfile.NewSorter(t.fs, t.sorterOptions())
			if err != nil {
				return err
			}
			if err := s.Merge(args, t.sort.out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged %d files into %s\n", len(args), t.sort.out)
			return nil
		},
	}
	t.addSortFlags(cmd, true)
	return cmd
}

func (t *toolT) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <files>",
		Short: "verify that files are sorted by key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				n, err := seqfile.CheckSorted(t.fs, name, nil, t.readerOptions())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records in order\n", name, n)
			}
			return nil
		},
	}
}

// sortedExpected returns the generated records in stable key order.
func sortedExpected(seed int64, count int) *testutil.ExpectedState {
	return testutil.NewExpectedState(testutil.Generate(seed, count)).Sorted(bytes.Compare)
}

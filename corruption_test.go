package seqfile

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/aalhour/seqfile/internal/testutil"
	"github.com/aalhour/seqfile/internal/vfs"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// drain reads name to the end and returns the number of records read and
// the error that stopped the reader.
func drain(fs FS, name string) (int, error) {
	r, err := Open(fs, name, ReaderOptions{})
	if err != nil {
		return 0, err
	}
	defer r.Close()
	var rec RawRecord
	n := 0
	for {
		ok, err := r.NextRaw(&rec)
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		if _, err := rec.Value.Uncompressed(nil); err != nil {
			return n, err
		}
		n++
	}
}

func TestCorruption_BadMagic(t *testing.T) {
	fs := NewMemFS()
	fs.SetBytes("/bad.seq", []byte("PAR1 this is not a sequence file"))
	_, err := Open(fs, "/bad.seq", ReaderOptions{})
	require.True(t, errors.Is(err, ErrCorruption), "%v", err)
	require.False(t, errors.Is(err, ErrTruncated))
}

func TestCorruption_BadVersion(t *testing.T) {
	fs := NewMemFS()
	writeDatums(t, fs, "/a.seq", DefaultWriterOptions(), nil)
	data := fileBytes(t, fs, "/a.seq")
	data[3] = 5
	fs.SetBytes("/a.seq", data)
	_, err := Open(fs, "/a.seq", ReaderOptions{})
	require.True(t, errors.Is(err, ErrCorruption), "%v", err)
}

func TestCorruption_TruncatedHeader(t *testing.T) {
	fs := NewMemFS()
	writeDatums(t, fs, "/a.seq", WriterOptions{Metadata: Metadata{"k": "v"}}, nil)
	data := fileBytes(t, fs, "/a.seq")
	for cut := 0; cut < len(data); cut++ {
		fs.SetBytes("/cut.seq", data[:cut])
		_, err := Open(fs, "/cut.seq", ReaderOptions{})
		require.True(t, errors.Is(err, ErrTruncated), "cut at %d: %v", cut, err)
		require.True(t, errors.Is(err, ErrCorruption), "cut at %d: %v", cut, err)
	}
}

func TestCorruption_Truncated(t *testing.T) {
	data := testutil.Generate(41, 300)
	for _, rg := range regimes {
		t.Run(rg.name, func(t *testing.T) {
			fs := NewMemFS()
			opts := regimeOptions(rg.compression, rg.codec)
			opts.BlockRecords = 32
			writeDatums(t, fs, "/a.seq", opts, data)
			full := fileBytes(t, fs, "/a.seq")

			// Losing the last byte always cuts a record or block.
			fs.SetBytes("/cut.seq", full[:len(full)-1])
			n, err := drain(fs, "/cut.seq")
			require.True(t, errors.Is(err, ErrTruncated), "%v", err)
			require.True(t, errors.Is(err, ErrCorruption), "%v", err)
			require.Less(t, n, len(data))

			r, err := Open(fs, "/a.seq", ReaderOptions{})
			require.NoError(t, err)
			headerEnd := r.HeaderSize()
			require.NoError(t, r.Close())

			prev := 0
			for cut := headerEnd; cut < int64(len(full)); cut += 97 {
				fs.SetBytes("/cut.seq", full[:cut])
				n, err := drain(fs, "/cut.seq")
				if err != nil {
					require.True(t, errors.Is(err, ErrCorruption), "cut at %d: %v", cut, err)
				}
				// A shorter file never yields more records.
				require.GreaterOrEqual(t, n, prev, "cut at %d", cut)
				prev = n
			}
		})
	}
}

func TestCorruption_SyncMarkerMismatch(t *testing.T) {
	marker := SyncMarkerFor([]byte("mismatch"))
	for _, rg := range regimes {
		t.Run(rg.name, func(t *testing.T) {
			fs := NewMemFS()
			opts := regimeOptions(rg.compression, rg.codec)
			opts.SyncMarker = &marker
			opts.SyncInterval = 200
			opts.BlockRecords = 10
			writeDatums(t, fs, "/a.seq", opts, testutil.Generate(43, 200))

			data := fileBytes(t, fs, "/a.seq")
			frame := marker.frame()
			i := bytes.Index(data, frame[:])
			require.Positive(t, i)
			data[i+syncFrameSize-1] ^= 0xff
			fs.SetBytes("/a.seq", data)

			_, err := drain(fs, "/a.seq")
			require.True(t, errors.Is(err, ErrCorruption), "%v", err)
			require.False(t, errors.Is(err, ErrTruncated), "%v", err)
		})
	}
}

func TestCorruption_BadRecordLengths(t *testing.T) {
	fs := NewMemFS()
	writeDatums(t, fs, "/a.seq", DefaultWriterOptions(), []testutil.Datum{
		{Key: []byte("key"), Value: []byte("value")},
	})
	r, err := Open(fs, "/a.seq", ReaderOptions{})
	require.NoError(t, err)
	headerEnd := r.HeaderSize()
	require.NoError(t, r.Close())
	data := fileBytes(t, fs, "/a.seq")

	// Key length larger than the record length.
	bad := bytes.Clone(data)
	bad[headerEnd+7] = 200
	fs.SetBytes("/bad.seq", bad)
	_, err = drain(fs, "/bad.seq")
	require.True(t, errors.Is(err, ErrCorruption), "%v", err)
	require.False(t, errors.Is(err, ErrTruncated), "%v", err)

	// Record length past the end of the file.
	bad = bytes.Clone(data)
	bad[headerEnd+2] = 1
	fs.SetBytes("/bad.seq", bad)
	_, err = drain(fs, "/bad.seq")
	require.True(t, errors.Is(err, ErrTruncated), "%v", err)
}

func TestCorruption_BlockColumn(t *testing.T) {
	fs := NewMemFS()
	opts := regimeOptions(CompressionBlock, "zstd")
	writeDatums(t, fs, "/a.seq", opts, testutil.Generate(47, 50))
	r, err := Open(fs, "/a.seq", ReaderOptions{})
	require.NoError(t, err)
	headerEnd := r.HeaderSize()
	require.NoError(t, r.Close())

	data := fileBytes(t, fs, "/a.seq")
	// Scramble the tail of the key lengths column, past the escape,
	// marker, record count and column length.
	for i := headerEnd + syncFrameSize + 4; i < headerEnd+syncFrameSize+12; i++ {
		data[i] ^= 0x5a
	}
	fs.SetBytes("/a.seq", data)
	_, err = drain(fs, "/a.seq")
	require.True(t, errors.Is(err, ErrCorruption), "%v", err)
}

func TestCorruption_ReadErrorsPropagate(t *testing.T) {
	mem := NewMemFS()
	writeDatums(t, mem, "/a.seq", DefaultWriterOptions(), testutil.Generate(53, 100))
	fs := vfs.NewFaultInjectionFS(mem)

	r, err := Open(fs, "/a.seq", ReaderOptions{})
	require.NoError(t, err)
	fs.InjectReadError(func(name string) bool { return name == "/a.seq" })
	_, err = drain(fs, "/a.seq")
	require.ErrorIs(t, err, vfs.ErrInjectedReadError)
	require.False(t, errors.Is(err, ErrCorruption), "%v", err)
	require.NoError(t, r.Close())
	require.Zero(t, fs.OpenFiles())
}

func Example_errors() {
	fs := NewMemFS()
	fs.SetBytes("/x.seq", []byte("SEQ"))
	_, err := Open(fs, "/x.seq", ReaderOptions{})
	fmt.Println(errors.Is(err, ErrTruncated), errors.Is(err, ErrCorruption))
	// Output: true true
}

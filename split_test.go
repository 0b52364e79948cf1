package seqfile

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/aalhour/seqfile/internal/testutil"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// readSplits reads name as consecutive splits of length bytes and returns
// the concatenated records.
func readSplits(t *testing.T, fs FS, name string, size, length int64) []testutil.Datum {
	t.Helper()
	var out []testutil.Datum
	for start := int64(0); start < size; start += length {
		s, err := NewSplitReader(fs, name, start, length, ReaderOptions{BufferSize: 4096})
		require.NoError(t, err)
		for {
			var key, value []byte
			ok, err := s.Next(&key, &value)
			require.NoError(t, err)
			if !ok {
				break
			}
			out = append(out, testutil.Datum{Key: key, Value: value})
		}
		require.NoError(t, s.Close())
	}
	return out
}

func TestSplitReader_EveryRecordOnce(t *testing.T) {
	data := testutil.Generate(59, 300)
	for _, rg := range regimes {
		t.Run(rg.name, func(t *testing.T) {
			fs := NewMemFS()
			opts := regimeOptions(rg.compression, rg.codec)
			opts.SyncInterval = 300
			opts.BlockSize = 2048
			writeDatums(t, fs, "/a.seq", opts, data)
			size := int64(len(fileBytes(t, fs, "/a.seq")))

			want := testutil.NewExpectedState(data)
			for _, length := range []int64{7, 100, 999, 4096, size / 3, size, size * 2} {
				t.Run(fmt.Sprint(length), func(t *testing.T) {
					requireMatches(t, want, readSplits(t, fs, "/a.seq", size, length))
				})
			}
		})
	}
}

func TestSplitReader_SmallFile(t *testing.T) {
	fs := NewMemFS()
	writeDatums(t, fs, "/a.seq", DefaultWriterOptions(), []testutil.Datum{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	})
	size := int64(len(fileBytes(t, fs, "/a.seq")))

	// Splits ending inside the header read nothing; the first split
	// reaching past it reads the whole file.
	for length := int64(1); length <= size; length++ {
		got := readSplits(t, fs, "/a.seq", size, length)
		require.Len(t, got, 2, "split length %d", length)
	}
}

func TestSplitReader_Raw(t *testing.T) {
	data := testutil.Generate(61, 400)
	fs := NewMemFS()
	opts := regimeOptions(CompressionRecord, "lz4")
	opts.SyncInterval = 100
	writeDatums(t, fs, "/a.seq", opts, data)
	size := int64(len(fileBytes(t, fs, "/a.seq")))

	var got []testutil.Datum
	for start := int64(0); start < size; start += 1000 {
		s, err := NewSplitReader(fs, "/a.seq", start, 1000, ReaderOptions{})
		require.NoError(t, err)
		require.Equal(t, "lz4", s.Reader().CodecName())
		var rec RawRecord
		for {
			ok, err := s.NextRaw(&rec)
			require.NoError(t, err)
			if !ok {
				break
			}
			value, err := rec.Value.Uncompressed(nil)
			require.NoError(t, err)
			got = append(got, testutil.Datum{Key: bytes.Clone(rec.Key), Value: value})
		}
		require.NoError(t, s.Close())
	}
	requireMatches(t, testutil.NewExpectedState(data), got)
}

func TestSplitReader_InvalidRange(t *testing.T) {
	fs := NewMemFS()
	writeDatums(t, fs, "/a.seq", DefaultWriterOptions(), nil)
	_, err := NewSplitReader(fs, "/a.seq", -1, 10, ReaderOptions{})
	require.True(t, errors.Is(err, ErrConfig))
}

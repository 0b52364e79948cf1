package seqfile

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/aalhour/seqfile/internal/compression"
	"github.com/aalhour/seqfile/internal/serde"
	"github.com/aalhour/seqfile/internal/testutil"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestReader_NextKeySkipsValues(t *testing.T) {
	data := testutil.Generate(17, 1000)
	for _, rg := range regimes {
		t.Run(rg.name, func(t *testing.T) {
			fs := NewMemFS()
			opts := regimeOptions(rg.compression, rg.codec)
			opts.BlockRecords = 64
			writeDatums(t, fs, "/a.seq", opts, data)

			r, err := Open(fs, "/a.seq", ReaderOptions{})
			require.NoError(t, err)
			defer r.Close()
			for i := 0; ; i++ {
				var key []byte
				ok, err := r.NextKey(&key)
				require.NoError(t, err)
				if !ok {
					require.Equal(t, len(data), i)
					break
				}
				require.Equal(t, data[i].Key, key)
				// Read every third value only.
				if i%3 == 0 {
					var value []byte
					require.NoError(t, r.CurrentValue(&value))
					require.Equal(t, data[i].Value, value)
				}
			}
		})
	}
}

func TestReader_SeekToSync(t *testing.T) {
	data := testutil.Generate(23, 3000)
	for _, rg := range regimes {
		t.Run(rg.name, func(t *testing.T) {
			fs := NewMemFS()
			opts := regimeOptions(rg.compression, rg.codec)
			opts.SyncInterval = 500
			opts.BlockSize = 4096
			writeDatums(t, fs, "/a.seq", opts, data)

			r, err := Open(fs, "/a.seq", ReaderOptions{})
			require.NoError(t, err)
			defer r.Close()

			for _, off := range []int64{0, 1, r.HeaderSize(), r.Size() / 3, r.Size() / 2, r.Size() - 1} {
				require.NoError(t, r.SeekToSync(off))
				start := r.Position()
				require.GreaterOrEqual(t, start, min(off, r.Size()))
				require.GreaterOrEqual(t, start, r.HeaderSize())

				var got []testutil.Datum
				var rec RawRecord
				for {
					ok, err := r.NextRaw(&rec)
					require.NoError(t, err)
					if !ok {
						break
					}
					value, err := rec.Value.Uncompressed(nil)
					require.NoError(t, err)
					got = append(got, testutil.Datum{Key: bytes.Clone(rec.Key), Value: value})
				}
				// Records after a sync point are a suffix of the file.
				want := data[len(data)-len(got):]
				for i := range got {
					require.Equal(t, want[i], got[i])
				}
				if off <= r.HeaderSize() {
					require.Len(t, got, len(data))
				}
			}
		})
	}
}

func TestReader_SeekToSyncSkipsMarkerInKey(t *testing.T) {
	m := SyncMarkerFor([]byte("marker in key"))
	frame := m.frame()
	data := make([]testutil.Datum, 300)
	for i := range data {
		data[i] = testutil.Datum{
			Key:   []byte(fmt.Sprintf("key-%04d", i)),
			Value: bytes.Repeat([]byte{'v'}, 40),
		}
	}
	data[0].Key = append(frame[:], "xxxxxxxx"...)

	for _, rg := range regimes[:2] {
		t.Run(rg.name, func(t *testing.T) {
			fs := NewMemFS()
			opts := regimeOptions(rg.compression, rg.codec)
			opts.SyncMarker = &m
			writeDatums(t, fs, "/a.seq", opts, data)

			r, err := Open(fs, "/a.seq", ReaderOptions{})
			require.NoError(t, err)
			defer r.Close()
			// The first copy of the marker in the file is inside the first key.
			require.Equal(t, r.HeaderSize()+recordHeaderSize, int64(bytes.Index(fileBytes(t, fs, "/a.seq"), frame[:])))

			require.NoError(t, r.SeekToSync(r.HeaderSize()+1))
			got := readRemaining(t, r)
			require.NotEmpty(t, got)
			require.Less(t, len(got), len(data))
			require.Equal(t, data[len(data)-len(got):], got)
		})
	}
}

func TestReader_SeekToSyncSkipsMalformedBlock(t *testing.T) {
	m := SyncMarkerFor([]byte("malformed block"))
	frame := m.frame()
	data := testutil.Generate(29, 30)
	fs := NewMemFS()
	opts := regimeOptions(CompressionBlock, compression.Deflate)
	opts.SyncMarker = &m
	opts.BlockRecords = 10
	writeDatums(t, fs, "/a.seq", opts, data)

	raw := fileBytes(t, fs, "/a.seq")
	first := bytes.Index(raw, frame[:])
	require.Positive(t, first)
	second := first + syncFrameSize + bytes.Index(raw[first+syncFrameSize:], frame[:])
	require.Greater(t, second, first)
	// A zero record count makes the second block unreadable.
	require.Equal(t, byte(10), raw[second+syncFrameSize])
	raw[second+syncFrameSize] = 0
	fs.SetBytes("/a.seq", raw)

	r, err := Open(fs, "/a.seq", ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.SeekToSync(int64(first)+1))
	require.Equal(t, data[20:], readRemaining(t, r))
}

func readRemaining(t *testing.T, r *Reader) []testutil.Datum {
	t.Helper()
	var got []testutil.Datum
	var rec RawRecord
	for {
		ok, err := r.NextRaw(&rec)
		require.NoError(t, err)
		if !ok {
			return got
		}
		value, err := rec.Value.Uncompressed(nil)
		require.NoError(t, err)
		got = append(got, testutil.Datum{Key: bytes.Clone(rec.Key), Value: value})
	}
}

func TestReader_SeekToPosition(t *testing.T) {
	data := testutil.Generate(29, 200)
	fs := NewMemFS()
	writeDatums(t, fs, "/a.seq", DefaultWriterOptions(), data)

	r, err := Open(fs, "/a.seq", ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	var positions []int64
	var rec RawRecord
	for {
		positions = append(positions, r.Position())
		ok, err := r.NextRaw(&rec)
		require.NoError(t, err)
		if !ok {
			break
		}
	}
	for _, i := range []int{150, 0, 199, 73} {
		require.NoError(t, r.SeekTo(positions[i]))
		ok, err := r.NextRaw(&rec)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, data[i].Key, rec.Key)
	}
	require.Error(t, r.SeekTo(0))
	require.Error(t, r.SeekTo(r.Size()+1))
}

func TestReader_Typed(t *testing.T) {
	fs := NewMemFS()
	w, err := Create(fs, "/typed.seq", WriterOptions{
		KeyType:     serde.Uint64Type,
		ValueType:   serde.StringType,
		Compression: CompressionRecord,
		Codec:       compression.Snappy,
	})
	require.NoError(t, err)
	for i := range uint64(50) {
		require.NoError(t, w.Append(i*i, "sq"))
	}
	require.NoError(t, w.Close())

	r, err := Open(fs, "/typed.seq", ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	for i := range uint64(50) {
		var k uint64
		var v string
		ok, err := r.Next(&k, &v)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i*i, k)
		require.Equal(t, "sq", v)
	}
	var k uint64
	var v string
	ok, err := r.Next(&k, &v)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReader_UnknownCodecOrType(t *testing.T) {
	fs := NewMemFS()
	writeDatums(t, fs, "/a.seq", regimeOptions(CompressionRecord, compression.Zstd), testutil.Generate(1, 3))

	codecs := compression.NewRegistry()
	require.NoError(t, codecs.Register(compression.DeflateCodec{}))
	_, err := Open(fs, "/a.seq", ReaderOptions{Codecs: codecs})
	require.True(t, errors.Is(err, ErrConfig), "%v", err)

	_, err = Open(fs, "/a.seq", ReaderOptions{Serializers: serde.NewRegistry()})
	require.True(t, errors.Is(err, ErrConfig), "%v", err)
}

func TestReader_Closed(t *testing.T) {
	fs := NewMemFS()
	writeDatums(t, fs, "/a.seq", DefaultWriterOptions(), testutil.Generate(1, 3))
	r, err := Open(fs, "/a.seq", ReaderOptions{})
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	var rec RawRecord
	_, err = r.NextRaw(&rec)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, r.SeekToSync(0), ErrClosed)
}

func TestReader_NoCurrentRecord(t *testing.T) {
	fs := NewMemFS()
	writeDatums(t, fs, "/a.seq", DefaultWriterOptions(), testutil.Generate(1, 3))
	r, err := Open(fs, "/a.seq", ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	var value []byte
	require.Error(t, r.CurrentValue(&value))
}

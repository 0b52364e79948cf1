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

func TestWriter_RoundTrip(t *testing.T) {
	data := testutil.Generate(301, 2000)
	for _, rg := range regimes {
		t.Run(rg.name, func(t *testing.T) {
			fs := NewMemFS()
			opts := regimeOptions(rg.compression, rg.codec)
			opts.BlockSize = 16 << 10
			writeDatums(t, fs, "/data/a.seq", opts, data)

			want := testutil.NewExpectedState(data)
			requireMatches(t, want, readDatums(t, fs, "/data/a.seq"))
			requireMatches(t, want, readRawDatums(t, fs, "/data/a.seq"))
		})
	}
}

func TestWriter_AllCodecs(t *testing.T) {
	data := testutil.Generate(7, 300)
	for _, codec := range compression.Default().Names() {
		for _, c := range []CompressionType{CompressionRecord, CompressionBlock} {
			t.Run(fmt.Sprintf("%s/%s", codec, c), func(t *testing.T) {
				fs := NewMemFS()
				opts := regimeOptions(c, codec)
				opts.BlockRecords = 50
				writeDatums(t, fs, "/a.seq", opts, data)

				r, err := Open(fs, "/a.seq", ReaderOptions{})
				require.NoError(t, err)
				require.Equal(t, codec, r.CodecName())
				require.NoError(t, r.Close())
				requireMatches(t, testutil.NewExpectedState(data), readDatums(t, fs, "/a.seq"))
			})
		}
	}
}

func TestWriter_Empty(t *testing.T) {
	for _, rg := range regimes {
		t.Run(rg.name, func(t *testing.T) {
			fs := NewMemFS()
			writeDatums(t, fs, "/empty.seq", regimeOptions(rg.compression, rg.codec), nil)

			r, err := Open(fs, "/empty.seq", ReaderOptions{})
			require.NoError(t, err)
			defer r.Close()
			require.Equal(t, r.Size(), r.HeaderSize())
			var rec RawRecord
			ok, err := r.NextRaw(&rec)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestWriter_Header(t *testing.T) {
	fs := NewMemFS()
	marker := SyncMarkerFor([]byte("header"))
	opts := WriterOptions{
		KeyType:     serde.Int64Type,
		ValueType:   serde.StringType,
		Compression: CompressionBlock,
		Codec:       "org.apache.hadoop.io.compress.SnappyCodec",
		Metadata:    Metadata{"owner": "etl", "created": "2026-10-18"},
		SyncMarker:  &marker,
	}
	w, err := Create(fs, "/h.seq", opts)
	require.NoError(t, err)
	require.Equal(t, compression.Snappy, w.CodecName())
	require.Equal(t, marker, w.SyncMarker())
	for i := range 10 {
		require.NoError(t, w.Append(int64(i-5), fmt.Sprintf("value-%d", i)))
	}
	require.NoError(t, w.Close())

	r, err := Open(fs, "/h.seq", ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, Version, r.Version())
	require.Equal(t, serde.Int64Type, r.KeyType())
	require.Equal(t, serde.StringType, r.ValueType())
	require.Equal(t, CompressionBlock, r.Compression())
	require.Equal(t, compression.Snappy, r.CodecName())
	require.Equal(t, Metadata{"owner": "etl", "created": "2026-10-18"}, r.Metadata())
	require.Equal(t, marker, r.SyncMarker())

	for i := range 10 {
		var k int64
		var v string
		ok, err := r.Next(&k, &v)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, int64(i-5), k)
		require.Equal(t, fmt.Sprintf("value-%d", i), v)
	}
}

func TestWriter_SameMarkerSameBytes(t *testing.T) {
	data := testutil.Generate(11, 500)
	marker := SyncMarkerFor([]byte("same"))
	for _, rg := range regimes {
		t.Run(rg.name, func(t *testing.T) {
			fs := NewMemFS()
			opts := regimeOptions(rg.compression, rg.codec)
			opts.SyncMarker = &marker
			writeDatums(t, fs, "/a.seq", opts, data)
			writeDatums(t, fs, "/b.seq", opts, data)
			require.Equal(t, fileBytes(t, fs, "/a.seq"), fileBytes(t, fs, "/b.seq"))
		})
	}
}

func TestWriter_SyncInterval(t *testing.T) {
	fs := NewMemFS()
	marker := SyncMarkerFor([]byte("interval"))
	opts := DefaultWriterOptions()
	opts.SyncMarker = &marker
	w, err := Create(fs, "/s.seq", opts)
	require.NoError(t, err)
	// 8 byte frame header + 10 byte key + 82 byte value: 100 bytes.
	key := bytes.Repeat([]byte{'k'}, 10)
	value := bytes.Repeat([]byte{'v'}, 82)
	for range 200 {
		require.NoError(t, w.Append(key, value))
	}
	require.NoError(t, w.Close())

	// A marker precedes records 21, 41, ..., 181.
	frame := marker.frame()
	data := fileBytes(t, fs, "/s.seq")
	require.Equal(t, 9, bytes.Count(data, frame[:]))

	r, err := Open(fs, "/s.seq", ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	var rec RawRecord
	for i := 1; ; i++ {
		ok, err := r.NextRaw(&rec)
		require.NoError(t, err)
		if !ok {
			break
		}
		require.Equal(t, i == 1 || i%20 == 1, r.SyncSeen(), "record %d", i)
	}
}

func TestWriter_ExplicitSync(t *testing.T) {
	fs := NewMemFS()
	w, err := Create(fs, "/s.seq", DefaultWriterOptions())
	require.NoError(t, err)
	require.NoError(t, w.Sync()) // nothing written since the header marker
	pos := w.Position()
	require.NoError(t, w.Append([]byte("a"), []byte("1")))
	require.NoError(t, w.Sync())
	require.NoError(t, w.Sync())
	require.Equal(t, pos+recordHeaderSize+2+syncFrameSize, w.Position())
	require.NoError(t, w.Append([]byte("b"), []byte("2")))
	require.NoError(t, w.Close())

	require.Equal(t, []testutil.Datum{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}, readDatums(t, fs, "/s.seq"))
}

func TestWriter_ConfigErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts WriterOptions
	}{
		{"codec without compression", WriterOptions{Codec: compression.Gzip}},
		{"unknown codec", WriterOptions{Compression: CompressionRecord, Codec: "brotli"}},
		{"unknown key type", WriterOptions{KeyType: "float128"}},
		{"unknown value type", WriterOptions{ValueType: "float128"}},
		{"bad compression", WriterOptions{Compression: CompressionType(9)}},
		{"negative interval", WriterOptions{SyncInterval: -1}},
		{"negative block size", WriterOptions{Compression: CompressionBlock, BlockSize: -1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fs := NewMemFS()
			_, err := Create(fs, "/bad.seq", tc.opts)
			require.True(t, errors.Is(err, ErrConfig), "%v", err)
			require.False(t, fs.Exists("/bad.seq"))
		})
	}
}

func TestWriter_SerializeErrors(t *testing.T) {
	fs := NewMemFS()
	w, err := Create(fs, "/a.seq", WriterOptions{KeyType: serde.Int64Type})
	require.NoError(t, err)
	require.Error(t, w.Append("not a number", []byte("v")))
	require.NoError(t, w.Append(int64(1), []byte("v")))
	require.NoError(t, w.Close())
}

func TestWriter_Closed(t *testing.T) {
	fs := NewMemFS()
	w, err := Create(fs, "/a.seq", DefaultWriterOptions())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.Append([]byte("k"), []byte("v")), ErrClosed)
	require.ErrorIs(t, w.AppendRaw([]byte("k"), NewValueBytes([]byte("v"))), ErrClosed)
	require.ErrorIs(t, w.Sync(), ErrClosed)
}

func TestWriter_AppendRawPassThrough(t *testing.T) {
	data := testutil.Generate(5, 400)
	fs := NewMemFS()
	writeDatums(t, fs, "/src.seq", regimeOptions(CompressionRecord, compression.Zstd), data)

	// Same codec: stored bytes are copied. Other targets recompress.
	targets := map[string]WriterOptions{
		"/same.seq":  regimeOptions(CompressionRecord, compression.Zstd),
		"/other.seq": regimeOptions(CompressionRecord, compression.LZ4),
		"/block.seq": regimeOptions(CompressionBlock, compression.S2),
		"/none.seq":  regimeOptions(CompressionNone, ""),
	}
	for name, opts := range targets {
		r, err := Open(fs, "/src.seq", ReaderOptions{})
		require.NoError(t, err)
		w, err := Create(fs, name, opts)
		require.NoError(t, err)
		var rec RawRecord
		for {
			ok, err := r.NextRaw(&rec)
			require.NoError(t, err)
			if !ok {
				break
			}
			require.True(t, rec.Value.Compressed())
			require.Equal(t, compression.Zstd, rec.Value.CodecName())
			require.NoError(t, w.AppendRaw(rec.Key, &rec.Value))
		}
		require.NoError(t, w.Close())
		require.NoError(t, r.Close())
		requireMatches(t, testutil.NewExpectedState(data), readRawDatums(t, fs, name))
	}

	src, err := Open(fs, "/src.seq", ReaderOptions{})
	require.NoError(t, err)
	defer src.Close()
	dst, err := Open(fs, "/same.seq", ReaderOptions{})
	require.NoError(t, err)
	defer dst.Close()
	var a, b RawRecord
	for {
		okA, err := src.NextRaw(&a)
		require.NoError(t, err)
		okB, err := dst.NextRaw(&b)
		require.NoError(t, err)
		require.Equal(t, okA, okB)
		if !okA {
			break
		}
		require.Equal(t, a.Value.Bytes(), b.Value.Bytes())
	}
}

func TestWriter_Stream(t *testing.T) {
	fs := NewMemFS()
	f, err := fs.Create("/stream.seq")
	require.NoError(t, err)
	w, err := NewWriter(f, regimeOptions(CompressionBlock, compression.Gzip))
	require.NoError(t, err)
	require.NoError(t, w.Append([]byte("k"), []byte("v")))
	require.NoError(t, w.Close())

	rf, err := fs.OpenRandomAccess("/stream.seq")
	require.NoError(t, err)
	r, err := NewReader(rf, ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	var key, value []byte
	ok, err := r.Next(&key, &value)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "k", string(key))
	require.Equal(t, "v", string(value))
}

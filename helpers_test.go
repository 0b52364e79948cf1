package seqfile

import (
	"bytes"
	"testing"

	"github.com/aalhour/seqfile/internal/compression"
	"github.com/aalhour/seqfile/internal/testutil"
	"github.com/aalhour/seqfile/internal/vfs"
	"github.com/stretchr/testify/require"
)

// regimes lists the three storage regimes exercised by most tests.
var regimes = []struct {
	name        string
	compression CompressionType
	codec       string
}{
	{"none", CompressionNone, ""},
	{"record", CompressionRecord, compression.Deflate},
	{"block", CompressionBlock, compression.Deflate},
}

func regimeOptions(c CompressionType, codec string) WriterOptions {
	opts := DefaultWriterOptions()
	opts.Compression = c
	opts.Codec = codec
	return opts
}

func writeDatums(t *testing.T, fs FS, name string, opts WriterOptions, data []testutil.Datum) {
	t.Helper()
	w, err := Create(fs, name, opts)
	require.NoError(t, err)
	for _, d := range data {
		require.NoError(t, w.Append(d.Key, d.Value))
	}
	require.NoError(t, w.Close())
}

// readDatums reads every record of name through the deserializing API.
func readDatums(t *testing.T, fs FS, name string) []testutil.Datum {
	t.Helper()
	r, err := Open(fs, name, ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	var out []testutil.Datum
	for {
		var key, value []byte
		ok, err := r.Next(&key, &value)
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, testutil.Datum{Key: key, Value: value})
	}
}

// readRawDatums reads every record of name through the raw API.
func readRawDatums(t *testing.T, fs FS, name string) []testutil.Datum {
	t.Helper()
	r, err := Open(fs, name, ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	var out []testutil.Datum
	var rec RawRecord
	for {
		ok, err := r.NextRaw(&rec)
		require.NoError(t, err)
		if !ok {
			return out
		}
		value, err := rec.Value.Uncompressed(nil)
		require.NoError(t, err)
		out = append(out, testutil.Datum{Key: bytes.Clone(rec.Key), Value: value})
	}
}

func requireMatches(t *testing.T, want *testutil.ExpectedState, got []testutil.Datum) {
	t.Helper()
	require.Equal(t, want.Len(), len(got))
	for i, d := range got {
		require.NoError(t, want.Verify(i, d.Key, d.Value))
	}
}

// fileBytes returns the contents of name on a MemFS.
func fileBytes(t *testing.T, fs *vfs.MemFS, name string) []byte {
	t.Helper()
	data, err := fs.Bytes(name)
	require.NoError(t, err)
	return data
}

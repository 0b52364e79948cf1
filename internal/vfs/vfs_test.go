package vfs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fsCases runs the same contract checks against the OS and memory FS.
func fsCases(t *testing.T) map[string]struct {
	fs  FS
	dir string
} {
	return map[string]struct {
		fs  FS
		dir string
	}{
		"os":  {Default(), t.TempDir()},
		"mem": {NewMem(), "/data"},
	}
}

func TestFS_CreateAndRead(t *testing.T) {
	for name, tc := range fsCases(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tc.fs.MkdirAll(tc.dir, 0o755))
			path := filepath.Join(tc.dir, "test.txt")

			f, err := tc.fs.Create(path)
			require.NoError(t, err)
			n, err := f.Write([]byte("hello"))
			require.NoError(t, err)
			require.Equal(t, 5, n)
			_, err = f.Write([]byte(" world"))
			require.NoError(t, err)
			require.NoError(t, f.Sync())
			require.NoError(t, f.Close())

			sf, err := tc.fs.Open(path)
			require.NoError(t, err)
			data, err := io.ReadAll(sf)
			require.NoError(t, err)
			require.Equal(t, "hello world", string(data))
			require.NoError(t, sf.Close())

			rf, err := tc.fs.OpenRandomAccess(path)
			require.NoError(t, err)
			require.EqualValues(t, 11, rf.Size())
			buf := make([]byte, 5)
			_, err = rf.ReadAt(buf, 6)
			require.NoError(t, err)
			require.Equal(t, "world", string(buf))
			require.NoError(t, rf.Close())

			info, err := tc.fs.Stat(path)
			require.NoError(t, err)
			require.EqualValues(t, 11, info.Size())
			require.False(t, info.IsDir())
		})
	}
}

func TestFS_RenameRemoveList(t *testing.T) {
	for name, tc := range fsCases(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tc.fs.MkdirAll(tc.dir, 0o755))
			a := filepath.Join(tc.dir, "a")
			b := filepath.Join(tc.dir, "b")

			f, err := tc.fs.Create(a)
			require.NoError(t, err)
			require.NoError(t, f.Close())

			require.NoError(t, tc.fs.Rename(a, b))
			require.False(t, tc.fs.Exists(a))
			require.True(t, tc.fs.Exists(b))

			tmp, err := tc.fs.MkdirTemp(tc.dir, "spill-")
			require.NoError(t, err)
			require.True(t, tc.fs.Exists(tmp))
			f, err = tc.fs.Create(filepath.Join(tmp, "0"))
			require.NoError(t, err)
			require.NoError(t, f.Close())

			names, err := tc.fs.ListDir(tc.dir)
			require.NoError(t, err)
			require.ElementsMatch(t, []string{"b", filepath.Base(tmp)}, names)

			require.NoError(t, tc.fs.RemoveAll(tmp))
			require.False(t, tc.fs.Exists(tmp))
			require.NoError(t, tc.fs.Remove(b))
			require.False(t, tc.fs.Exists(b))

			_, err = tc.fs.Open(b)
			require.True(t, os.IsNotExist(err))
		})
	}
}

func TestMemFS_SnapshotReads(t *testing.T) {
	fs := NewMem()
	f, err := fs.Create("/f")
	require.NoError(t, err)
	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)

	rf, err := fs.OpenRandomAccess("/f")
	require.NoError(t, err)
	_, err = f.Write([]byte("def"))
	require.NoError(t, err)
	require.EqualValues(t, 3, rf.Size())

	data, err := fs.Bytes("/f")
	require.NoError(t, err)
	require.Equal(t, "abcdef", string(data))

	fs.SetBytes("/f", []byte("x"))
	data, err = fs.Bytes("/f")
	require.NoError(t, err)
	require.Equal(t, "x", string(data))

	require.NoError(t, f.Close())
	require.Error(t, f.Close())
}

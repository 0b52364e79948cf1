package vfs

import (
	"bytes"
	"io/fs"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// MemFS is an in-memory FS. Paths are cleaned with path.Clean and use
// forward slashes. Directories are implicit in file names but MkdirAll and
// MkdirTemp record them so that ListDir and Exists behave like a real FS.
//
// MemFS is safe for concurrent use.
type MemFS struct {
	mu    sync.Mutex
	files map[string]*memFile
	dirs  map[string]bool
	seq   int
}

type memFile struct {
	data    []byte
	modTime time.Time
}

var _ FS = (*MemFS)(nil)

// NewMem returns an empty in-memory filesystem.
func NewMem() *MemFS {
	return &MemFS{
		files: make(map[string]*memFile),
		dirs:  map[string]bool{"/": true, ".": true},
	}
}

func (m *MemFS) Create(name string) (WritableFile, error) {
	name = path.Clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirs[name] {
		return nil, &fs.PathError{Op: "create", Path: name, Err: fs.ErrExist}
	}
	f := &memFile{modTime: time.Now()}
	m.files[name] = f
	return &memWritableFile{fs: m, name: name, f: f}, nil
}

func (m *MemFS) lookup(op, name string) (*memFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path.Clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return f, nil
}

func (m *MemFS) Open(name string) (SequentialFile, error) {
	f, err := m.lookup("open", name)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	data := f.data
	m.mu.Unlock()
	return &memSequentialFile{Reader: bytes.NewReader(data)}, nil
}

func (m *MemFS) OpenRandomAccess(name string) (RandomAccessFile, error) {
	f, err := m.lookup("open", name)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	data := f.data
	m.mu.Unlock()
	return &memRandomAccessFile{Reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

func (m *MemFS) Rename(oldname, newname string) error {
	oldname, newname = path.Clean(oldname), path.Clean(newname)
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[oldname]
	if !ok {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: fs.ErrNotExist}
	}
	delete(m.files, oldname)
	m.files[newname] = f
	return nil
}

func (m *MemFS) Remove(name string) error {
	name = path.Clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; ok {
		delete(m.files, name)
		return nil
	}
	if m.dirs[name] {
		prefix := name + "/"
		for n := range m.files {
			if strings.HasPrefix(n, prefix) {
				return &fs.PathError{Op: "remove", Path: name, Err: errors.New("directory not empty")}
			}
		}
		delete(m.dirs, name)
		return nil
	}
	return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
}

func (m *MemFS) RemoveAll(p string) error {
	p = path.Clean(p)
	prefix := p + "/"
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, p)
	delete(m.dirs, p)
	for n := range m.files {
		if strings.HasPrefix(n, prefix) {
			delete(m.files, n)
		}
	}
	for d := range m.dirs {
		if strings.HasPrefix(d, prefix) {
			delete(m.dirs, d)
		}
	}
	return nil
}

func (m *MemFS) MkdirAll(p string, perm os.FileMode) error {
	p = path.Clean(p)
	m.mu.Lock()
	defer m.mu.Unlock()
	for d := p; d != "/" && d != "."; d = path.Dir(d) {
		if _, ok := m.files[d]; ok {
			return &fs.PathError{Op: "mkdir", Path: d, Err: fs.ErrExist}
		}
		m.dirs[d] = true
	}
	return nil
}

func (m *MemFS) MkdirTemp(dir, pattern string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := m.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		m.seq++
		name := path.Join(dir, pattern+strconv.Itoa(m.seq))
		if !m.dirs[name] && m.files[name] == nil {
			m.dirs[name] = true
			return name, nil
		}
	}
}

func (m *MemFS) Stat(name string) (os.FileInfo, error) {
	name = path.Clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[name]; ok {
		return memFileInfo{name: path.Base(name), size: int64(len(f.data)), modTime: f.modTime}, nil
	}
	if m.dirs[name] {
		return memFileInfo{name: path.Base(name), dir: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (m *MemFS) Exists(name string) bool {
	_, err := m.Stat(name)
	return err == nil
}

func (m *MemFS) ListDir(p string) ([]string, error) {
	p = path.Clean(p)
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirs[p] {
		return nil, &fs.PathError{Op: "readdir", Path: p, Err: fs.ErrNotExist}
	}
	prefix := p + "/"
	seen := make(map[string]bool)
	add := func(n string) {
		if rest, ok := strings.CutPrefix(n, prefix); ok {
			child, _, _ := strings.Cut(rest, "/")
			seen[child] = true
		}
	}
	for n := range m.files {
		add(n)
	}
	for d := range m.dirs {
		add(d)
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	slices.Sort(names)
	return names, nil
}

// Bytes returns a copy of the contents of a file. It is intended for tests
// that inspect or corrupt files directly.
func (m *MemFS) Bytes(name string) ([]byte, error) {
	f, err := m.lookup("read", name)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(f.data), nil
}

// SetBytes replaces the contents of a file, creating it if needed.
func (m *MemFS) SetBytes(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path.Clean(name)] = &memFile{data: bytes.Clone(data), modTime: time.Now()}
}

type memWritableFile struct {
	fs     *MemFS
	name   string
	f      *memFile
	closed bool
}

func (w *memWritableFile) Write(p []byte) (int, error) {
	if w.closed {
		return 0, &fs.PathError{Op: "write", Path: w.name, Err: fs.ErrClosed}
	}
	w.fs.mu.Lock()
	// Appending never touches bytes below the old length, so readers opened
	// earlier keep a stable snapshot.
	w.f.data = append(w.f.data, p...)
	w.f.modTime = time.Now()
	w.fs.mu.Unlock()
	return len(p), nil
}

func (w *memWritableFile) Close() error {
	if w.closed {
		return &fs.PathError{Op: "close", Path: w.name, Err: fs.ErrClosed}
	}
	w.closed = true
	return nil
}

func (w *memWritableFile) Sync() error { return nil }

type memSequentialFile struct {
	*bytes.Reader
}

func (f *memSequentialFile) Close() error { return nil }

type memRandomAccessFile struct {
	*bytes.Reader
	size int64
}

func (f *memRandomAccessFile) Close() error { return nil }

func (f *memRandomAccessFile) Size() int64 { return f.size }

type memFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	dir     bool
}

func (fi memFileInfo) Name() string       { return fi.name }
func (fi memFileInfo) Size() int64        { return fi.size }
func (fi memFileInfo) ModTime() time.Time { return fi.modTime }
func (fi memFileInfo) IsDir() bool        { return fi.dir }
func (fi memFileInfo) Sys() any           { return nil }

func (fi memFileInfo) Mode() os.FileMode {
	if fi.dir {
		return os.ModeDir | 0o755
	}
	return 0o644
}

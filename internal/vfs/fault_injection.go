package vfs

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInjectedReadError is returned when a read error is injected.
	ErrInjectedReadError = errors.New("vfs: injected read error")

	// ErrInjectedWriteError is returned when a write error is injected.
	ErrInjectedWriteError = errors.New("vfs: injected write error")

	// ErrInjectedCreateError is returned when a create error is injected.
	ErrInjectedCreateError = errors.New("vfs: injected create error")
)

// FaultInjectionFS wraps an FS and allows injecting errors. It also counts
// open handles so tests can assert that every file was released.
type FaultInjectionFS struct {
	base FS

	mu sync.RWMutex

	// Error injection predicates, nil when disabled.
	readFault   func(name string) bool
	writeFault  func(name string) bool
	createFault func(name string) bool

	// writeBudget, when >= 0, is the number of bytes that may still be
	// written to files matching writeFault before writes start failing.
	writeBudget int64

	openFiles atomic.Int64
}

// NewFaultInjectionFS creates a new fault-injecting filesystem wrapper.
func NewFaultInjectionFS(base FS) *FaultInjectionFS {
	return &FaultInjectionFS{base: base, writeBudget: -1}
}

// InjectReadError makes reads of files matching match fail.
func (fs *FaultInjectionFS) InjectReadError(match func(name string) bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.readFault = match
}

// InjectWriteError makes writes to files matching match fail once
// afterBytes bytes have been written to them. Pass 0 to fail the first write.
func (fs *FaultInjectionFS) InjectWriteError(match func(name string) bool, afterBytes int64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.writeFault = match
	fs.writeBudget = afterBytes
}

// InjectCreateError makes Create fail for names matching match.
func (fs *FaultInjectionFS) InjectCreateError(match func(name string) bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.createFault = match
}

// ClearErrors clears all error injection.
func (fs *FaultInjectionFS) ClearErrors() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.readFault = nil
	fs.writeFault = nil
	fs.createFault = nil
	fs.writeBudget = -1
}

// OpenFiles returns the number of handles opened through fs that have not
// been closed.
func (fs *FaultInjectionFS) OpenFiles() int64 {
	return fs.openFiles.Load()
}

func (fs *FaultInjectionFS) shouldFailRead(name string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.readFault != nil && fs.readFault(name)
}

// consumeWrite reports whether a write of n bytes to name must fail.
func (fs *FaultInjectionFS) consumeWrite(name string, n int) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.writeFault == nil || !fs.writeFault(name) {
		return false
	}
	if fs.writeBudget < int64(n) {
		fs.writeBudget = 0
		return true
	}
	fs.writeBudget -= int64(n)
	return false
}

func (fs *FaultInjectionFS) Create(name string) (WritableFile, error) {
	fs.mu.RLock()
	fail := fs.createFault != nil && fs.createFault(name)
	fs.mu.RUnlock()
	if fail {
		return nil, &os.PathError{Op: "create", Path: name, Err: ErrInjectedCreateError}
	}
	f, err := fs.base.Create(name)
	if err != nil {
		return nil, err
	}
	fs.openFiles.Add(1)
	return &faultWritableFile{fs: fs, name: name, f: f}, nil
}

func (fs *FaultInjectionFS) Open(name string) (SequentialFile, error) {
	if fs.shouldFailRead(name) {
		return nil, &os.PathError{Op: "open", Path: name, Err: ErrInjectedReadError}
	}
	f, err := fs.base.Open(name)
	if err != nil {
		return nil, err
	}
	fs.openFiles.Add(1)
	return &faultSequentialFile{fs: fs, name: name, f: f}, nil
}

func (fs *FaultInjectionFS) OpenRandomAccess(name string) (RandomAccessFile, error) {
	f, err := fs.base.OpenRandomAccess(name)
	if err != nil {
		return nil, err
	}
	fs.openFiles.Add(1)
	return &faultRandomAccessFile{fs: fs, name: name, f: f}, nil
}

func (fs *FaultInjectionFS) Rename(oldname, newname string) error {
	return fs.base.Rename(oldname, newname)
}

func (fs *FaultInjectionFS) Remove(name string) error {
	return fs.base.Remove(name)
}

func (fs *FaultInjectionFS) RemoveAll(path string) error {
	return fs.base.RemoveAll(path)
}

func (fs *FaultInjectionFS) MkdirAll(path string, perm os.FileMode) error {
	return fs.base.MkdirAll(path, perm)
}

func (fs *FaultInjectionFS) MkdirTemp(dir, pattern string) (string, error) {
	return fs.base.MkdirTemp(dir, pattern)
}

func (fs *FaultInjectionFS) Stat(name string) (os.FileInfo, error) {
	return fs.base.Stat(name)
}

func (fs *FaultInjectionFS) Exists(name string) bool {
	return fs.base.Exists(name)
}

func (fs *FaultInjectionFS) ListDir(path string) ([]string, error) {
	return fs.base.ListDir(path)
}

type faultWritableFile struct {
	fs     *FaultInjectionFS
	name   string
	f      WritableFile
	closed bool
}

func (f *faultWritableFile) Write(p []byte) (int, error) {
	if f.fs.consumeWrite(f.name, len(p)) {
		return 0, &os.PathError{Op: "write", Path: f.name, Err: ErrInjectedWriteError}
	}
	return f.f.Write(p)
}

func (f *faultWritableFile) Sync() error {
	return f.f.Sync()
}

func (f *faultWritableFile) Close() error {
	if !f.closed {
		f.closed = true
		f.fs.openFiles.Add(-1)
	}
	return f.f.Close()
}

type faultSequentialFile struct {
	fs     *FaultInjectionFS
	name   string
	f      SequentialFile
	closed bool
}

func (f *faultSequentialFile) Read(p []byte) (int, error) {
	if f.fs.shouldFailRead(f.name) {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: ErrInjectedReadError}
	}
	return f.f.Read(p)
}

func (f *faultSequentialFile) Close() error {
	if !f.closed {
		f.closed = true
		f.fs.openFiles.Add(-1)
	}
	return f.f.Close()
}

type faultRandomAccessFile struct {
	fs     *FaultInjectionFS
	name   string
	f      RandomAccessFile
	closed bool
}

func (f *faultRandomAccessFile) ReadAt(p []byte, off int64) (int, error) {
	if f.fs.shouldFailRead(f.name) {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: ErrInjectedReadError}
	}
	return f.f.ReadAt(p, off)
}

func (f *faultRandomAccessFile) Size() int64 {
	return f.f.Size()
}

func (f *faultRandomAccessFile) Close() error {
	if !f.closed {
		f.closed = true
		f.fs.openFiles.Add(-1)
	}
	return f.f.Close()
}

var _ FS = (*FaultInjectionFS)(nil)

// Package vfs provides the filesystem abstraction sequence files are read
// from and written to.
//
// This allows the format code to:
// - Use the real OS filesystem in production
// - Use a memory filesystem for testing
// - Use a fault-injection filesystem to exercise error paths
package vfs

import (
	"io"
	"os"
)

// FS is the main filesystem interface.
type FS interface {
	// Create creates a new writable file.
	// If the file already exists, it is truncated.
	Create(name string) (WritableFile, error)

	// Open opens an existing file for sequential reading.
	Open(name string) (SequentialFile, error)

	// OpenRandomAccess opens an existing file for random access reading.
	OpenRandomAccess(name string) (RandomAccessFile, error)

	// Rename atomically renames a file.
	Rename(oldname, newname string) error

	// Remove deletes a file.
	Remove(name string) error

	// RemoveAll removes a directory and all its contents.
	RemoveAll(path string) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm os.FileMode) error

	// MkdirTemp creates a new uniquely named directory inside dir and
	// returns its path. The name is pattern with a random suffix.
	MkdirTemp(dir, pattern string) (string, error)

	// Stat returns file info.
	Stat(name string) (os.FileInfo, error)

	// Exists returns true if the file exists.
	Exists(name string) bool

	// ListDir lists the names of the entries in a directory.
	ListDir(path string) ([]string, error)
}

// WritableFile is a file that can be written to.
type WritableFile interface {
	io.Writer
	io.Closer

	// Sync flushes the file contents to stable storage.
	Sync() error
}

// SequentialFile is a file that can be read sequentially.
type SequentialFile interface {
	io.Reader
	io.Closer
}

// RandomAccessFile is a file that can be read at any offset.
type RandomAccessFile interface {
	io.ReaderAt
	io.Closer

	// Size returns the file size.
	Size() int64
}

// osFS implements FS using the OS filesystem.
type osFS struct{}

// Default returns the default OS filesystem.
func Default() FS {
	return &osFS{}
}

func (fs *osFS) Create(name string) (WritableFile, error) {
	return os.Create(name)
}

func (fs *osFS) Open(name string) (SequentialFile, error) {
	return os.Open(name)
}

func (fs *osFS) OpenRandomAccess(name string) (RandomAccessFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &osRandomAccessFile{File: f, size: info.Size()}, nil
}

func (fs *osFS) Rename(oldname, newname string) error {
	return os.Rename(oldname, newname)
}

func (fs *osFS) Remove(name string) error {
	return os.Remove(name)
}

func (fs *osFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (fs *osFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (fs *osFS) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (fs *osFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (fs *osFS) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func (fs *osFS) ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// osRandomAccessFile wraps os.File for RandomAccessFile interface.
type osRandomAccessFile struct {
	*os.File
	size int64
}

func (rf *osRandomAccessFile) Size() int64 {
	return rf.size
}

package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/illarion/keevault/internal/crypto"
)

// File is a filesystem backend. When created with NewFileInRoot every
// operation goes through the os.Root and cannot leave that directory.
type File struct {
	path string
	root *os.Root
}

// NewFile creates a backend for the file at path
func NewFile(path string) *File {
	return &File{path: path}
}

// NewFileInRoot creates a backend for name relative to root
func NewFileInRoot(root *os.Root, name string) *File {
	return &File{path: name, root: root}
}

// Path returns the path the backend reads and writes
func (f *File) Path() string {
	if f.root != nil {
		return filepath.Join(f.root.Name(), f.path)
	}
	return f.path
}

// Open opens the file for reading
func (f *File) Open() (io.ReadCloser, error) {
	if f.root != nil {
		return f.root.Open(f.path)
	}
	return os.Open(f.path)
}

// Save returns a writer to a temporary file next to the target. Closing
// it replaces the target, truncating any prior contents; a failed write
// leaves the target untouched.
func (f *File) Save() (io.WriteCloser, error) {
	suffix, err := crypto.GenerateRandom(6)
	if err != nil {
		return nil, fmt.Errorf("failed to name temp file: %w", err)
	}
	dir, base := filepath.Split(f.path)
	tmp := filepath.Join(dir, "."+base+".tmp-"+hex.EncodeToString(suffix))

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	var file *os.File
	if f.root != nil {
		file, err = f.root.OpenFile(tmp, flags, 0600)
	} else {
		file, err = os.OpenFile(tmp, flags, 0600)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	return &fileWriter{f: f, file: file, tmp: tmp}, nil
}

// SendSaved returns nil: the file itself is the persisted artifact
func (f *File) SendSaved() []byte {
	return nil
}

// Name returns the base file name
func (f *File) Name() string {
	return filepath.Base(f.path)
}

func (f *File) rename(from, to string) error {
	if f.root != nil {
		return f.root.Rename(from, to)
	}
	return os.Rename(from, to)
}

func (f *File) remove(name string) error {
	if f.root != nil {
		return f.root.Remove(name)
	}
	return os.Remove(name)
}

type fileWriter struct {
	f      *File
	file   *os.File
	tmp    string
	failed bool
	closed bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	if err != nil {
		w.failed = true
	}
	return n, err
}

func (w *fileWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.file.Sync()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	if err == nil && w.failed {
		err = errors.New("incomplete write")
	}
	if err == nil {
		err = w.f.rename(w.tmp, w.f.path)
	}
	if err != nil {
		w.f.remove(w.tmp)
		return fmt.Errorf("failed to replace %s: %w", w.f.Name(), err)
	}
	return nil
}

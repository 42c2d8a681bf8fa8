package storage

import (
	"bytes"
	"io"
)

// Buffer is an in-memory backend used when the host has no file handle
// and must receive saved bytes back
type Buffer struct {
	name string
	data []byte
}

// NewBuffer creates a buffer backend holding a copy of data
func NewBuffer(name string, data []byte) *Buffer {
	return &Buffer{name: name, data: append([]byte(nil), data...)}
}

// Open returns a reader over a copy of the held bytes
func (b *Buffer) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(append([]byte(nil), b.data...))), nil
}

// Save clears the held bytes and returns a writer appending to them
func (b *Buffer) Save() (io.WriteCloser, error) {
	b.data = b.data[:0]
	return &bufferWriter{b: b}, nil
}

// SendSaved returns a copy of the current contents
func (b *Buffer) SendSaved() []byte {
	return append([]byte{}, b.data...)
}

func (b *Buffer) Name() string {
	return b.name
}

type bufferWriter struct {
	b *Buffer
}

func (w *bufferWriter) Write(p []byte) (int, error) {
	w.b.data = append(w.b.data, p...)
	return len(p), nil
}

func (w *bufferWriter) Close() error {
	return nil
}

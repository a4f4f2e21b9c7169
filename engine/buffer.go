package engine

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultMemoryThreshold is the largest file staged entirely in memory.
// Anything bigger is spooled through a temp file so that parallel workers
// moving large files do not multiply resident memory.
const DefaultMemoryThreshold = 10 * 1024 * 1024

// Buffer stages one downloaded file so it can be sized, verified and then
// replayed to the destination.
type Buffer interface {
	io.Writer
	io.Closer

	// Reader returns a fresh reader positioned at the start of the
	// staged content. Writing after calling Reader is not allowed.
	Reader() (io.Reader, error)

	// Len reports the number of bytes staged so far.
	Len() int64
}

// BufferFactory creates staging buffers sized for an expected file length.
type BufferFactory struct {
	// Threshold is the spill point in bytes. Zero keeps every file in
	// memory regardless of size.
	Threshold int64

	// ScratchDir is where spill files are created. Empty means the
	// system temp directory.
	ScratchDir string
}

// New returns a staging buffer for a file of the given expected size. The
// choice between memory and disk is made once, up front, from expected.
func (f *BufferFactory) New(expected int64) (Buffer, error) {
	if f.Threshold == 0 || expected <= f.Threshold {
		return &memoryBuffer{}, nil
	}
	tmp, err := os.CreateTemp(f.ScratchDir, "iftpfm2-*.tmp")
	if err != nil {
		return nil, &FatalError{Err: fmt.Errorf("create scratch file: %w", err)}
	}
	return &fileBuffer{f: tmp}, nil
}

// CheckScratch verifies up front that spill files can be created, so a bad
// scratch directory fails the run before any transfer starts.
func (f *BufferFactory) CheckScratch() error {
	if f.Threshold == 0 {
		return nil
	}
	tmp, err := os.CreateTemp(f.ScratchDir, "iftpfm2-probe-*.tmp")
	if err != nil {
		return &FatalError{Err: fmt.Errorf("scratch directory unusable: %w", err)}
	}
	name := tmp.Name()
	tmp.Close()
	os.Remove(name)
	return nil
}

type memoryBuffer struct {
	buf bytes.Buffer
}

func (m *memoryBuffer) Write(p []byte) (int, error) { return m.buf.Write(p) }
func (m *memoryBuffer) Len() int64                  { return int64(m.buf.Len()) }
func (m *memoryBuffer) Close() error                { return nil }

func (m *memoryBuffer) Reader() (io.Reader, error) {
	return bytes.NewReader(m.buf.Bytes()), nil
}

type fileBuffer struct {
	f *os.File
	n int64
}

func (d *fileBuffer) Write(p []byte) (int, error) {
	n, err := d.f.Write(p)
	d.n += int64(n)
	return n, err
}

func (d *fileBuffer) Len() int64 { return d.n }

func (d *fileBuffer) Reader() (io.Reader, error) {
	if _, err := d.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind scratch file %s: %w", filepath.Base(d.f.Name()), err)
	}
	return d.f, nil
}

func (d *fileBuffer) Close() error {
	name := d.f.Name()
	err := d.f.Close()
	if rmErr := os.Remove(name); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

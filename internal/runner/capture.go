package runner

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

// Capture receives one run's combined output and hands it back for analysis.
type Capture interface {
	io.Writer
	// Open returns a reader over everything written so far.
	Open() (io.ReadCloser, error)
	// Location is the file backing the capture, empty for memory.
	Location() string
	Close() error
}

// CaptureFactory creates the capture for run index with a display label.
type CaptureFactory func(index int, label string) (Capture, error)

// MemoryCapture buffers output in memory.
type MemoryCapture struct {
	buf bytes.Buffer
}

// MemoryCaptures returns a factory creating a fresh buffer per run.
func MemoryCaptures() CaptureFactory {
	return func(int, string) (Capture, error) { return &MemoryCapture{}, nil }
}

func (c *MemoryCapture) Write(p []byte) (int, error) { return c.buf.Write(p) }

func (c *MemoryCapture) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(c.buf.Bytes())), nil
}

func (c *MemoryCapture) Location() string { return "" }
func (c *MemoryCapture) Close() error     { return nil }

// Bytes returns the captured output.
func (c *MemoryCapture) Bytes() []byte { return c.buf.Bytes() }

// FileCapture streams output to a log file that is kept after the sweep.
type FileCapture struct {
	path string
	f    *os.File
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._=-]+`)

// FileCaptures returns a factory writing <dir>/<index>-<label>.log.
func FileCaptures(dir string) CaptureFactory {
	return func(index int, label string) (Capture, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create capture dir: %w", err)
		}
		name := fmt.Sprintf("%03d", index)
		if slug := unsafeChars.ReplaceAllString(label, "_"); slug != "" {
			name += "-" + slug
		}
		return NewFileCapture(filepath.Join(dir, name+".log"))
	}
}

// NewFileCapture truncates or creates path.
func NewFileCapture(path string) (*FileCapture, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileCapture{path: path, f: f}, nil
}

func (c *FileCapture) Write(p []byte) (int, error) { return c.f.Write(p) }

func (c *FileCapture) Open() (io.ReadCloser, error) { return os.Open(c.path) }

func (c *FileCapture) Location() string { return c.path }

func (c *FileCapture) Close() error { return c.f.Close() }

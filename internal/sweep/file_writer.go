package sweep

import (
	"encoding/json"
	"os"
)

// FileWriter appends results to a JSONL log that ReplayLog can read back.
type FileWriter struct {
	f   *os.File
	enc *json.Encoder
}

// NewFileWriter creates or truncates path.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileWriter{f: f, enc: json.NewEncoder(f)}, nil
}

// WriteResult logs a single result.
func (w *FileWriter) WriteResult(r RunResult) error {
	return w.enc.Encode(r)
}

// Close closes the underlying file.
func (w *FileWriter) Close() error {
	return w.f.Close()
}

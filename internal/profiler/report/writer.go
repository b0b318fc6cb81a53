package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

const (
	filePrefix = "performance_report_"
	fileLayout = "20060102_150405"
)

// Writer stores reports as files in a directory.
type Writer struct {
	dir  string
	gzip bool
	now  func() time.Time
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithGzip compresses report files.
func WithGzip(enabled bool) WriterOption {
	return func(w *Writer) { w.gzip = enabled }
}

// NewWriter creates a writer for dir. The directory is created on first
// write.
func NewWriter(dir string, opts ...WriterOption) *Writer {
	w := &Writer{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FileName returns the name a report taken at t is written under.
func FileName(t time.Time, compressed bool) string {
	name := filePrefix + t.Format(fileLayout) + ".json"
	if compressed {
		name += ".gz"
	}
	return name
}

// Write stores r and returns the file path.
func (w *Writer) Write(r *Report) (string, error) {
	data, err := Marshal(r)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(w.dir, FileName(w.now(), w.gzip))
	if w.gzip {
		data, err = compress(data)
		if err != nil {
			return "", err
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

// Marshal encodes r as indented JSON.
func Marshal(r *Report) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("report cannot be nil")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress report: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress report: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadFile returns the JSON content of a report file, decompressing .gz
// files.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return data, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed report: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress report: %w", err)
	}
	return out, nil
}

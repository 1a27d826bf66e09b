package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FileSystemSink writes documents into a directory
type FileSystemSink struct {
	dir    string
	logger *zap.Logger
}

// FileSystemSinkOption configures a FileSystemSink
type FileSystemSinkOption func(*FileSystemSink)

// WithSinkLogger sets the logger
func WithSinkLogger(logger *zap.Logger) FileSystemSinkOption {
	return func(s *FileSystemSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileSystemSink creates dir if needed
func NewFileSystemSink(dir string, opts ...FileSystemSinkOption) (*FileSystemSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create receipt directory: %w", err)
	}
	s := &FileSystemSink{dir: dir, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save writes r to dir/name. A partially written file never replaces an
// existing one.
func (s *FileSystemSink) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	dest := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}

	s.logger.Debug("receipt saved", zap.String("path", dest), zap.Int64("size", n))
	return dest, nil
}

var _ Sink = (*FileSystemSink)(nil)

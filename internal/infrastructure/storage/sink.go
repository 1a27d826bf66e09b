// Package storage saves downloaded receipt documents.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/campusfin/client/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Sink persists one named document and returns where it ended up
type Sink interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// NewSink creates the sink selected by receipts.sink
func NewSink(cfg *config.Config, logger *zap.Logger) (Sink, error) {
	switch cfg.Receipts.Sink {
	case "filesystem":
		return NewFileSystemSink(cfg.Receipts.Dir, WithSinkLogger(logger))
	case "s3":
		return NewS3Sink(&cfg.Storage, WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown receipt sink %q", cfg.Receipts.Sink)
	}
}

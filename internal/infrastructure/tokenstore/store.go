// Package tokenstore persists the session's bearer token between runs.
package tokenstore

import (
	"context"
	"fmt"

	"github.com/campusfin/client/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Store holds at most one token. Load returns "" when nothing is stored.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	Close() error
}

// New creates the store selected by session.store
func New(cfg *config.Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Session.Store {
	case "file":
		return NewFileStore(cfg.Session.FilePath), nil
	case "redis":
		store, err := NewRedisStore(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis token store: %w", err)
		}
		logger.Debug("using redis token store", zap.String("addr", cfg.Redis.Addr()))
		return store, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.Session.Store)
	}
}

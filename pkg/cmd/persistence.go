// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/dukex/agencyflow/pkg/persistence/file"
	"github.com/dukex/agencyflow/pkg/persistence/postgresql"
	"github.com/dukex/agencyflow/pkg/persistence/redisrotation"
)

// ErrUnsupportedPersistence is returned for database URLs with an unknown scheme.
var ErrUnsupportedPersistence = errors.New("unsupported persistence provider")

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

// NewPersistence builds the persistence layer named by the database URL scheme:
// file://<dir> or postgres://... A URL without a scheme is a file directory.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	switch provider {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger.With("module", "postgresql"), databaseURL)
	case "file":
		root := strings.TrimPrefix(databaseURL, "file://")
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", root, err)
		}

		return file.NewPersistence(root), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPersistence, provider)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return provider
}

// WithRedisRotation replaces the round-robin cursor of base with a Redis-backed
// one so several API instances share one rotation. An empty url returns base.
func WithRedisRotation(ctx context.Context, logger *slog.Logger, base persistence.Persistence, url string) (persistence.Persistence, error) {
	if url == "" {
		return base, nil
	}

	cursor, err := redisrotation.New(ctx, logger.With("module", "redis_rotation"), url)
	if err != nil {
		return nil, err
	}

	return &redisRotationPersistence{Persistence: base, cursor: cursor}, nil
}

type redisRotationPersistence struct {
	persistence.Persistence

	cursor *redisrotation.Cursor
}

func (p *redisRotationPersistence) RotationCursor() persistence.RotationCursor {
	return p.cursor
}

func (p *redisRotationPersistence) HealthCheck(ctx context.Context) error {
	if err := p.Persistence.HealthCheck(ctx); err != nil {
		return err
	}

	if err := p.cursor.HealthCheck(ctx); err != nil {
		return fmt.Errorf("redis rotation cursor: %w", err)
	}

	return nil
}

func (p *redisRotationPersistence) Close(ctx context.Context) error {
	return errors.Join(p.Persistence.Close(ctx), p.cursor.Close())
}

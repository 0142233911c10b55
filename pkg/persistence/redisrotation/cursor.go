// Package redisrotation stores round-robin cursors in Redis so every engine
// instance shares one sequence per step.
package redisrotation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "agencyflow:rotation:"

// Cursor implements persistence.RotationCursor with INCR.
type Cursor struct {
	client *redis.Client
	logger *slog.Logger
}

// New connects to the Redis server at url (redis://host:port/db).
func New(ctx context.Context, logger *slog.Logger, url string) (*Cursor, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Cursor{client: client, logger: logger}, nil
}

// Next returns the position before the increment, starting at 0.
func (c *Cursor) Next(ctx context.Context, key string) (int64, error) {
	value, err := c.client.Incr(ctx, keyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance rotation cursor %s: %w", key, err)
	}

	c.logger.DebugContext(ctx, "advanced rotation cursor", "key", key, "position", value-1)

	return value - 1, nil
}

func (c *Cursor) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cursor) Close() error {
	return c.client.Close()
}

package postgresql

import (
	"context"
	"database/sql"
	"fmt"
)

// RotationCursor is a round-robin counter table advanced by an atomic upsert.
type RotationCursor struct {
	db *sql.DB
}

func NewRotationCursor(db *sql.DB) *RotationCursor {
	return &RotationCursor{db: db}
}

func (c *RotationCursor) Next(ctx context.Context, key string) (int64, error) {
	var position int64

	err := c.db.QueryRowContext(ctx, `
		INSERT INTO rotation_cursors (key, position) VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET position = rotation_cursors.position + 1
		RETURNING position - 1
	`, key).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("failed to advance rotation cursor %s: %w", key, err)
	}

	return position, nil
}

package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const cursorsCollection = "rotation_cursors"

type cursorDocument struct {
	Key      string `json:"key"`
	Position int64  `json:"position"`
}

// RotationCursor keeps round-robin positions as one document per key.
type RotationCursor struct {
	store *Persistence
}

func (c *RotationCursor) Next(_ context.Context, key string) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	sum := sha256.Sum256([]byte(key))
	id := hex.EncodeToString(sum[:8])

	document := cursorDocument{Key: key}
	if _, err := c.store.read(cursorsCollection, id, &document); err != nil {
		return 0, fmt.Errorf("failed to read rotation cursor %s: %w", key, err)
	}

	current := document.Position
	document.Position++

	if err := c.store.write(cursorsCollection, id, document); err != nil {
		return 0, fmt.Errorf("failed to advance rotation cursor %s: %w", key, err)
	}

	return current, nil
}

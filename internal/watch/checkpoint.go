package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pairPool/internal/model"
)

// CheckpointStore persists the watcher cursor.
type CheckpointStore interface {
	Load(ctx context.Context) (model.Cursor, bool, error)
	Save(ctx context.Context, cursor model.Cursor) error
}

type checkpoint struct {
	model.Cursor
	UpdatedAt string `json:"updated_at"`
}

// FileCheckpointStore keeps the checkpoint in a local JSON file.
type FileCheckpointStore struct {
	Path string
}

func (c *FileCheckpointStore) Load(ctx context.Context) (model.Cursor, bool, error) {
	if c == nil || c.Path == "" {
		return model.Cursor{}, false, nil
	}

	stat, err := os.Stat(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Cursor{}, false, nil
		}
		return model.Cursor{}, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return model.Cursor{}, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return model.Cursor{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return model.Cursor{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp.Cursor, true, nil
}

func (c *FileCheckpointStore) Save(ctx context.Context, cursor model.Cursor) error {
	if c == nil || c.Path == "" {
		return nil
	}

	dir := filepath.Dir(c.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp := checkpoint{
		Cursor:    cursor,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.Path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.Path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

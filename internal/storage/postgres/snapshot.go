package postgres

import (
	"context"

	"pairPool/internal/model"
)

// SnapshotStore stores pool snapshots in the pool_snapshots table.
type SnapshotStore struct {
	Store *Store
	Name  string
}

func (s *SnapshotStore) Load(ctx context.Context) (model.PoolSnapshot, bool, error) {
	if s == nil || s.Store == nil {
		return model.PoolSnapshot{}, false, nil
	}
	return s.Store.LoadSnapshot(ctx, s.Name)
}

func (s *SnapshotStore) Save(ctx context.Context, snap model.PoolSnapshot) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveSnapshot(ctx, s.Name, snap)
}

// CheckpointStore stores the watcher cursor in watcher_state.
type CheckpointStore struct {
	Store *Store
	Name  string
}

func (s *CheckpointStore) Load(ctx context.Context) (model.Cursor, bool, error) {
	if s == nil || s.Store == nil {
		return model.Cursor{}, false, nil
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *CheckpointStore) Save(ctx context.Context, cursor model.Cursor) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, cursor)
}

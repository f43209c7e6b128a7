package postgres

import (
	"context"
	"testing"

	"pairPool/internal/model"
)

func TestNewStoreRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestNilStoresAreNoop(t *testing.T) {
	ctx := context.Background()
	var snaps *SnapshotStore
	if err := snaps.Save(ctx, model.PoolSnapshot{}); err != nil {
		t.Fatalf("save on nil store: %v", err)
	}
	if _, ok, err := snaps.Load(ctx); ok || err != nil {
		t.Fatalf("load on nil store: ok=%v err=%v", ok, err)
	}

	checkpoints := &CheckpointStore{}
	if err := checkpoints.Save(ctx, model.Cursor{Block: 10}); err != nil {
		t.Fatalf("save on empty checkpoint store: %v", err)
	}
}

func TestEmptyBatchSkipsDatabase(t *testing.T) {
	s := &Store{}
	if err := s.PutSettlements(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}

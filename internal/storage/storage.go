package storage

import (
	"context"

	"pairPool/internal/model"
)

// Journal is an append-only sink for settlements. A settlement is written again
// whenever its payout status changes; readers keep the latest record per ID.
type Journal interface {
	PutSettlements(ctx context.Context, settlements []model.Settlement) error
}

// SnapshotStore persists the latest pool snapshot.
type SnapshotStore interface {
	Save(ctx context.Context, snap model.PoolSnapshot) error
	Load(ctx context.Context) (model.PoolSnapshot, bool, error)
}

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pairPool/internal/model"
)

func TestJsonlJournalKeepsLatestRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "settlements.jsonl")
	journal := NewJsonlJournal(path)
	ctx := context.Background()

	pending := model.Settlement{ID: "s1", Kind: model.SettlementSwap, AmountIn: "100", AmountOut: "30", PayoutStatus: model.PayoutPending}
	liquidity := model.Settlement{ID: "s2", Kind: model.SettlementLiquidity, AmountIn: "500", AmountOut: "0", PayoutStatus: model.PayoutNone}
	if err := journal.PutSettlements(ctx, []model.Settlement{pending, liquidity}); err != nil {
		t.Fatalf("put settlements: %v", err)
	}
	failed := pending
	failed.PayoutStatus = model.PayoutFailed
	failed.PayoutError = "holder storage not provisioned"
	if err := journal.PutSettlements(ctx, []model.Settlement{failed}); err != nil {
		t.Fatalf("put settlements: %v", err)
	}
	if err := journal.PutSettlements(ctx, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	got, err := ReadSettlements(path)
	if err != nil {
		t.Fatalf("read settlements: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 settlements, got %d", len(got))
	}
	if got[0].ID != "s1" || got[0].PayoutStatus != model.PayoutFailed {
		t.Fatalf("expected s1 failed first, got %+v", got[0])
	}
	if got[1].ID != "s2" {
		t.Fatalf("expected s2 second, got %s", got[1].ID)
	}
}

func TestReadSettlementsMissingFile(t *testing.T) {
	got, err := ReadSettlements(filepath.Join(t.TempDir(), "missing.jsonl"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestFileSnapshotStoreRoundTrip(t *testing.T) {
	store := &FileSnapshotStore{Path: filepath.Join(t.TempDir(), "state", "pool.json")}
	ctx := context.Background()

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}

	snap := model.PoolSnapshot{
		Owner:      "owner",
		InvariantK: "270000",
		Assets: []model.AssetSnapshot{
			{Asset: "token-a", MirroredBalance: "1000", SyncState: "ready"},
			{Asset: "token-b", MirroredBalance: "270", SyncState: "ready"},
		},
	}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(store.Path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file should be renamed away")
	}

	got, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.InvariantK != "270000" || len(got.Assets) != 2 || got.Assets[1].MirroredBalance != "270" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

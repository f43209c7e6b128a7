package pool

import (
	"time"

	"github.com/holiman/uint256"

	"pairPool/internal/model"
)

// SyncState is the bootstrap/refresh state of one asset.
type SyncState int

const (
	Uninitialized SyncState = iota
	MetadataPending
	MetadataReady
	BalancePending
	Ready
)

func (s SyncState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case MetadataPending:
		return "metadata_pending"
	case MetadataReady:
		return "metadata_ready"
	case BalancePending:
		return "balance_pending"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

func (s SyncState) pending() bool {
	return s == MetadataPending || s == BalancePending
}

// AssetEntry is the pool's view of one external asset ledger.
type AssetEntry struct {
	LedgerID     model.AssetID
	DisplayName  string
	Symbol       string
	Decimals     uint8
	Mirrored     *uint256.Int
	Sync         SyncState
	LastErr      error
	PendingSince time.Time
	LastDrift    *model.Drift

	hasMeta bool
	// seq counts mirror mutations; a balance response compares it against the
	// value captured when the query was issued.
	seq uint64
}

func newAssetEntry(id model.AssetID) *AssetEntry {
	return &AssetEntry{LedgerID: id, Mirrored: new(uint256.Int)}
}

// State is the pool aggregate. It is owned by a single Pool.
type State struct {
	Owner       model.AccountID
	Self        model.AccountID
	Assets      [2]*AssetEntry
	K           *uint256.Int
	Ticker      Ticker
	Initialized bool
}

func (s *State) entry(id model.AssetID) (*AssetEntry, bool) {
	for _, e := range s.Assets {
		if e != nil && e.LedgerID == id {
			return e, true
		}
	}
	return nil, false
}

func (s *State) other(e *AssetEntry) *AssetEntry {
	if s.Assets[0] == e {
		return s.Assets[1]
	}
	return s.Assets[0]
}

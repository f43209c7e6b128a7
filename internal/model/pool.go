package model

// PoolSnapshot is a read-only view of the pool state.
type PoolSnapshot struct {
	Owner       string          `json:"owner"`
	Self        string          `json:"self"`
	Initialized bool            `json:"initialized"`
	Assets      []AssetSnapshot `json:"assets"`
	InvariantK  string          `json:"invariant_k"`
	Ticker      *TickerSnapshot `json:"ticker,omitempty"`
	TakenAt     string          `json:"taken_at"`
}

// AssetSnapshot describes one side of the pool.
type AssetSnapshot struct {
	Asset           string `json:"asset"`
	DisplayName     string `json:"display_name"`
	Symbol          string `json:"symbol"`
	Decimals        uint8  `json:"decimals"`
	MirroredBalance string `json:"mirrored_balance"`
	SyncState       string `json:"sync_state"`
	PendingSince    string `json:"pending_since,omitempty"`
	LastError       string `json:"last_error,omitempty"`
	LastDrift       *Drift `json:"last_drift,omitempty"`
}

// Drift records a balance response that overrode local mutations.
type Drift struct {
	Mirrored   string `json:"mirrored"`
	Reported   string `json:"reported"`
	ObservedAt string `json:"observed_at"`
}

// TickerSnapshot is the A-in-B price and its last movement.
type TickerSnapshot struct {
	Ratio     string `json:"ratio"`
	Direction string `json:"direction"`
	Change    string `json:"change"`
}

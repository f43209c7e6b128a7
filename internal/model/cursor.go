package model

// Cursor is the deposit watcher's progress. Every log in blocks before Block
// has been delivered. Logs of Block itself have been delivered up to and
// including LogIndex when Partial is set, and all of them otherwise.
type Cursor struct {
	Block    uint64 `json:"last_processed_block"`
	LogIndex uint64 `json:"last_log_index,omitempty"`
	Partial  bool   `json:"partial,omitempty"`
}

// Covers reports whether the log at (block, index) was already delivered.
func (c Cursor) Covers(block, index uint64) bool {
	switch {
	case block < c.Block:
		return true
	case block > c.Block:
		return false
	default:
		return !c.Partial || index <= c.LogIndex
	}
}

// Next is the first block that may still hold undelivered logs.
func (c Cursor) Next() uint64 {
	if c.Partial {
		return c.Block
	}
	return c.Block + 1
}

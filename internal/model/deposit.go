package model

import "github.com/holiman/uint256"

// DepositNotification is raised by a ledger when a transfer targets the pool.
type DepositNotification struct {
	Asset   AssetID
	Sender  AccountID
	Amount  *uint256.Int
	Message string
	Source  *LogRef
}

// DepositMessage is the structured message attached to a deposit.
type DepositMessage struct {
	Sell AssetID `json:"sell,omitempty"`
	Buy  AssetID `json:"buy,omitempty"`
}

// LogRef points at the chain log a deposit was observed in.
type LogRef struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
}

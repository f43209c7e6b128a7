package model

// AssetID identifies an external asset ledger (for ERC20, the token contract address).
type AssetID string

// AccountID identifies a holder on an asset ledger.
type AccountID string

package model

// AssetMeta captures ledger-reported asset metadata.
type AssetMeta struct {
	Asset    AssetID `json:"asset"`
	Decimals uint8   `json:"decimals"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
}

package model

// Settlement kinds.
const (
	SettlementLiquidity = "liquidity"
	SettlementSwap      = "swap"
)

// Payout statuses of a settlement.
const (
	PayoutNone      = "none"
	PayoutPending   = "pending"
	PayoutConfirmed = "confirmed"
	PayoutFailed    = "failed"
)

// Settlement records one processed deposit and the state of its payout.
// Amounts are decimal strings in ledger-native units.
type Settlement struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	Sender       string  `json:"sender"`
	SellAsset    string  `json:"sell_asset"`
	BuyAsset     string  `json:"buy_asset,omitempty"`
	AmountIn     string  `json:"amount_in"`
	AmountOut    string  `json:"amount_out"`
	PayoutStatus string  `json:"payout_status"`
	PayoutError  string  `json:"payout_error,omitempty"`
	Source       *LogRef `json:"source,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

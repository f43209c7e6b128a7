// Package swap implements constant-product pricing on ledger-native integer units.
package swap

import (
	"fmt"

	"github.com/holiman/uint256"

	"pairPool/internal/model"
)

// MaxBalance is the largest balance an asset ledger can represent (uint128).
var MaxBalance = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// Leg is one side of a swap as seen by the pricing curve.
type Leg struct {
	Asset    model.AssetID
	Balance  *uint256.Int
	Decimals uint8
}

// Price returns how many buy units a sell of a moves out of a pool holding
// x sell units and y buy units: b = y*a / (x+a), truncated toward zero.
// It is the same curve as y - x*y/(x+a) but never forms x*y, and its
// truncation always leaves the remainder in the pool.
func Price(x, y, a *uint256.Int) (*uint256.Int, error) {
	if x == nil || y == nil || x.IsZero() || y.IsZero() {
		return nil, ErrEmptyReserve
	}
	if a == nil || a.IsZero() {
		return new(uint256.Int), nil
	}

	den, overflow := new(uint256.Int).AddOverflow(x, a)
	if overflow {
		return nil, fmt.Errorf("price denominator: %w", ErrOverflow)
	}
	// y*a is formed in 512 bits; the quotient is below y so it always fits.
	b, _ := new(uint256.Int).MulDivOverflow(y, a, den)
	return b, nil
}

// Quote prices a sell of amount (in the sell asset's native units) and returns
// the buy amount in the buy asset's native units. Decimals do not enter the
// curve: scaling the sell side by a common factor cancels out of y*a/(x+a),
// and scaling the buy side back down with floor division lands on the same
// native result, so pricing native units directly is exact and never
// overflows on a decimals gap.
func Quote(sell, buy Leg, amount *uint256.Int) (*uint256.Int, error) {
	if sell.Asset == buy.Asset {
		return nil, ErrSameAsset
	}
	return Price(sell.Balance, buy.Balance, amount)
}

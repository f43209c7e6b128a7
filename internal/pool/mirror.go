package pool

import (
	"github.com/holiman/uint256"

	"pairPool/internal/swap"
)

func creditBalance(current, amount *uint256.Int) (*uint256.Int, error) {
	next, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow || next.Gt(swap.MaxBalance) {
		return nil, invariantViolation("credit of %s to balance %s exceeds ledger width", amount.Dec(), current.Dec())
	}
	return next, nil
}

func debitBalance(current, amount *uint256.Int) (*uint256.Int, error) {
	if current.Lt(amount) {
		return nil, invariantViolation("debit of %s from balance %s underflows", amount.Dec(), current.Dec())
	}
	return new(uint256.Int).Sub(current, amount), nil
}

func (p *Pool) setMirrored(e *AssetEntry, value *uint256.Int) {
	e.Mirrored = value.Clone()
	e.seq++
	p.metrics.SetMirrored(string(e.LedgerID), e.Mirrored)
}

// recomputeK refreshes the cached product. Both factors are bounded by
// swap.MaxBalance so the product always fits.
func (p *Pool) recomputeK() {
	a, b := p.state.Assets[0], p.state.Assets[1]
	if a == nil || b == nil {
		p.state.K = new(uint256.Int)
		return
	}
	p.state.K = new(uint256.Int).Mul(a.Mirrored, b.Mirrored)
	p.updateTicker()
}

package pool

import (
	"math/big"

	"pairPool/internal/model"
)

const ratioScale = 18

// Direction is the movement of the pool price since the previous observation.
type Direction string

const (
	Unchanged Direction = "unchanged"
	Increased Direction = "increased"
	Decreased Direction = "decreased"
)

// Ticker tracks the price of the first asset in units of the second.
type Ticker struct {
	Ratio     *big.Rat
	Direction Direction
	Change    *big.Rat
}

func (t *Ticker) update(ratio *big.Rat) {
	if t.Ratio == nil {
		t.Ratio, t.Direction, t.Change = ratio, Unchanged, new(big.Rat)
		return
	}
	switch ratio.Cmp(t.Ratio) {
	case 0:
		t.Direction, t.Change = Unchanged, new(big.Rat)
	case -1:
		t.Direction, t.Change = Decreased, new(big.Rat).Quo(t.Ratio, ratio)
	default:
		t.Direction, t.Change = Increased, new(big.Rat).Quo(ratio, t.Ratio)
	}
	t.Ratio = ratio
}

func (t *Ticker) snapshot() *model.TickerSnapshot {
	if t.Ratio == nil {
		return nil
	}
	return &model.TickerSnapshot{
		Ratio:     t.Ratio.FloatString(ratioScale),
		Direction: string(t.Direction),
		Change:    t.Change.FloatString(ratioScale),
	}
}

// updateTicker prices asset A in asset B in human units:
// (y / 10^decB) / (x / 10^decA).
func (p *Pool) updateTicker() {
	a, b := p.state.Assets[0], p.state.Assets[1]
	if !a.hasMeta || !b.hasMeta || a.Mirrored.IsZero() || b.Mirrored.IsZero() {
		return
	}
	num := new(big.Int).Mul(b.Mirrored.ToBig(), pow10(a.Decimals))
	den := new(big.Int).Mul(a.Mirrored.ToBig(), pow10(b.Decimals))
	p.state.Ticker.update(new(big.Rat).SetFrac(num, den))
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

package swap

import (
	"fmt"

	"github.com/holiman/uint256"
)

// CheckInvariant verifies that selling a into (x, y) for b keeps the product
// at or above x*y and that b is the largest such amount, so truncation cost the
// trader at most one unit and never cost the pool anything.
func CheckInvariant(x, y, a, b *uint256.Int) error {
	if b.Cmp(y) >= 0 {
		return fmt.Errorf("%w: payout %s drains reserve %s", ErrInvariantBroken, b.Dec(), y.Dec())
	}

	k, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return fmt.Errorf("k: %w", ErrOverflow)
	}
	newX, overflow := new(uint256.Int).AddOverflow(x, a)
	if overflow {
		return fmt.Errorf("x+a: %w", ErrOverflow)
	}
	newY := new(uint256.Int).Sub(y, b)

	after, overflow := new(uint256.Int).MulOverflow(newX, newY)
	if overflow {
		return fmt.Errorf("k after: %w", ErrOverflow)
	}
	if after.Lt(k) {
		return fmt.Errorf("%w: k fell from %s to %s", ErrInvariantBroken, k.Dec(), after.Dec())
	}

	if newY.IsZero() {
		return nil
	}
	oneMore := new(uint256.Int).Sub(newY, uint256.NewInt(1))
	short, overflow := new(uint256.Int).MulOverflow(newX, oneMore)
	if overflow {
		return fmt.Errorf("k bound: %w", ErrOverflow)
	}
	if !short.Lt(k) {
		return fmt.Errorf("%w: payout %s truncated by more than one unit", ErrInvariantBroken, b.Dec())
	}
	return nil
}

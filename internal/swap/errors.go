package swap

import "errors"

var (
	ErrEmptyReserve    = errors.New("reserve is empty")
	ErrSameAsset       = errors.New("sell and buy asset are equal")
	ErrOverflow        = errors.New("integer overflow")
	ErrInvariantBroken = errors.New("constant product invariant broken")
)

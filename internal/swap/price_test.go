package swap

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func dec(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := uint256.FromDecimal(s)
	require.NoError(t, err)
	return v
}

// priceFromK is the textbook form y - x*y/(x+a).
func priceFromK(x, y, a *uint256.Int) *uint256.Int {
	k := new(uint256.Int).Mul(x, y)
	den := new(uint256.Int).Add(x, a)
	return new(uint256.Int).Sub(y, k.Div(k, den))
}

func TestPriceScenario(t *testing.T) {
	b, err := Price(u(900), u(300), u(100))
	require.NoError(t, err)
	require.Equal(t, uint64(30), b.Uint64())
	require.NoError(t, CheckInvariant(u(900), u(300), u(100), b))
}

func TestPriceZeroAmount(t *testing.T) {
	b, err := Price(u(900), u(300), u(0))
	require.NoError(t, err)
	require.True(t, b.IsZero())
}

func TestPriceSmallAmountRoundsToZero(t *testing.T) {
	b, err := Price(u(1_000_000), u(10), u(1))
	require.NoError(t, err)
	require.True(t, b.IsZero())
	require.NoError(t, CheckInvariant(u(1_000_000), u(10), u(1), b))
}

func TestPriceEmptyReserve(t *testing.T) {
	_, err := Price(u(0), u(300), u(100))
	require.ErrorIs(t, err, ErrEmptyReserve)

	_, err = Price(u(900), u(0), u(100))
	require.ErrorIs(t, err, ErrEmptyReserve)
}

func TestPriceMonotonic(t *testing.T) {
	x, y := u(12_345), u(6_789)
	prev := new(uint256.Int)
	for a := uint64(0); a <= 5_000; a += 7 {
		b, err := Price(x, y, u(a))
		require.NoError(t, err)
		require.False(t, b.Lt(prev), "price decreased at a=%d", a)
		require.True(t, b.Lt(y))
		prev = b
	}
}

func TestPriceMatchesProductFormWithinTruncation(t *testing.T) {
	cases := []struct{ x, y, a uint64 }{
		{900, 300, 100},
		{1000, 2000, 100},
		{7, 13, 5},
		{1, 1, 1},
		{3, 1_000_000, 2},
		{999_999, 3, 999_999},
	}
	for _, tc := range cases {
		x, y, a := u(tc.x), u(tc.y), u(tc.a)
		b, err := Price(x, y, a)
		require.NoError(t, err)

		naive := priceFromK(x, y, a)
		require.False(t, naive.Lt(b), "pool-favoring form must not exceed product form")
		diff := new(uint256.Int).Sub(naive, b)
		require.True(t, diff.Cmp(u(1)) <= 0, "forms differ by %s for %+v", diff.Dec(), tc)

		require.NoError(t, CheckInvariant(x, y, a, b))
	}
}

func TestPriceLargeReservesDoNotOverflow(t *testing.T) {
	a := dec(t, "1000000000000000000")
	x := new(uint256.Int).Sub(MaxBalance, a)
	y := MaxBalance.Clone()

	b, err := Price(x, y, a)
	require.NoError(t, err)
	require.True(t, b.Lt(y))
	require.NoError(t, CheckInvariant(x, y, a, b))
}

func TestQuoteSameAsset(t *testing.T) {
	leg := Leg{Asset: "a", Balance: u(10), Decimals: 6}
	_, err := Quote(leg, leg, u(1))
	require.ErrorIs(t, err, ErrSameAsset)
}

func TestQuoteMixedDecimalsMatchesNativePrice(t *testing.T) {
	cases := []struct {
		name         string
		sellDecimals uint8
		buyDecimals  uint8
		x, y, a      string
	}{
		{"sell has fewer decimals", 3, 5, "900000", "30000000", "100000"},
		{"buy has fewer decimals", 18, 6, "900000000000000000000", "300000000", "100000000000000000000"},
		{"equal decimals", 8, 8, "900", "300", "100"},
		{"odd remainder", 2, 9, "12345", "987654321", "77"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, y, a := dec(t, tc.x), dec(t, tc.y), dec(t, tc.a)
			got, err := Quote(
				Leg{Asset: "sell", Balance: x, Decimals: tc.sellDecimals},
				Leg{Asset: "buy", Balance: y, Decimals: tc.buyDecimals},
				a,
			)
			require.NoError(t, err)

			want, err := Price(x, y, a)
			require.NoError(t, err)
			require.Equal(t, want.Dec(), got.Dec())
			require.NoError(t, CheckInvariant(x, y, a, got))
		})
	}
}

func TestQuoteWideDecimalsGap(t *testing.T) {
	x, y, a := dec(t, "1000000000000"), dec(t, "100000000000000000000000000000000000000"), dec(t, "10000000000")

	got, err := Quote(
		Leg{Asset: "sell", Balance: x, Decimals: 0},
		Leg{Asset: "buy", Balance: y, Decimals: 30},
		a,
	)
	require.NoError(t, err)
	require.Equal(t, "990099009900990099009900990099009900", got.Dec())

	want, err := Price(x, y, a)
	require.NoError(t, err)
	require.Equal(t, want.Dec(), got.Dec())
	require.NoError(t, CheckInvariant(x, y, a, got))

	got, err = Quote(
		Leg{Asset: "sell", Balance: u(10), Decimals: 0},
		Leg{Asset: "buy", Balance: u(10), Decimals: 200},
		u(1),
	)
	require.NoError(t, err)
	require.Equal(t, uint64(0), got.Uint64())
}

func TestPriceWideProduct(t *testing.T) {
	// y*a exceeds 256 bits while the result does not.
	y := new(uint256.Int).Lsh(u(1), 200)
	a := new(uint256.Int).Lsh(u(1), 100)
	x := u(1)

	got, err := Price(x, y, a)
	require.NoError(t, err)

	num := new(big.Int).Mul(y.ToBig(), a.ToBig())
	want := num.Div(num, new(big.Int).Add(x.ToBig(), a.ToBig()))
	require.Equal(t, want.String(), got.Dec())
}

func TestPriceDenominatorOverflow(t *testing.T) {
	all := new(uint256.Int).SetAllOne()
	_, err := Price(u(2), u(10), all)
	require.True(t, errors.Is(err, ErrOverflow))
}

func TestCheckInvariantRejectsOverpayment(t *testing.T) {
	err := CheckInvariant(u(900), u(300), u(100), u(31))
	require.ErrorIs(t, err, ErrInvariantBroken)

	err = CheckInvariant(u(900), u(300), u(100), u(300))
	require.ErrorIs(t, err, ErrInvariantBroken)
}

func TestCheckInvariantRejectsUnderpayment(t *testing.T) {
	err := CheckInvariant(u(900), u(300), u(100), u(28))
	require.ErrorIs(t, err, ErrInvariantBroken)
}

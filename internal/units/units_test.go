package units

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestParseAmountWholeNumber(t *testing.T) {
	got, err := ParseAmount("50", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Dec() != "50000000000000000000000000" {
		t.Fatalf("amount mismatch: %s", got.Dec())
	}
}

func TestParseAmountWithDecimals(t *testing.T) {
	got, err := ParseAmount("265.555", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Dec() != "265555000000000000000000000" {
		t.Fatalf("amount mismatch: %s", got.Dec())
	}
}

func TestParseAmountLeadingZeroFraction(t *testing.T) {
	got, err := ParseAmount("1.05", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 1050 {
		t.Fatalf("amount mismatch: %s", got.Dec())
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, input := range []string{"", "abc", "1.2.3", "-5", "1.0001"} {
		if _, err := ParseAmount(input, 3); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(uint256.NewInt(1050), 3); got != "1.050" {
		t.Fatalf("format mismatch: %s", got)
	}
	if got := FormatAmount(uint256.NewInt(42), 0); got != "42" {
		t.Fatalf("format mismatch: %s", got)
	}
	if got := FormatAmount(nil, 6); got != "0" {
		t.Fatalf("format mismatch: %s", got)
	}
}

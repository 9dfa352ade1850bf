package chain

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFromBaseUnits(t *testing.T) {
	wei, ok := new(big.Int).SetString("1500000000000000000", 10)
	if !ok {
		t.Fatal("bad literal")
	}
	got := FromBaseUnits(wei, 18)
	if !got.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("expected 1.5, got %s", got)
	}

	if !FromBaseUnits(nil, 18).IsZero() {
		t.Fatal("nil amount should convert to zero")
	}

	cents := big.NewInt(123456)
	if got := FromBaseUnits(cents, 6); !got.Equal(decimal.RequireFromString("0.123456")) {
		t.Fatalf("expected 0.123456, got %s", got)
	}
}

func TestToBaseUnits(t *testing.T) {
	got := ToBaseUnits(decimal.RequireFromString("2.25"), 18)
	want, _ := new(big.Int).SetString("2250000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}

	// Precision beyond the token's decimals is truncated, never rounded up.
	got = ToBaseUnits(decimal.RequireFromString("0.0000019"), 6)
	if got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected 1, got %s", got)
	}
}

func TestToBaseUnitsRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("104.300000000000000001")
	back := FromBaseUnits(ToBaseUnits(amount, 18), 18)
	if !back.Equal(amount) {
		t.Fatalf("round trip changed %s to %s", amount, back)
	}
}

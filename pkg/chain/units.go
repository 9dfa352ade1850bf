package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FromBaseUnits converts an on-chain integer amount into whole units using
// the token's decimal count.
func FromBaseUnits(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// ToBaseUnits converts a whole-unit amount into the on-chain integer
// representation, truncating any precision beyond the token's decimals.
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

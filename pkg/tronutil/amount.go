package tronutil

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// TokenPrecision is the number of decimals of the TRC-20 stablecoin the
// daemon settles in (USDT).
const TokenPrecision = 6

// FromMinorUnits converts an integer amount of token minor units to its
// decimal representation.
func FromMinorUnits(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, -TokenPrecision)
}

// ToMinorUnits converts a decimal token amount to integer minor units,
// truncating any digits beyond the token precision.
func ToMinorUnits(v decimal.Decimal) *big.Int {
	return v.Truncate(TokenPrecision).Shift(TokenPrecision).BigInt()
}

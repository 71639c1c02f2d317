package swap

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultGasLimitRatio is the safety margin applied to every gas estimate
var DefaultGasLimitRatio = decimal.RequireFromString("1.2")

// ApplyGasMargin returns raw × ratio truncated toward zero
func ApplyGasMargin(raw *big.Int, ratio decimal.Decimal) *big.Int {
	return decimal.NewFromBigInt(raw, 0).Mul(ratio).BigInt()
}

// ToBaseUnits converts a token amount into its smallest denomination,
// truncating anything below one base unit.
func ToBaseUnits(amount decimal.Decimal, decimals int) *big.Int {
	return amount.Shift(int32(decimals)).BigInt()
}

// FromBaseUnits converts a base unit amount into token units
func FromBaseUnits(amount *big.Int, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

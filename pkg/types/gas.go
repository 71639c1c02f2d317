package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// GasLevel selects one of the published gas prices
type GasLevel string

const (
	GasFast     GasLevel = "fast"
	GasStandard GasLevel = "standard"
	GasLow      GasLevel = "low"
	GasDefault  GasLevel = "default"
)

// GasPrice is the network gas price table in gwei
type GasPrice struct {
	Fast     decimal.Decimal `json:"fast"`
	Standard decimal.Decimal `json:"standard"`
	Low      decimal.Decimal `json:"low"`
	Default  decimal.Decimal `json:"default"`
}

// Gwei returns the price for the given level
func (g GasPrice) Gwei(level GasLevel) (decimal.Decimal, error) {
	switch GasLevel(strings.ToLower(string(level))) {
	case GasFast:
		return g.Fast, nil
	case GasStandard:
		return g.Standard, nil
	case GasLow:
		return g.Low, nil
	case GasDefault, "":
		return g.Default, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown gas level: %s", level)
	}
}

// Wei returns the price for the given level in wei
func (g GasPrice) Wei(level GasLevel) (*big.Int, error) {
	gwei, err := g.Gwei(level)
	if err != nil {
		return nil, err
	}
	return gwei.Shift(9).BigInt(), nil
}

package types

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	// NativeAddress is the placeholder address Kyber uses for the chain's base currency
	NativeAddress  = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
	NativeSymbol   = "ETH"
	NativeName     = "Ethereum"
	NativeDecimals = 18
	NetworkName    = "Ethereum"
)

// SwapRequest represents a user's swap command
type SwapRequest struct {
	Amount      string
	SourceToken string
	DestToken   string
}

// Wallet is the account that signs and pays for transactions
type Wallet struct {
	Address common.Address
}

// TokenInfo holds token metadata
type TokenInfo struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	NetworkName string `json:"network_name"`
}

// IsNative reports whether the token is the chain's base currency
func (t TokenInfo) IsNative() bool {
	return strings.EqualFold(t.Address, NativeAddress)
}

// NativeTokenInfo returns the synthetic token entry for the base currency
func NativeTokenInfo() TokenInfo {
	return TokenInfo{
		Address:     NativeAddress,
		Name:        NativeName,
		Symbol:      NativeSymbol,
		Decimals:    NativeDecimals,
		NetworkName: NetworkName,
	}
}

// Token is a token held by the wallet. Balance is in base units.
type Token struct {
	Info    TokenInfo       `json:"info"`
	Balance decimal.Decimal `json:"balance"`
}

// DiffInfo is the 24h price movement published with a catalog entry
type DiffInfo struct {
	RateETHNow   decimal.Decimal `json:"rate_eth_now"`
	ChangeETH24h decimal.Decimal `json:"change_eth_24h"`
	RateUSDNow   decimal.Decimal `json:"rate_usd_now"`
	ChangeUSD24h decimal.Decimal `json:"change_usd_24h"`
}

// Currency is an entry of the aggregator's tradable currency catalog
type Currency struct {
	Address  string    `json:"address"`
	Symbol   string    `json:"symbol"`
	Name     string    `json:"name"`
	Decimals int       `json:"decimals"`
	Diff     *DiffInfo `json:"diff,omitempty"`
}

// TokenInfo returns the currency as token metadata
func (c Currency) TokenInfo() TokenInfo {
	return TokenInfo{
		Address:     c.Address,
		Name:        c.Name,
		Symbol:      c.Symbol,
		Decimals:    c.Decimals,
		NetworkName: NetworkName,
	}
}

// SourceToken is a held token that the aggregator can trade. Balance is in base units.
type SourceToken struct {
	Info    TokenInfo       `json:"info"`
	Balance decimal.Decimal `json:"balance"`
	Diff    *DiffInfo       `json:"diff,omitempty"`
}

// ExpectedRate is the quoted rate for a pair, both values scaled by 1e18
type ExpectedRate struct {
	Rate         *big.Int `json:"expected_rate"`
	SlippageRate *big.Int `json:"slippage_rate"`
}

// AdvancedSettings holds the user's transaction tuning
type AdvancedSettings struct {
	GasPrice          *big.Int        // in wei
	MinAcceptableRate decimal.Decimal // worst rate tolerated before the trade reverts
}

// SwapIntent is the user's current swap input
type SwapIntent struct {
	Token    SourceToken
	Currency Currency
	Amount   decimal.Decimal // in source token units
	Rate     decimal.Decimal
	Advanced AdvancedSettings
}

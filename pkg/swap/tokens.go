package swap

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"kyber-swap/pkg/types"
)

// FilterSourceTokens builds the list of held tokens the aggregator can trade.
//
// The first candidate is a synthetic entry for the base currency whose balance
// is balances[types.NativeSymbol] scaled to wei; the held tokens follow in
// order. A candidate is kept only when its address equals a catalog address
// exactly, and it takes that catalog entry's diff info. A held token whose
// address is present in balances takes that balance (whole units) instead of
// its own.
func FilterSourceTokens(tokens []types.Token, balances map[string]string, currencies []types.Currency) ([]types.SourceToken, error) {
	nativeBalance, err := parseBalance(balances[types.NativeSymbol], types.NativeDecimals)
	if err != nil {
		return nil, fmt.Errorf("invalid %s balance: %w", types.NativeSymbol, err)
	}

	candidates := make([]types.SourceToken, 0, len(tokens)+1)
	candidates = append(candidates, types.SourceToken{
		Info:    types.NativeTokenInfo(),
		Balance: nativeBalance,
	})
	for _, token := range tokens {
		balance := token.Balance
		if raw, ok := balances[token.Info.Address]; ok {
			balance, err = parseBalance(raw, token.Info.Decimals)
			if err != nil {
				return nil, fmt.Errorf("invalid balance for %s: %w", token.Info.Symbol, err)
			}
		}
		candidates = append(candidates, types.SourceToken{
			Info:    token.Info,
			Balance: balance,
		})
	}

	list := make([]types.SourceToken, 0, len(candidates))
	for _, candidate := range candidates {
		for _, currency := range currencies {
			if currency.Address == candidate.Info.Address {
				candidate.Diff = currency.Diff
				list = append(list, candidate)
				break
			}
		}
	}

	return list, nil
}

// parseBalance parses a whole-unit balance into base units. Empty means zero.
func parseBalance(raw string, decimals int) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Shift(int32(decimals)), nil
}

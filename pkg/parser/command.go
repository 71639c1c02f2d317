package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"kyber-swap/pkg/types"
)

var swapPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9]+)\s+TO\s+([A-Z0-9]+)$`)

// ParseSwapCommand parses a swap command
// Examples:
//   - "swap 1 ETH to KNC"
//   - "1.5 KNC to DAI"
//   - "100 DAI to 0x6B175474E89094C44Da98b954EedeAC495271d0F"
func ParseSwapCommand(command string) (*types.SwapRequest, error) {
	// Normalize the command
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")

	// Remove the word "SWAP" if present at the beginning
	command = strings.TrimPrefix(command, "SWAP ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token>' (e.g., 'swap 1 ETH to KNC')")
	}

	req := &types.SwapRequest{
		Amount:      matches[1],
		SourceToken: NormalizeTokenSymbol(matches[2]),
		DestToken:   NormalizeTokenSymbol(matches[3]),
	}
	if err := ValidateSwapRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

// ValidateSwapRequest validates that a swap request has all required fields
func ValidateSwapRequest(req *types.SwapRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", req.Amount, err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be greater than zero")
	}
	if req.SourceToken == "" {
		return fmt.Errorf("source token is required")
	}
	if req.DestToken == "" {
		return fmt.Errorf("destination token is required")
	}
	if strings.EqualFold(req.SourceToken, req.DestToken) {
		return fmt.Errorf("source and destination token must differ")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if common.IsHexAddress(symbol) {
		return common.HexToAddress(symbol).Hex()
	}

	// Convert to uppercase for consistency
	symbol = strings.ToUpper(symbol)

	// Handle common aliases
	aliases := map[string]string{
		"ETHER": types.NativeSymbol,
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}

// FindCurrency looks a token up in the catalog by symbol or address.
// Addresses compare case-insensitively.
func FindCurrency(currencies []types.Currency, token string) (types.Currency, error) {
	token = NormalizeTokenSymbol(token)
	isAddress := common.IsHexAddress(token)

	for _, currency := range currencies {
		if isAddress && strings.EqualFold(currency.Address, token) {
			return currency, nil
		}
		if !isAddress && strings.EqualFold(currency.Symbol, token) {
			return currency, nil
		}
	}

	return types.Currency{}, fmt.Errorf("token '%s' is not tradable (try: kyber-swap currencies)", token)
}

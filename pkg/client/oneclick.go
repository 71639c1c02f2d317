package client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"

	"kyber-swap/pkg/types"
)

// OneClickChain is the 1Click blockchain id of Ethereum mainnet
const OneClickChain = "eth"

// OneClickCatalog lists the Ethereum tokens known to the 1Click API as a
// currency catalog
type OneClickCatalog struct {
	client   *oneclick.APIClient
	jwtToken string
	log      *slog.Logger
}

// NewOneClickCatalog creates a catalog source. Empty baseURL keeps the SDK
// default server.
func NewOneClickCatalog(baseURL, jwtToken string, log *slog.Logger) *OneClickCatalog {
	config := oneclick.NewConfiguration()
	if baseURL != "" {
		config.Servers = oneclick.ServerConfigurations{{URL: baseURL}}
	}
	if log == nil {
		log = slog.Default()
	}

	return &OneClickCatalog{
		client:   oneclick.NewAPIClient(config),
		jwtToken: jwtToken,
		log:      log.With("component", "oneclick"),
	}
}

// Currencies returns the Ethereum tokens supported by 1Click. The base
// currency is reported under the native placeholder address.
func (c *OneClickCatalog) Currencies(ctx context.Context) ([]types.Currency, error) {
	if c.jwtToken != "" {
		ctx = context.WithValue(ctx, oneclick.ContextAccessToken, c.jwtToken)
	}

	resp, httpResp, err := c.client.OneClickAPI.GetTokens(ctx).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	currencies := make([]types.Currency, 0)
	seen := make(map[string]bool)
	for _, token := range resp {
		if !strings.EqualFold(token.GetBlockchain(), OneClickChain) {
			continue
		}

		currency := types.Currency{
			Address:  token.GetContractAddress(),
			Symbol:   token.GetSymbol(),
			Name:     token.GetSymbol(),
			Decimals: int(token.GetDecimals()),
		}
		if currency.Address == "" {
			if !strings.EqualFold(currency.Symbol, types.NativeSymbol) {
				c.log.Debug("Skipping token without contract", "asset_id", token.GetAssetId())
				continue
			}
			currency.Address = types.NativeAddress
			currency.Name = types.NativeName
		}

		key := strings.ToLower(currency.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		currencies = append(currencies, currency)
	}

	c.log.Debug("Loaded 1Click catalog", "count", len(currencies))
	return currencies, nil
}

package kyber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kyber-swap/pkg/types"
)

const (
	// DefaultBaseURL is the public Kyber tracker API
	DefaultBaseURL = "https://api.kyber.network"
	// DefaultTimeout bounds every API request
	DefaultTimeout = 15 * time.Second
)

// ErrAPI is returned when the API answers with its error flag set
var ErrAPI = errors.New("kyber api error")

// API is a client for the Kyber REST API
type API struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewAPI creates an API client. Empty baseURL selects DefaultBaseURL and a
// non-positive timeout selects DefaultTimeout.
func NewAPI(baseURL string, timeout time.Duration, log *slog.Logger) *API {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("component", "kyber_api"),
	}
}

type envelope[T any] struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
	Data   T      `json:"data"`
}

type currencyResponse struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

type gasPriceResponse struct {
	Fast     decimal.Decimal `json:"fast"`
	Standard decimal.Decimal `json:"standard"`
	Low      decimal.Decimal `json:"low"`
	Default  decimal.Decimal `json:"default"`
}

type change24hResponse struct {
	TokenAddress string          `json:"token_address"`
	TokenSymbol  string          `json:"token_symbol"`
	RateETHNow   decimal.Decimal `json:"rate_eth_now"`
	ChangeETH24h decimal.Decimal `json:"change_eth_24h"`
	RateUSDNow   decimal.Decimal `json:"rate_usd_now"`
	ChangeUSD24h decimal.Decimal `json:"change_usd_24h"`
}

// Currencies returns the tradable currencies with their 24h movement
// attached. A failing /change24h request leaves the diff info empty.
func (a *API) Currencies(ctx context.Context) ([]types.Currency, error) {
	resp, err := getEnveloped[[]currencyResponse](ctx, a, "/currencies")
	if err != nil {
		return nil, fmt.Errorf("failed to get currencies: %w", err)
	}

	changes, err := a.Change24h(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.log.Warn("24h change unavailable", "error", err)
	}

	currencies := make([]types.Currency, 0, len(resp))
	for _, c := range resp {
		currency := types.Currency{
			Address:  c.Address,
			Symbol:   c.Symbol,
			Name:     c.Name,
			Decimals: c.Decimals,
		}
		if diff, ok := changes[strings.ToLower(c.Address)]; ok {
			currency.Diff = diff
		}
		currencies = append(currencies, currency)
	}

	return currencies, nil
}

// Change24h returns the 24h movement of every listed token keyed by
// lowercase token address
func (a *API) Change24h(ctx context.Context) (map[string]*types.DiffInfo, error) {
	resp, err := doRequest[map[string]change24hResponse](ctx, a, "/change24h")
	if err != nil {
		return nil, fmt.Errorf("failed to get 24h change: %w", err)
	}

	diffs := make(map[string]*types.DiffInfo, len(*resp))
	for _, change := range *resp {
		if change.TokenAddress == "" {
			continue
		}
		diffs[strings.ToLower(change.TokenAddress)] = &types.DiffInfo{
			RateETHNow:   change.RateETHNow,
			ChangeETH24h: change.ChangeETH24h,
			RateUSDNow:   change.RateUSDNow,
			ChangeUSD24h: change.ChangeUSD24h,
		}
	}
	return diffs, nil
}

// GasPrice returns the recommended gas prices in gwei
func (a *API) GasPrice(ctx context.Context) (types.GasPrice, error) {
	resp, err := getEnveloped[gasPriceResponse](ctx, a, "/gasPrice")
	if err != nil {
		return types.GasPrice{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	return types.GasPrice{
		Fast:     resp.Fast,
		Standard: resp.Standard,
		Low:      resp.Low,
		Default:  resp.Default,
	}, nil
}

func getEnveloped[T any](ctx context.Context, a *API, path string) (T, error) {
	var zero T
	resp, err := doRequest[envelope[T]](ctx, a, path)
	if err != nil {
		return zero, err
	}
	if resp.Error {
		if resp.Reason != "" {
			return zero, fmt.Errorf("%w: %s", ErrAPI, resp.Reason)
		}
		return zero, ErrAPI
	}
	return resp.Data, nil
}

// doRequest issues a GET request and decodes the JSON body into T
func doRequest[T any](ctx context.Context, a *API, path string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	a.log.Debug("API request", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

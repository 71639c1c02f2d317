package kyber

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAPI(t *testing.T, routes map[string]string) *API {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewAPI(srv.URL, time.Second, discardLogger())
}

func TestAPI_CurrenciesWithChange(t *testing.T) {
	api := newTestAPI(t, map[string]string{
		"/currencies": `{"error":false,"data":[
			{"symbol":"ETH","name":"Ethereum","address":"0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee","decimals":18},
			{"symbol":"KNC","name":"Kyber Network","address":"0xdd974D5C2e2928deA5F71b9825b8b646686BD200","decimals":18}
		]}`,
		"/change24h": `{
			"ETH_KNC":{"token_address":"0xdd974d5c2e2928dea5f71b9825b8b646686bd200","token_symbol":"KNC","rate_eth_now":0.0021,"change_eth_24h":-1.5,"rate_usd_now":"0.52","change_usd_24h":2.25}
		}`,
	})

	currencies, err := api.Currencies(context.Background())
	require.NoError(t, err)
	require.Len(t, currencies, 2)

	assert.Equal(t, "ETH", currencies[0].Symbol)
	assert.Nil(t, currencies[0].Diff)

	knc := currencies[1]
	assert.Equal(t, "0xdd974D5C2e2928deA5F71b9825b8b646686BD200", knc.Address)
	assert.Equal(t, 18, knc.Decimals)
	require.NotNil(t, knc.Diff)
	assert.True(t, knc.Diff.RateETHNow.Equal(decimal.RequireFromString("0.0021")))
	assert.True(t, knc.Diff.ChangeETH24h.Equal(decimal.RequireFromString("-1.5")))
	assert.True(t, knc.Diff.RateUSDNow.Equal(decimal.RequireFromString("0.52")))
	assert.True(t, knc.Diff.ChangeUSD24h.Equal(decimal.RequireFromString("2.25")))
}

func TestAPI_CurrenciesWithoutChange(t *testing.T) {
	api := newTestAPI(t, map[string]string{
		"/currencies": `{"error":false,"data":[{"symbol":"KNC","address":"0x1","decimals":18}]}`,
	})

	currencies, err := api.Currencies(context.Background())
	require.NoError(t, err)
	require.Len(t, currencies, 1)
	assert.Nil(t, currencies[0].Diff)
}

func TestAPI_ErrorEnvelope(t *testing.T) {
	api := newTestAPI(t, map[string]string{
		"/currencies": `{"error":true,"reason":"maintenance","data":null}`,
		"/gasPrice":   `{"error":true,"data":null}`,
	})

	_, err := api.Currencies(context.Background())
	require.ErrorIs(t, err, ErrAPI)
	assert.ErrorContains(t, err, "maintenance")

	_, err = api.GasPrice(context.Background())
	assert.ErrorIs(t, err, ErrAPI)
}

func TestAPI_GasPrice(t *testing.T) {
	api := newTestAPI(t, map[string]string{
		"/gasPrice": `{"error":false,"data":{"low":"5","standard":"10.5","fast":"20","default":"10"}}`,
	})

	price, err := api.GasPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Standard.Equal(decimal.RequireFromString("10.5")))
	assert.True(t, price.Fast.Equal(decimal.NewFromInt(20)))
	assert.True(t, price.Low.Equal(decimal.NewFromInt(5)))
	assert.True(t, price.Default.Equal(decimal.NewFromInt(10)))
}

func TestAPI_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()
	api := NewAPI(srv.URL, time.Second, discardLogger())

	_, err := api.GasPrice(context.Background())
	assert.ErrorContains(t, err, "status code 502")
}

func TestAPI_Cancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)
	api := NewAPI(srv.URL, 5*time.Second, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := api.GasPrice(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

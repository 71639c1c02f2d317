package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyber-swap/pkg/types"
)

const tokensFixture = `[
	{"assetId":"nep141:eth.omft.near","decimals":18,"blockchain":"eth","symbol":"ETH","price":3000.5,"priceUpdatedAt":"2025-01-01T00:00:00Z"},
	{"assetId":"nep141:eth-0xa0b8.omft.near","decimals":6,"blockchain":"eth","symbol":"USDC","price":1,"priceUpdatedAt":"2025-01-01T00:00:00Z","contractAddress":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
	{"assetId":"nep141:eth-0xa0b8.dup.near","decimals":6,"blockchain":"eth","symbol":"USDC","price":1,"priceUpdatedAt":"2025-01-01T00:00:00Z","contractAddress":"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"},
	{"assetId":"nep141:sol.omft.near","decimals":9,"blockchain":"sol","symbol":"SOL","price":150,"priceUpdatedAt":"2025-01-01T00:00:00Z"},
	{"assetId":"nep141:eth-weird.omft.near","decimals":18,"blockchain":"eth","symbol":"WEIRD","price":1,"priceUpdatedAt":"2025-01-01T00:00:00Z"}
]`

func TestOneClickCatalog_Currencies(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, tokensFixture)
	}))
	defer srv.Close()

	catalog := NewOneClickCatalog(srv.URL, "secret", slog.New(slog.NewTextHandler(io.Discard, nil)))

	currencies, err := catalog.Currencies(context.Background())
	require.NoError(t, err)
	require.Len(t, currencies, 2)

	assert.Equal(t, types.NativeAddress, currencies[0].Address)
	assert.Equal(t, types.NativeSymbol, currencies[0].Symbol)
	assert.Equal(t, 18, currencies[0].Decimals)

	assert.Equal(t, "USDC", currencies[1].Symbol)
	assert.Equal(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", currencies[1].Address)
	assert.Equal(t, 6, currencies[1].Decimals)

	assert.Equal(t, "Bearer secret", auth)
}

func TestOneClickCatalog_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	catalog := NewOneClickCatalog(srv.URL, "", nil)

	_, err := catalog.Currencies(context.Background())
	assert.Error(t, err)
}

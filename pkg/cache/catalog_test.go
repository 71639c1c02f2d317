package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyber-swap/pkg/types"
)

type stubSource struct {
	calls      int
	currencies []types.Currency
	err        error
}

func (s *stubSource) Currencies(context.Context) ([]types.Currency, error) {
	s.calls++
	return s.currencies, s.err
}

// unreachableRedis fails every command quickly
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCatalog_FallsThroughWhenRedisDown(t *testing.T) {
	source := &stubSource{currencies: []types.Currency{{Address: types.NativeAddress, Symbol: types.NativeSymbol}}}
	catalog := NewCatalog(unreachableRedis(t), source, "kyber", time.Minute, discard())

	currencies, err := catalog.Currencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, source.currencies, currencies)
	assert.Equal(t, 1, source.calls)
}

func TestCatalog_SourceError(t *testing.T) {
	boom := errors.New("boom")
	source := &stubSource{err: boom}
	catalog := NewCatalog(unreachableRedis(t), source, "kyber", time.Minute, discard())

	_, err := catalog.Currencies(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestCatalog_CancelledContext(t *testing.T) {
	source := &stubSource{}
	catalog := NewCatalog(unreachableRedis(t), source, "kyber", time.Minute, discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := catalog.Currencies(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, source.calls)
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestCatalogKey(t *testing.T) {
	assert.Equal(t, "kyber_swap:currencies:oneclick", catalogKey("oneclick"))
	assert.Equal(t, DefaultTTL, NewCatalog(nil, nil, "x", 0, nil).ttl)
}

func TestCatalog_InvalidateRedisDown(t *testing.T) {
	catalog := NewCatalog(unreachableRedis(t), &stubSource{}, "kyber", time.Minute, discard())

	err := catalog.Invalidate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete cached catalog")
}

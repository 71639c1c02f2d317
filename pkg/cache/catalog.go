package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"kyber-swap/pkg/metrics"
	"kyber-swap/pkg/types"
)

// DefaultTTL is how long a cached catalog stays valid
const DefaultTTL = 5 * time.Minute

// Source supplies the currency catalog on a cache miss
type Source interface {
	Currencies(ctx context.Context) ([]types.Currency, error)
}

// Catalog caches the currency catalog of a Source in Redis. Redis failures
// are logged and the Source is used directly.
type Catalog struct {
	rdb    redis.Cmdable
	source Source
	key    string
	ttl    time.Duration
	log    *slog.Logger
}

// NewClient connects to Redis at url and checks the connection
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}

// NewCatalog wraps source. name keeps catalogs of different sources apart.
func NewCatalog(rdb redis.Cmdable, source Source, name string, ttl time.Duration, log *slog.Logger) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Catalog{
		rdb:    rdb,
		source: source,
		key:    catalogKey(name),
		ttl:    ttl,
		log:    log.With("component", "catalog_cache"),
	}
}

func catalogKey(name string) string {
	return fmt.Sprintf("kyber_swap:currencies:%s", name)
}

// Currencies returns the cached catalog, refreshing it from the source when
// missing or expired
func (c *Catalog) Currencies(ctx context.Context) ([]types.Currency, error) {
	data, err := c.rdb.Get(ctx, c.key).Bytes()
	switch {
	case err == nil:
		var currencies []types.Currency
		if err := json.Unmarshal(data, &currencies); err == nil {
			metrics.CatalogCacheTotal.WithLabelValues("hit").Inc()
			return currencies, nil
		}
		c.log.Warn("Discarding unreadable cached catalog", "key", c.key)
		metrics.CatalogCacheTotal.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.CatalogCacheTotal.WithLabelValues("miss").Inc()
	default:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn("Catalog cache unavailable", "error", err)
		metrics.CatalogCacheTotal.WithLabelValues("error").Inc()
	}

	currencies, err := c.source.Currencies(ctx)
	if err != nil {
		return nil, err
	}

	c.store(ctx, currencies)
	return currencies, nil
}

// Invalidate drops the cached catalog
func (c *Catalog) Invalidate(ctx context.Context) error {
	if err := c.rdb.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to delete cached catalog: %w", err)
	}
	return nil
}

func (c *Catalog) store(ctx context.Context, currencies []types.Currency) {
	data, err := json.Marshal(currencies)
	if err != nil {
		c.log.Warn("Failed to marshal catalog", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		c.log.Warn("Failed to cache catalog", "error", err)
	}
}

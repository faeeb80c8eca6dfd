package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores raw product documents by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type RedisCache struct {
	rdb redis.Cmdable
}

func NewRedisCache(rdb redis.Cmdable) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

type ProductSource interface {
	ProductByStyleCode(ctx context.Context, styleCode string) (*Product, error)
	UpdateStock(ctx context.Context, update StockUpdate) error
}

// CachedClient serves product lookups from the cache before falling back to
// the catalog. Misses are not cached, so a product added to the catalog is
// picked up on the next lookup. Cache failures degrade to a direct lookup.
type CachedClient struct {
	next   ProductSource
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedClient(next ProductSource, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedClient {
	return &CachedClient{next: next, cache: cache, ttl: ttl, logger: logger}
}

func productKey(styleCode string) string {
	return fmt.Sprintf("catalog:product:%s", styleCode)
}

func (c *CachedClient) ProductByStyleCode(ctx context.Context, styleCode string) (*Product, error) {
	key := productKey(styleCode)

	data, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.WarnContext(ctx, "catalog cache read failed", "style_code", styleCode, "error", err)
	case ok:
		var p Product
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt catalog cache entry", "style_code", styleCode)
	}

	p, err := c.next.ProductByStyleCode(ctx, styleCode)
	if err != nil || p == nil {
		return p, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "catalog cache write failed", "style_code", styleCode, "error", err)
		}
	}
	return p, nil
}

func (c *CachedClient) UpdateStock(ctx context.Context, update StockUpdate) error {
	return c.next.UpdateStock(ctx, update)
}

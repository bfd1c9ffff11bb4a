package quote

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nordbroker/octasure/internal/insurer/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores recent quotes per provider and vehicle. It is never
// load-bearing: any cache failure is treated as a miss and the live
// provider call proceeds.
type Cache interface {
	Get(ctx context.Context, provider string, vehicle domain.Vehicle) (*domain.Quote, bool)
	Set(ctx context.Context, provider string, vehicle domain.Vehicle, quote *domain.Quote)
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisCache returns a read-through quote cache with a short TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration, log *zap.Logger) Cache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &redisCache{client: client, ttl: ttl, log: log.Named("quote.cache")}
}

func (c *redisCache) Get(ctx context.Context, provider string, vehicle domain.Vehicle) (*domain.Quote, bool) {
	raw, err := c.client.Get(ctx, cacheKey(provider, vehicle)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var quote domain.Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, false
	}
	return &quote, true
}

func (c *redisCache) Set(ctx context.Context, provider string, vehicle domain.Vehicle, quote *domain.Quote) {
	raw, err := json.Marshal(quote)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(provider, vehicle), raw, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", zap.Error(err))
	}
}

func cacheKey(provider string, vehicle domain.Vehicle) string {
	return strings.ToLower(strings.Join([]string{
		"quote", provider, vehicle.RegNumber, vehicle.CertNumber,
	}, "|"))
}

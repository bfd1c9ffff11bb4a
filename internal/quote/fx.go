package quote

import (
	"time"

	"github.com/nordbroker/octasure/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("quote",
	fx.Provide(
		fx.Annotate(provideTimeout, fx.ResultTags(`name:"quote_timeout"`)),
		provideCache,
		NewService,
	),
)

func provideTimeout(cfg config.Config) time.Duration {
	return cfg.QuoteTimeout
}

// provideCache wires the redis quote cache when an address is configured;
// the service runs uncached otherwise.
func provideCache(cfg config.Config, log *zap.Logger) Cache {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return NewRedisCache(client, cfg.QuoteCacheTTL, log)
}

package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/wadesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRedisClient returns nil when REDIS_ADDR is unset; every consumer treats a
// nil client as "single replica, no shared state".
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Named("redis").Info("redis not configured; locks and rate limits disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

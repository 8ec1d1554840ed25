package ratelimit

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/wadesk/internal/config"
)

const keyAggregateTenant = "wadesk:usage:aggregate:tenant:%s"

// AggregationLimiter throttles on-demand daily aggregation per tenant. A nil
// limiter allows everything.
type AggregationLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewAggregationLimiter(cfg config.Config, client *redis.Client) (*AggregationLimiter, error) {
	if client == nil {
		return nil, nil
	}
	if cfg.AggregateRate <= 0 || cfg.AggregateBurst <= 0 {
		return nil, fmt.Errorf("aggregate rate limit must be positive (rate=%v burst=%d)", cfg.AggregateRate, cfg.AggregateBurst)
	}
	return &AggregationLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.AggregateRate,
		burst:  cfg.AggregateBurst,
	}, nil
}

func (l *AggregationLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *AggregationLimiter) AllowTenant(ctx context.Context, tenantID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyAggregateTenant, tenantID), l.rate, l.burst)
}

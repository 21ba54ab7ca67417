package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig is the sliding window applied per key.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// RateLimitResult is the outcome of one Allow call.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is a sliding-window limiter over a sorted set per key.
type RateLimiter struct {
	client *Client
	config RateLimitConfig
	now    func() time.Time
	logger *zap.Logger
}

func NewRateLimiter(client *Client, config RateLimitConfig, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
		now:    time.Now,
		logger: logger,
	}
}

// Allow records one hit for key if the window has room.
func (r *RateLimiter) Allow(ctx context.Context, key string) (*RateLimitResult, error) {
	now := r.now()
	windowStart := now.Add(-r.config.Window)
	redisKey := r.client.key("ratelimit", key)

	pipe := r.client.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("trim rate window: %w", err)
	}

	count := int(countCmd.Val())
	resetAt := now.Add(r.config.Window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		resetAt = time.Unix(0, int64(oldest[0].Score)).Add(r.config.Window)
	}

	if count >= r.config.Limit {
		r.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int("count", count),
			zap.Int("limit", r.config.Limit),
		)
		return &RateLimitResult{Allowed: false, Limit: r.config.Limit, Remaining: 0, ResetAt: resetAt}, nil
	}

	_, err := r.client.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
		p.Expire(ctx, redisKey, r.config.Window+time.Second)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record rate hit: %w", err)
	}

	return &RateLimitResult{
		Allowed:   true,
		Limit:     r.config.Limit,
		Remaining: r.config.Limit - count - 1,
		ResetAt:   resetAt,
	}, nil
}

// Package rate implements a fixed-window request limiter over Redis.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/config"
)

// Limiter throttles requests per key. Redis failures fail open so an
// unavailable cache never blocks sign-ins.
type Limiter struct {
	client *redis.Client
	logger *zap.Logger
	cfg    config.RateLimitConfig
}

func NewLimiter(client *redis.Client, logger *zap.Logger, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{client: client, logger: logger, cfg: cfg}
}

// Allow reports whether the request under key is within the window limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if !l.cfg.Enabled || l.client == nil {
		return true, nil
	}

	redisKey := fmt.Sprintf("mfa:rate:%s", key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.logger.Error("rate limiter unavailable", zap.String("key", key), zap.Error(err))
		return true, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.cfg.Period).Err(); err != nil {
			l.logger.Error("failed to set rate window expiry", zap.String("key", key), zap.Error(err))
		}
	}

	if count > int64(l.cfg.Limit) {
		l.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", l.cfg.Limit))
		return false, nil
	}
	return true, nil
}

// AllowIP throttles by client IP address.
func (l *Limiter) AllowIP(ctx context.Context, ip string) (bool, error) {
	return l.Allow(ctx, fmt.Sprintf("ip:%s", ip))
}

// Reset clears the window for a key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if l.client == nil {
		return nil
	}
	err := l.client.Del(ctx, fmt.Sprintf("mfa:rate:%s", key)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to reset rate window: %w", err)
	}
	return nil
}

// Remaining returns how many requests are left in the current window.
func (l *Limiter) Remaining(ctx context.Context, key string) (int, time.Duration, error) {
	if l.client == nil {
		return l.cfg.Limit, 0, nil
	}
	redisKey := fmt.Sprintf("mfa:rate:%s", key)

	count, err := l.client.Get(ctx, redisKey).Int()
	if errors.Is(err, redis.Nil) {
		return l.cfg.Limit, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read rate window: %w", err)
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read rate window TTL: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}

	remaining := l.cfg.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, ttl, nil
}

// Package cache mirrors hot verification state in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/service"
)

// RedisLockoutCache mirrors the policy lockout flag so locked users are
// rejected without a database round trip. The policy row stays the source
// of truth; cache misses and Redis errors fall through to it.
type RedisLockoutCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisLockoutCache(client *redis.Client, logger *zap.Logger) *RedisLockoutCache {
	return &RedisLockoutCache{client: client, logger: logger}
}

func lockKey(userID uuid.UUID) string {
	return fmt.Sprintf("mfa:lockout:%s", userID)
}

func (c *RedisLockoutCache) IsLocked(ctx context.Context, userID uuid.UUID) (bool, error) {
	err := c.client.Get(ctx, lockKey(userID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.logger.Warn("lockout cache read failed", zap.Error(err))
		return false, err
	}
	return true, nil
}

func (c *RedisLockoutCache) SetLocked(ctx context.Context, userID uuid.UUID, untilSeconds int64) error {
	if untilSeconds <= 0 {
		return nil
	}
	ttl := time.Duration(untilSeconds) * time.Second
	if err := c.client.Set(ctx, lockKey(userID), "1", ttl).Err(); err != nil {
		c.logger.Warn("lockout cache write failed", zap.Error(err))
		return err
	}
	return nil
}

func (c *RedisLockoutCache) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Del(ctx, lockKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("lockout cache clear failed", zap.Error(err))
		return err
	}
	return nil
}

var _ service.LockoutCache = (*RedisLockoutCache)(nil)

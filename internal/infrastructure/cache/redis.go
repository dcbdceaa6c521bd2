package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

// Config holds redis connection configuration
type Config struct {
	Addr     string
	Password string
	DB       int
}

// RedisPermissionCache implements port.PermissionCache over redis.
// Every failure is swallowed after logging: the cache is advisory and
// callers always fall back to a direct database computation.
type RedisPermissionCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPermissionCache creates a new redis-backed permission cache
func NewRedisPermissionCache(cfg Config, logger *zap.Logger) *RedisPermissionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisPermissionCache{
		client: client,
		logger: logger,
	}
}

func permissionKey(userID int64) string {
	return fmt.Sprintf("user:permissions:%d", userID)
}

// Get returns the cached profile, (nil, false) on miss or any failure
func (c *RedisPermissionCache) Get(ctx context.Context, userID int64) (*entity.UserPermissions, bool) {
	raw, err := c.client.Get(ctx, permissionKey(userID)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Permission cache read failed, falling back to database",
			zap.Int64("user_id", userID), zap.Error(err))
		return nil, false
	}

	var perms entity.UserPermissions
	if err := json.Unmarshal([]byte(raw), &perms); err != nil {
		c.logger.Warn("Dropping undecodable permission cache entry",
			zap.Int64("user_id", userID), zap.Error(err))
		_ = c.client.Del(ctx, permissionKey(userID)).Err()
		return nil, false
	}
	return &perms, true
}

// Set stores the profile with the given TTL, best effort
func (c *RedisPermissionCache) Set(ctx context.Context, userID int64, perms *entity.UserPermissions, ttl time.Duration) {
	raw, err := json.Marshal(perms)
	if err != nil {
		c.logger.Warn("Failed to encode permissions for cache",
			zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, permissionKey(userID), raw, ttl).Err(); err != nil {
		c.logger.Warn("Permission cache write failed",
			zap.Int64("user_id", userID), zap.Error(err))
	}
}

// Invalidate drops the cached profile, best effort
func (c *RedisPermissionCache) Invalidate(ctx context.Context, userID int64) {
	if err := c.client.Del(ctx, permissionKey(userID)).Err(); err != nil {
		c.logger.Warn("Permission cache invalidation failed",
			zap.Int64("user_id", userID), zap.Error(err))
	}
}

// Close releases the redis connection
func (c *RedisPermissionCache) Close() error {
	return c.client.Close()
}

// Verify interface compliance
var _ port.PermissionCache = (*RedisPermissionCache)(nil)

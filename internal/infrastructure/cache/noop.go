package cache

import (
	"context"
	"time"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

// NoopPermissionCache is the cache-disabled implementation: every read
// misses and writes vanish. Used in tests and when redis is not
// configured; the resolver must behave identically either way.
type NoopPermissionCache struct{}

// NewNoopPermissionCache creates a no-op permission cache
func NewNoopPermissionCache() *NoopPermissionCache {
	return &NoopPermissionCache{}
}

// Get always misses
func (c *NoopPermissionCache) Get(ctx context.Context, userID int64) (*entity.UserPermissions, bool) {
	return nil, false
}

// Set discards the value
func (c *NoopPermissionCache) Set(ctx context.Context, userID int64, perms *entity.UserPermissions, ttl time.Duration) {
}

// Invalidate is a no-op
func (c *NoopPermissionCache) Invalidate(ctx context.Context, userID int64) {}

// Verify interface compliance
var _ port.PermissionCache = (*NoopPermissionCache)(nil)

package port

import (
	"context"
	"time"

	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

// PermissionCache is the advisory cache in front of the permission
// resolver. Implementations swallow their own failures: a miss and a
// broken cache are indistinguishable to callers, which always fall back
// to a fresh computation. The system must stay correct with a no-op
// implementation installed.
type PermissionCache interface {
	Get(ctx context.Context, userID int64) (*entity.UserPermissions, bool)
	Set(ctx context.Context, userID int64, perms *entity.UserPermissions, ttl time.Duration)
	Invalidate(ctx context.Context, userID int64)
}

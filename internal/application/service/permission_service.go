package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// PermissionService resolves department-scoped visibility for users.
type PermissionService interface {
	// Resolve computes the user's permission profile. tokenDepartmentID,
	// when supplied by the caller from auth claims, overrides the user
	// row's own department. Fails with entity.ErrNotFound for unknown
	// users; empty visibility is a valid result, not an error.
	Resolve(ctx context.Context, userID int64, tokenDepartmentID *int64) (*entity.UserPermissions, error)

	// Invalidate drops the user's cached profile, best effort.
	Invalidate(ctx context.Context, userID int64)
}

type permissionServiceImpl struct {
	users       port.UserRepository
	departments port.DepartmentRepository
	cache       port.PermissionCache
	cacheTTL    time.Duration
	logger      Logger
}

// NewPermissionService creates a new PermissionService.
func NewPermissionService(
	users port.UserRepository,
	departments port.DepartmentRepository,
	cache port.PermissionCache,
	cacheTTL time.Duration,
	logger Logger,
) PermissionService {
	return &permissionServiceImpl{
		users:       users,
		departments: departments,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// Resolve computes the user's permission profile with a cache-aside
// strategy. Cache failures degrade to a direct computation.
func (s *permissionServiceImpl) Resolve(ctx context.Context, userID int64, tokenDepartmentID *int64) (*entity.UserPermissions, error) {
	if perms, ok := s.cache.Get(ctx, userID); ok {
		return perms, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load user", "error", err, "user_id", userID)
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", entity.ErrNotFound, userID)
	}

	roles, err := s.users.ListRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}

	canViewAll := false
	for _, r := range roles {
		if r.Name == entity.SuperAdminRoleName {
			canViewAll = true
			break
		}
	}

	// Personal grants override role grants entirely; the two sets are
	// never merged.
	viewable, err := s.departments.ListUserGrants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user grants: %w", err)
	}
	if len(viewable) == 0 {
		roleIDs := make([]int64, 0, len(roles))
		for _, r := range roles {
			roleIDs = append(roleIDs, r.ID)
		}
		if len(roleIDs) > 0 {
			viewable, err = s.departments.ListRoleGrants(ctx, roleIDs)
			if err != nil {
				return nil, fmt.Errorf("list role grants: %w", err)
			}
		}
	}

	effectiveDeptID := tokenDepartmentID
	if effectiveDeptID == nil {
		effectiveDeptID = user.DepartmentID
	}

	// A super-admin's own department stays in the set even though the
	// bypass makes it functionally irrelevant; the host UI displays it.
	if canViewAll && effectiveDeptID != nil {
		viewable = append(viewable, *effectiveDeptID)
	} else if len(viewable) == 0 && effectiveDeptID != nil {
		viewable = append(viewable, *effectiveDeptID)
	}

	perms := &entity.UserPermissions{
		UserID:                user.ID,
		Username:              user.Username,
		DepartmentID:          effectiveDeptID,
		ViewableDepartmentIDs: dedupeSorted(viewable),
		CanViewAllDepartments: canViewAll,
		Roles:                 roles,
	}

	s.cache.Set(ctx, userID, perms, s.cacheTTL)
	return perms, nil
}

// Invalidate drops the user's cached profile.
func (s *permissionServiceImpl) Invalidate(ctx context.Context, userID int64) {
	s.cache.Invalidate(ctx, userID)
}

// ApplyDepartmentFilter augments a SQL predicate with department
// visibility scoping. Every feature module filters its own listings
// through this single function:
//
//   - nil permissions (unauthenticated) match nothing
//   - super-admins pass through unfiltered
//   - otherwise rows in a viewable department, or owned by the user
//
// departmentColumn and ownerColumn name the columns of the caller's
// query, e.g. "r.department_id" and "r.user_id".
func ApplyDepartmentFilter(perms *entity.UserPermissions, query string, args []interface{}, departmentColumn, ownerColumn string) (string, []interface{}) {
	if perms == nil {
		return query + " AND 1=0", args
	}
	if perms.CanViewAllDepartments {
		return query, args
	}
	if len(perms.ViewableDepartmentIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(perms.ViewableDepartmentIDs)), ",")
		query += fmt.Sprintf(" AND (%s IN (%s) OR %s = ?)", departmentColumn, placeholders, ownerColumn)
		for _, id := range perms.ViewableDepartmentIDs {
			args = append(args, id)
		}
		args = append(args, perms.UserID)
		return query, args
	}
	query += fmt.Sprintf(" AND %s = ?", ownerColumn)
	args = append(args, perms.UserID)
	return query, args
}

// dedupeSorted returns the distinct ids in ascending order.
func dedupeSorted(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

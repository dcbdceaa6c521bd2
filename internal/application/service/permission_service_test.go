package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

func newPermissionFixture(users *MockUserRepository, departments *MockDepartmentRepository, cache *MockPermissionCache) PermissionService {
	return NewPermissionService(users, departments, cache, time.Hour, testLogger{})
}

func TestResolveOwnDepartmentFallback(t *testing.T) {
	users := &MockUserRepository{
		users: map[int64]*entity.User{
			1: {ID: 1, Username: "zhangsan", DepartmentID: int64Ptr(5)},
		},
		roles: map[int64][]entity.Role{},
	}
	departments := &MockDepartmentRepository{}
	svc := newPermissionFixture(users, departments, NewMockPermissionCache())

	perms, err := svc.Resolve(context.Background(), 1, nil)
	require.NoError(t, err)

	// No grants anywhere: the user still sees their own department.
	assert.Equal(t, []int64{5}, perms.ViewableDepartmentIDs)
	assert.False(t, perms.CanViewAllDepartments)
	require.NotNil(t, perms.DepartmentID)
	assert.Equal(t, int64(5), *perms.DepartmentID)
}

func TestResolvePersonalGrantsOverrideRoleGrants(t *testing.T) {
	users := &MockUserRepository{
		users: map[int64]*entity.User{
			1: {ID: 1, Username: "lisi", DepartmentID: int64Ptr(2)},
		},
		roles: map[int64][]entity.Role{
			1: {{ID: 10, Name: "财务"}},
		},
	}
	departments := &MockDepartmentRepository{
		userGrants: map[int64][]int64{1: {7, 8}},
		roleGrants: map[int64][]int64{10: {3, 4}},
	}
	svc := newPermissionFixture(users, departments, NewMockPermissionCache())

	perms, err := svc.Resolve(context.Background(), 1, nil)
	require.NoError(t, err)

	// Role grants 3,4 must not leak in alongside the personal grants.
	assert.Equal(t, []int64{7, 8}, perms.ViewableDepartmentIDs)
}

func TestResolveRoleGrantsWhenNoPersonalGrants(t *testing.T) {
	users := &MockUserRepository{
		users: map[int64]*entity.User{
			1: {ID: 1, Username: "lisi", DepartmentID: int64Ptr(2)},
		},
		roles: map[int64][]entity.Role{
			1: {{ID: 10, Name: "财务"}, {ID: 11, Name: "行政"}},
		},
	}
	departments := &MockDepartmentRepository{
		roleGrants: map[int64][]int64{10: {3, 4}, 11: {4, 9}},
	}
	svc := newPermissionFixture(users, departments, NewMockPermissionCache())

	perms, err := svc.Resolve(context.Background(), 1, nil)
	require.NoError(t, err)

	// Union across roles, deduplicated and sorted.
	assert.Equal(t, []int64{3, 4, 9}, perms.ViewableDepartmentIDs)
}

func TestResolveSuperAdmin(t *testing.T) {
	users := &MockUserRepository{
		users: map[int64]*entity.User{
			1: {ID: 1, Username: "admin", DepartmentID: int64Ptr(2)},
		},
		roles: map[int64][]entity.Role{
			1: {{ID: 1, Name: entity.SuperAdminRoleName}},
		},
	}
	departments := &MockDepartmentRepository{}
	svc := newPermissionFixture(users, departments, NewMockPermissionCache())

	perms, err := svc.Resolve(context.Background(), 1, nil)
	require.NoError(t, err)

	assert.True(t, perms.CanViewAllDepartments)
	// The bypass makes the list irrelevant, but the own department is
	// still reported for display.
	assert.Contains(t, perms.ViewableDepartmentIDs, int64(2))
}

func TestResolveTokenDepartmentOverridesUserRow(t *testing.T) {
	users := &MockUserRepository{
		users: map[int64]*entity.User{
			1: {ID: 1, Username: "wangwu", DepartmentID: int64Ptr(2)},
		},
		roles: map[int64][]entity.Role{},
	}
	departments := &MockDepartmentRepository{}
	svc := newPermissionFixture(users, departments, NewMockPermissionCache())

	perms, err := svc.Resolve(context.Background(), 1, int64Ptr(9))
	require.NoError(t, err)

	require.NotNil(t, perms.DepartmentID)
	assert.Equal(t, int64(9), *perms.DepartmentID)
	assert.Equal(t, []int64{9}, perms.ViewableDepartmentIDs)
}

func TestResolveUnknownUser(t *testing.T) {
	svc := newPermissionFixture(
		&MockUserRepository{users: map[int64]*entity.User{}},
		&MockDepartmentRepository{},
		NewMockPermissionCache(),
	)

	_, err := svc.Resolve(context.Background(), 99, nil)
	assert.True(t, errors.Is(err, entity.ErrNotFound))
}

func TestResolveUsesCache(t *testing.T) {
	cache := NewMockPermissionCache()
	users := &MockUserRepository{
		users: map[int64]*entity.User{
			1: {ID: 1, Username: "zhangsan", DepartmentID: int64Ptr(5)},
		},
		roles: map[int64][]entity.Role{},
	}
	svc := newPermissionFixture(users, &MockDepartmentRepository{}, cache)

	_, err := svc.Resolve(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// Second resolve comes from the cache even if the store breaks.
	users.err = errors.New("db down")
	perms, err := svc.Resolve(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, perms.ViewableDepartmentIDs)

	svc.Invalidate(context.Background(), 1)
	assert.Equal(t, []int64{1}, cache.invalidated)

	_, err = svc.Resolve(context.Background(), 1, nil)
	assert.Error(t, err)
}

func TestApplyDepartmentFilter(t *testing.T) {
	base := "SELECT * FROM reimbursements WHERE 1=1"

	tests := []struct {
		name      string
		perms     *entity.UserPermissions
		wantQuery string
		wantArgs  []interface{}
	}{
		{
			name:      "nil permissions match nothing",
			perms:     nil,
			wantQuery: base + " AND 1=0",
			wantArgs:  nil,
		},
		{
			name:      "super admin passes through",
			perms:     &entity.UserPermissions{UserID: 1, CanViewAllDepartments: true},
			wantQuery: base,
			wantArgs:  nil,
		},
		{
			name:      "viewable departments or own rows",
			perms:     &entity.UserPermissions{UserID: 1, ViewableDepartmentIDs: []int64{3, 7}},
			wantQuery: base + " AND (r.department_id IN (?,?) OR r.user_id = ?)",
			wantArgs:  []interface{}{int64(3), int64(7), int64(1)},
		},
		{
			name:      "no departments restricts to own rows",
			perms:     &entity.UserPermissions{UserID: 1},
			wantQuery: base + " AND r.user_id = ?",
			wantArgs:  []interface{}{int64(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := ApplyDepartmentFilter(tt.perms, base, nil, "r.department_id", "r.user_id")
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

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

var testAsOf = time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

func TestResolveUserNode(t *testing.T) {
	users := &MockUserRepository{
		users: map[int64]*entity.User{42: {ID: 42, Username: "zhangsan"}},
	}
	svc := NewApproverService(users, &MockApproverRepository{}, testLogger{})

	node := &entity.WorkflowNode{ID: 1, ApproverType: entity.ApproverTypeUser, ApproverID: int64Ptr(42)}
	got, err := svc.ResolveNodeApprovers(context.Background(), node, &entity.Reimbursement{}, testAsOf)
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, got)
}

func TestResolveUserNodeMissingUser(t *testing.T) {
	svc := NewApproverService(&MockUserRepository{users: map[int64]*entity.User{}}, &MockApproverRepository{}, testLogger{})

	node := &entity.WorkflowNode{ID: 1, ApproverType: entity.ApproverTypeUser, ApproverID: int64Ptr(42)}
	_, err := svc.ResolveNodeApprovers(context.Background(), node, &entity.Reimbursement{}, testAsOf)
	assert.True(t, errors.Is(err, entity.ErrConfiguration))
}

func TestResolveRoleNode(t *testing.T) {
	users := &MockUserRepository{
		roleIDs: map[int64]bool{3: true},
		byRole: map[int64][]*entity.User{
			3: {{ID: 9}, {ID: 4}, {ID: 9}},
		},
	}
	svc := NewApproverService(users, &MockApproverRepository{}, testLogger{})

	node := &entity.WorkflowNode{ID: 1, ApproverType: entity.ApproverTypeRole, RoleID: int64Ptr(3)}
	got, err := svc.ResolveNodeApprovers(context.Background(), node, &entity.Reimbursement{}, testAsOf)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 9}, got)
}

func TestResolveRoleNodeMissingRole(t *testing.T) {
	svc := NewApproverService(&MockUserRepository{roleIDs: map[int64]bool{}}, &MockApproverRepository{}, testLogger{})

	node := &entity.WorkflowNode{ID: 1, ApproverType: entity.ApproverTypeRole, RoleID: int64Ptr(3)}
	_, err := svc.ResolveNodeApprovers(context.Background(), node, &entity.Reimbursement{}, testAsOf)
	assert.True(t, errors.Is(err, entity.ErrConfiguration))
}

func TestResolveInitiatorNode(t *testing.T) {
	svc := NewApproverService(&MockUserRepository{}, &MockApproverRepository{}, testLogger{})

	node := &entity.WorkflowNode{ID: 1, ApproverType: entity.ApproverTypeInitiator}
	got, err := svc.ResolveNodeApprovers(context.Background(), node, &entity.Reimbursement{SubmitterID: 17}, testAsOf)
	require.NoError(t, err)
	assert.Equal(t, []int64{17}, got)
}

func TestResolveDepartmentManagerNode(t *testing.T) {
	users := &MockUserRepository{
		managers: map[int64]*entity.User{5: {ID: 30, IsDepartmentManager: true}},
	}
	svc := NewApproverService(users, &MockApproverRepository{}, testLogger{})

	node := &entity.WorkflowNode{ID: 1, ApproverType: entity.ApproverTypeDepartmentManager}
	got, err := svc.ResolveNodeApprovers(context.Background(), node, &entity.Reimbursement{DepartmentID: 5}, testAsOf)
	require.NoError(t, err)
	assert.Equal(t, []int64{30}, got)

	// No manager configured yields a valid empty set, not an error.
	got, err = svc.ResolveNodeApprovers(context.Background(), node, &entity.Reimbursement{DepartmentID: 8}, testAsOf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveCustomGroupAmountAndScope(t *testing.T) {
	group := "区域经理"
	approvers := &MockApproverRepository{
		groups: map[string][]*entity.Approver{
			group: {
				{ID: 1, GroupName: group, UserID: 11, AmountLimit: float64Ptr(10000), IsActive: true},
				{ID: 2, GroupName: group, UserID: 12, AmountLimit: float64Ptr(50000), IsActive: true},
				{ID: 3, GroupName: group, UserID: 13, IsActive: true, DepartmentScope: []int64{2}},
				{ID: 4, GroupName: group, UserID: 14, IsActive: false},
			},
		},
	}
	svc := NewApproverService(&MockUserRepository{}, approvers, testLogger{})
	node := &entity.WorkflowNode{ID: 1, ApproverType: entity.ApproverTypeCustomGroup, CustomTypeName: &group}

	tests := []struct {
		name    string
		request *entity.Reimbursement
		want    []int64
	}{
		{
			name:    "amount within every limit",
			request: &entity.Reimbursement{TotalAmount: 8000, DepartmentID: 2},
			want:    []int64{11, 12, 13},
		},
		{
			name:    "amount ceiling excludes the lower limit",
			request: &entity.Reimbursement{TotalAmount: 15000, DepartmentID: 2},
			want:    []int64{12, 13},
		},
		{
			name:    "department scope excludes out-of-scope member",
			request: &entity.Reimbursement{TotalAmount: 8000, DepartmentID: 5},
			want:    []int64{11, 12},
		},
		{
			name:    "all members filtered out is a valid empty set",
			request: &entity.Reimbursement{TotalAmount: 99999, DepartmentID: 5},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ResolveNodeApprovers(context.Background(), node, tt.request, testAsOf)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestResolveCustomGroupUnknownName(t *testing.T) {
	group := "不存在"
	svc := NewApproverService(&MockUserRepository{}, &MockApproverRepository{groups: map[string][]*entity.Approver{}}, testLogger{})
	node := &entity.WorkflowNode{ID: 1, ApproverType: entity.ApproverTypeCustomGroup, CustomTypeName: &group}

	_, err := svc.ResolveNodeApprovers(context.Background(), node, &entity.Reimbursement{}, testAsOf)
	assert.True(t, errors.Is(err, entity.ErrConfiguration))
}

func TestDelegateSubstitution(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	users := &MockUserRepository{
		roleIDs: map[int64]bool{3: true},
		byRole:  map[int64][]*entity.User{3: {{ID: 11}, {ID: 12}}},
	}
	approvers := &MockApproverRepository{
		rows: []*entity.Approver{
			{ID: 1, UserID: 11, IsActive: true, DelegateUserID: int64Ptr(99), DelegateStart: &start, DelegateEnd: &end},
		},
	}
	svc := NewApproverService(users, approvers, testLogger{})
	node := &entity.WorkflowNode{ID: 1, ApproverType: entity.ApproverTypeRole, RoleID: int64Ptr(3)}

	// Inside the window the delegate replaces the original approver.
	got, err := svc.ResolveNodeApprovers(context.Background(), node, &entity.Reimbursement{}, testAsOf)
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 99}, got)

	// Outside the window the original set is untouched.
	got, err = svc.ResolveNodeApprovers(context.Background(), node, &entity.Reimbursement{},
		time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12}, got)
}

func TestResolveNodeAssignmentsKeepsPrincipal(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	users := &MockUserRepository{
		roleIDs: map[int64]bool{3: true},
		byRole:  map[int64][]*entity.User{3: {{ID: 11}, {ID: 12}}},
	}
	approvers := &MockApproverRepository{
		rows: []*entity.Approver{
			{ID: 1, UserID: 11, IsActive: true, DelegateUserID: int64Ptr(99), DelegateStart: &start, DelegateEnd: &end},
		},
	}
	svc := NewApproverService(users, approvers, testLogger{})
	node := &entity.WorkflowNode{ID: 1, ApproverType: entity.ApproverTypeRole, RoleID: int64Ptr(3)}

	// The substituted actor stays paired with the approver they stand in
	// for; a direct approver is their own principal.
	got, err := svc.ResolveNodeAssignments(context.Background(), node, &entity.Reimbursement{}, testAsOf)
	require.NoError(t, err)
	assert.Equal(t, []NodeAssignment{
		{ActorID: 12, PrincipalID: 12},
		{ActorID: 99, PrincipalID: 11},
	}, got)
}

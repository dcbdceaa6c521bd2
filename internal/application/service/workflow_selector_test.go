package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

func selectorFixture(workflows []*entity.ApprovalWorkflow, submitter *entity.User, roles []entity.Role) WorkflowSelector {
	users := &MockUserRepository{
		users: map[int64]*entity.User{submitter.ID: submitter},
		roles: map[int64][]entity.Role{submitter.ID: roles},
	}
	return NewWorkflowSelector(&MockWorkflowRepository{workflows: workflows}, users, testLogger{})
}

func TestSelectAmountThresholdIsStrict(t *testing.T) {
	workflows := []*entity.ApprovalWorkflow{
		{ID: 1, Name: "默认流程", Status: entity.WorkflowStatusActive, IsDefault: true},
		{ID: 2, Name: "大额流程", Status: entity.WorkflowStatusActive,
			Conditions: entity.WorkflowConditions{AmountGreaterThan: float64Ptr(5000)}},
	}
	submitter := &entity.User{ID: 1}

	tests := []struct {
		name   string
		amount float64
		wantID int64
	}{
		{name: "over threshold", amount: 5000.01, wantID: 2},
		{name: "exactly at threshold falls to default", amount: 5000, wantID: 1},
		{name: "under threshold", amount: 100, wantID: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := selectorFixture(workflows, submitter, nil)
			wf, err := svc.Select(context.Background(), &entity.Reimbursement{ID: 1, SubmitterID: 1, TotalAmount: tt.amount})
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, wf.ID)
		})
	}
}

func TestSelectConjunction(t *testing.T) {
	// Matches only when both the amount and the manager flag hold.
	workflows := []*entity.ApprovalWorkflow{
		{ID: 1, Name: "默认流程", Status: entity.WorkflowStatusActive, IsDefault: true},
		{ID: 2, Name: "经理大额流程", Status: entity.WorkflowStatusActive,
			Conditions: entity.WorkflowConditions{
				AmountGreaterThan:   float64Ptr(10000),
				IsDepartmentManager: boolPtr(true),
			}},
	}

	manager := &entity.User{ID: 1, IsDepartmentManager: true}
	staff := &entity.User{ID: 2, IsDepartmentManager: false}

	svc := selectorFixture(workflows, manager, nil)
	wf, err := svc.Select(context.Background(), &entity.Reimbursement{ID: 1, SubmitterID: 1, TotalAmount: 20000})
	require.NoError(t, err)
	assert.Equal(t, int64(2), wf.ID)

	// Amount matches but the manager flag does not.
	svc = selectorFixture(workflows, staff, nil)
	wf, err = svc.Select(context.Background(), &entity.Reimbursement{ID: 2, SubmitterID: 2, TotalAmount: 20000})
	require.NoError(t, err)
	assert.Equal(t, int64(1), wf.ID)

	// Manager flag matches but the amount does not.
	svc = selectorFixture(workflows, manager, nil)
	wf, err = svc.Select(context.Background(), &entity.Reimbursement{ID: 3, SubmitterID: 1, TotalAmount: 9000})
	require.NoError(t, err)
	assert.Equal(t, int64(1), wf.ID)
}

func TestSelectRoleCondition(t *testing.T) {
	workflows := []*entity.ApprovalWorkflow{
		{ID: 1, Name: "默认流程", Status: entity.WorkflowStatusActive, IsDefault: true},
		{ID: 2, Name: "财务流程", Status: entity.WorkflowStatusActive,
			Conditions: entity.WorkflowConditions{RoleIDs: []int64{10, 11}}},
	}

	svc := selectorFixture(workflows, &entity.User{ID: 1}, []entity.Role{{ID: 11, Name: "财务"}})
	wf, err := svc.Select(context.Background(), &entity.Reimbursement{ID: 1, SubmitterID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), wf.ID)

	svc = selectorFixture(workflows, &entity.User{ID: 1}, []entity.Role{{ID: 99, Name: "行政"}})
	wf, err = svc.Select(context.Background(), &entity.Reimbursement{ID: 2, SubmitterID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), wf.ID)
}

func TestSelectFirstMatchByAscendingID(t *testing.T) {
	// Two conditional workflows both match; the lower id wins.
	workflows := []*entity.ApprovalWorkflow{
		{ID: 3, Name: "甲", Status: entity.WorkflowStatusActive,
			Conditions: entity.WorkflowConditions{AmountGreaterThan: float64Ptr(1000)}},
		{ID: 5, Name: "乙", Status: entity.WorkflowStatusActive,
			Conditions: entity.WorkflowConditions{AmountGreaterThan: float64Ptr(500)}},
	}

	svc := selectorFixture(workflows, &entity.User{ID: 1}, nil)
	wf, err := svc.Select(context.Background(), &entity.Reimbursement{ID: 1, SubmitterID: 1, TotalAmount: 2000})
	require.NoError(t, err)
	assert.Equal(t, int64(3), wf.ID)
}

func TestSelectDefaultExcludedFromConditionalPass(t *testing.T) {
	// The default appears first but a later conditional match still wins.
	workflows := []*entity.ApprovalWorkflow{
		{ID: 1, Name: "默认流程", Status: entity.WorkflowStatusActive, IsDefault: true},
		{ID: 2, Name: "大额流程", Status: entity.WorkflowStatusActive,
			Conditions: entity.WorkflowConditions{AmountGreaterThan: float64Ptr(100)}},
	}

	svc := selectorFixture(workflows, &entity.User{ID: 1}, nil)
	wf, err := svc.Select(context.Background(), &entity.Reimbursement{ID: 1, SubmitterID: 1, TotalAmount: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(2), wf.ID)
}

func TestSelectNoWorkflowAvailable(t *testing.T) {
	workflows := []*entity.ApprovalWorkflow{
		{ID: 2, Name: "大额流程", Status: entity.WorkflowStatusActive,
			Conditions: entity.WorkflowConditions{AmountGreaterThan: float64Ptr(5000)}},
	}

	svc := selectorFixture(workflows, &entity.User{ID: 1}, nil)
	_, err := svc.Select(context.Background(), &entity.Reimbursement{ID: 1, SubmitterID: 1, TotalAmount: 100})
	assert.True(t, errors.Is(err, entity.ErrNoWorkflowAvailable))
}

func TestSelectUnknownSubmitter(t *testing.T) {
	svc := NewWorkflowSelector(&MockWorkflowRepository{}, &MockUserRepository{users: map[int64]*entity.User{}}, testLogger{})
	_, err := svc.Select(context.Background(), &entity.Reimbursement{ID: 1, SubmitterID: 77})
	assert.True(t, errors.Is(err, entity.ErrNotFound))
}

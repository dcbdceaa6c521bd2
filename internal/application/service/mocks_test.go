package service

import (
	"context"
	"fmt"
	"time"

	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

// testLogger discards all output.
type testLogger struct{}

func (testLogger) Info(msg string, keysAndValues ...interface{})  {}
func (testLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (testLogger) Error(msg string, keysAndValues ...interface{}) {}

func float64Ptr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64       { return &v }
func boolPtr(v bool) *bool          { return &v }
func stringPtr(v string) *string    { return &v }

// MockUserRepository implements port.UserRepository for testing
type MockUserRepository struct {
	users    map[int64]*entity.User
	roles    map[int64][]entity.Role
	roleIDs  map[int64]bool
	byRole   map[int64][]*entity.User
	managers map[int64]*entity.User
	err      error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users[id], nil
}

func (m *MockUserRepository) ListRoles(ctx context.Context, userID int64) ([]entity.Role, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.roles[userID], nil
}

func (m *MockUserRepository) RoleExists(ctx context.Context, roleID int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.roleIDs[roleID], nil
}

func (m *MockUserRepository) ListActiveByRole(ctx context.Context, roleID int64) ([]*entity.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byRole[roleID], nil
}

func (m *MockUserRepository) GetDepartmentManager(ctx context.Context, departmentID int64) (*entity.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.managers[departmentID], nil
}

// MockDepartmentRepository implements port.DepartmentRepository for testing
type MockDepartmentRepository struct {
	departments map[int64]*entity.Department
	userGrants  map[int64][]int64
	roleGrants  map[int64][]int64
	err         error
}

func (m *MockDepartmentRepository) GetByID(ctx context.Context, id int64) (*entity.Department, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.departments[id], nil
}

func (m *MockDepartmentRepository) ListUserGrants(ctx context.Context, userID int64) ([]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.userGrants[userID], nil
}

func (m *MockDepartmentRepository) ListRoleGrants(ctx context.Context, roleIDs []int64) ([]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []int64
	for _, id := range roleIDs {
		out = append(out, m.roleGrants[id]...)
	}
	return out, nil
}

// MockApproverRepository implements port.ApproverRepository for testing
type MockApproverRepository struct {
	groups map[string][]*entity.Approver
	rows   []*entity.Approver
	err    error
}

func (m *MockApproverRepository) ListByGroup(ctx context.Context, groupName string) ([]*entity.Approver, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.groups[groupName], nil
}

func (m *MockApproverRepository) ListActiveByUsers(ctx context.Context, userIDs []int64) ([]*entity.Approver, error) {
	if m.err != nil {
		return nil, m.err
	}
	wanted := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	var out []*entity.Approver
	for _, row := range m.rows {
		if row.IsActive && wanted[row.UserID] {
			out = append(out, row)
		}
	}
	return out, nil
}

// MockWorkflowRepository implements port.WorkflowRepository for testing
type MockWorkflowRepository struct {
	workflows []*entity.ApprovalWorkflow
	nodes     map[int64][]*entity.WorkflowNode
	err       error
}

func (m *MockWorkflowRepository) ListActive(ctx context.Context) ([]*entity.ApprovalWorkflow, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.workflows, nil
}

func (m *MockWorkflowRepository) GetNode(ctx context.Context, nodeID int64) (*entity.WorkflowNode, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, nodes := range m.nodes {
		for _, n := range nodes {
			if n.ID == nodeID {
				return n, nil
			}
		}
	}
	return nil, nil
}

func (m *MockWorkflowRepository) ListNodes(ctx context.Context, workflowID int64) ([]*entity.WorkflowNode, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.nodes[workflowID], nil
}

// MockReimbursementRepository implements port.ReimbursementRepository with
// in-memory guarded updates, so concurrency conflicts behave as they do
// against the real store.
type MockReimbursementRepository struct {
	requests map[int64]*entity.Reimbursement
	err      error
}

func (m *MockReimbursementRepository) GetByID(ctx context.Context, id int64) (*entity.Reimbursement, error) {
	if m.err != nil {
		return nil, m.err
	}
	req, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (m *MockReimbursementRepository) ListApproving(ctx context.Context) ([]*entity.Reimbursement, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*entity.Reimbursement
	for _, req := range m.requests {
		if req.Status == entity.RequestStatusApproving {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockReimbursementRepository) MarkSubmitted(ctx context.Context, id, workflowID, nodeID int64, at time.Time) (bool, error) {
	req, ok := m.requests[id]
	if !ok || (req.Status != entity.RequestStatusDraft && req.Status != entity.RequestStatusPending) {
		return false, nil
	}
	req.Status = entity.RequestStatusApproving
	req.WorkflowID = &workflowID
	req.CurrentNodeID = &nodeID
	req.SubmittedAt = &at
	return true, nil
}

func (m *MockReimbursementRepository) MarkApprovedOnSubmit(ctx context.Context, id, workflowID int64, at time.Time) (bool, error) {
	req, ok := m.requests[id]
	if !ok || (req.Status != entity.RequestStatusDraft && req.Status != entity.RequestStatusPending) {
		return false, nil
	}
	req.Status = entity.RequestStatusApproved
	req.WorkflowID = &workflowID
	req.CurrentNodeID = nil
	req.SubmittedAt = &at
	req.CompletedAt = &at
	return true, nil
}

func (m *MockReimbursementRepository) AdvanceNode(ctx context.Context, id, fromNodeID, toNodeID int64) (bool, error) {
	req, ok := m.requests[id]
	if !ok || req.Status != entity.RequestStatusApproving ||
		req.CurrentNodeID == nil || *req.CurrentNodeID != fromNodeID {
		return false, nil
	}
	req.CurrentNodeID = &toNodeID
	return true, nil
}

func (m *MockReimbursementRepository) Finalize(ctx context.Context, id, fromNodeID int64, status string, at time.Time) (bool, error) {
	req, ok := m.requests[id]
	if !ok || req.Status != entity.RequestStatusApproving ||
		req.CurrentNodeID == nil || *req.CurrentNodeID != fromNodeID {
		return false, nil
	}
	req.Status = status
	req.CurrentNodeID = nil
	req.CompletedAt = &at
	return true, nil
}

func (m *MockReimbursementRepository) ReturnToDraft(ctx context.Context, id, fromNodeID int64) (bool, error) {
	req, ok := m.requests[id]
	if !ok || req.Status != entity.RequestStatusApproving ||
		req.CurrentNodeID == nil || *req.CurrentNodeID != fromNodeID {
		return false, nil
	}
	req.Status = entity.RequestStatusDraft
	req.CurrentNodeID = nil
	req.WorkflowID = nil
	req.SubmittedAt = nil
	return true, nil
}

func (m *MockReimbursementRepository) Cancel(ctx context.Context, id int64) (bool, error) {
	req, ok := m.requests[id]
	if !ok || (req.Status != entity.RequestStatusDraft && req.Status != entity.RequestStatusPending) {
		return false, nil
	}
	req.Status = entity.RequestStatusCancelled
	return true, nil
}

// MockRecordRepository implements port.RecordRepository for testing
type MockRecordRepository struct {
	records       []*entity.ApprovalRecord
	nodeApprovals []*entity.NodeApproval
	err           error
}

func (m *MockRecordRepository) Create(ctx context.Context, record *entity.ApprovalRecord) error {
	if m.err != nil {
		return m.err
	}
	record.ID = int64(len(m.records) + 1)
	m.records = append(m.records, record)
	return nil
}

func (m *MockRecordRepository) ListByReimbursement(ctx context.Context, reimbursementID int64) ([]*entity.ApprovalRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*entity.ApprovalRecord
	for _, r := range m.records {
		if r.ReimbursementID == reimbursementID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockRecordRepository) SnapshotNodeApprovals(ctx context.Context, reimbursementID, nodeID int64, approverIDs []int64) error {
	if m.err != nil {
		return m.err
	}
	for _, approverID := range approverIDs {
		// Same uniqueness the schema enforces on the ledger table.
		for _, na := range m.nodeApprovals {
			if na.ReimbursementID == reimbursementID && na.NodeID == nodeID && na.ApproverID == approverID {
				return fmt.Errorf("node approval already exists for approver %d on node %d", approverID, nodeID)
			}
		}
		m.nodeApprovals = append(m.nodeApprovals, &entity.NodeApproval{
			ID:              int64(len(m.nodeApprovals) + 1),
			ReimbursementID: reimbursementID,
			NodeID:          nodeID,
			ApproverID:      approverID,
		})
	}
	return nil
}

func (m *MockRecordRepository) Acknowledge(ctx context.Context, reimbursementID, nodeID, approverID int64, at time.Time) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, na := range m.nodeApprovals {
		if na.ReimbursementID == reimbursementID && na.NodeID == nodeID &&
			na.ApproverID == approverID && na.ApprovedAt == nil {
			t := at
			na.ApprovedAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRecordRepository) CountPending(ctx context.Context, reimbursementID, nodeID int64) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	count := 0
	for _, na := range m.nodeApprovals {
		if na.ReimbursementID == reimbursementID && na.NodeID == nodeID && na.ApprovedAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *MockRecordRepository) ClearNodeApprovals(ctx context.Context, reimbursementID int64) error {
	if m.err != nil {
		return m.err
	}
	kept := m.nodeApprovals[:0]
	for _, na := range m.nodeApprovals {
		if na.ReimbursementID == reimbursementID {
			continue
		}
		kept = append(kept, na)
	}
	m.nodeApprovals = kept
	return nil
}

// MockTransactionManager implements port.TransactionManager for testing
type MockTransactionManager struct{}

func (MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// MockPermissionCache implements port.PermissionCache for testing
type MockPermissionCache struct {
	entries     map[int64]*entity.UserPermissions
	sets        int
	invalidated []int64
}

func NewMockPermissionCache() *MockPermissionCache {
	return &MockPermissionCache{entries: make(map[int64]*entity.UserPermissions)}
}

func (m *MockPermissionCache) Get(ctx context.Context, userID int64) (*entity.UserPermissions, bool) {
	perms, ok := m.entries[userID]
	return perms, ok
}

func (m *MockPermissionCache) Set(ctx context.Context, userID int64, perms *entity.UserPermissions, ttl time.Duration) {
	m.sets++
	m.entries[userID] = perms
}

func (m *MockPermissionCache) Invalidate(ctx context.Context, userID int64) {
	m.invalidated = append(m.invalidated, userID)
	delete(m.entries, userID)
}

package port

import (
	"context"
	"time"

	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

// UserRepository defines read operations over users and role assignments.
// Lookups return (nil, nil) when the row is absent.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	ListRoles(ctx context.Context, userID int64) ([]entity.Role, error)
	RoleExists(ctx context.Context, roleID int64) (bool, error)
	// ListActiveByRole returns active users holding the role.
	ListActiveByRole(ctx context.Context, roleID int64) ([]*entity.User, error)
	// GetDepartmentManager returns the active manager-flagged user of the
	// department, or nil when none is configured.
	GetDepartmentManager(ctx context.Context, departmentID int64) (*entity.User, error)
}

// DepartmentRepository answers department visibility queries: personal
// grants (user_departments) and role grants (role_departments).
type DepartmentRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Department, error)
	ListUserGrants(ctx context.Context, userID int64) ([]int64, error)
	ListRoleGrants(ctx context.Context, roleIDs []int64) ([]int64, error)
}

// ApproverRepository defines operations over special approval-group
// membership rows.
type ApproverRepository interface {
	// ListByGroup returns every row carrying the group label, active or not.
	ListByGroup(ctx context.Context, groupName string) ([]*entity.Approver, error)
	// ListActiveByUsers returns active rows for any of the given users,
	// used for the delegate substitution pass.
	ListActiveByUsers(ctx context.Context, userIDs []int64) ([]*entity.Approver, error)
}

// WorkflowRepository defines read operations over workflow configuration.
type WorkflowRepository interface {
	// ListActive returns active workflows in ascending id order.
	ListActive(ctx context.Context) ([]*entity.ApprovalWorkflow, error)
	GetNode(ctx context.Context, nodeID int64) (*entity.WorkflowNode, error)
	// ListNodes returns the workflow's nodes in ascending order_num order.
	ListNodes(ctx context.Context, workflowID int64) ([]*entity.WorkflowNode, error)
}

// ReimbursementRepository defines persistence operations for requests.
// Every mutation is a guarded update: the WHERE clause re-checks the
// status (and current node) the caller observed, and the boolean result
// reports whether the row was won. A false result means a concurrent
// actor moved the request first.
type ReimbursementRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Reimbursement, error)
	// ListApproving returns in-flight requests, newest submission first.
	ListApproving(ctx context.Context) ([]*entity.Reimbursement, error)

	MarkSubmitted(ctx context.Context, id, workflowID, nodeID int64, at time.Time) (bool, error)
	// MarkApprovedOnSubmit finalizes a request whose every node skipped.
	MarkApprovedOnSubmit(ctx context.Context, id, workflowID int64, at time.Time) (bool, error)
	AdvanceNode(ctx context.Context, id, fromNodeID, toNodeID int64) (bool, error)
	// Finalize moves an approving request to a terminal status, clearing
	// the current node.
	Finalize(ctx context.Context, id, fromNodeID int64, status string, at time.Time) (bool, error)
	// ReturnToDraft clears routing so the submitter may edit and resubmit.
	ReturnToDraft(ctx context.Context, id, fromNodeID int64) (bool, error)
	// Cancel terminates a request that has not yet been routed.
	Cancel(ctx context.Context, id int64) (bool, error)
}

// RecordRepository defines persistence for the append-only approval
// history and the per-node parallel acknowledgment ledger.
type RecordRepository interface {
	Create(ctx context.Context, record *entity.ApprovalRecord) error
	ListByReimbursement(ctx context.Context, reimbursementID int64) ([]*entity.ApprovalRecord, error)

	// SnapshotNodeApprovals seeds one pending acknowledgment per approver
	// at node entry.
	SnapshotNodeApprovals(ctx context.Context, reimbursementID, nodeID int64, approverIDs []int64) error
	// Acknowledge marks the actor's pending acknowledgment; false when the
	// actor has no pending row on the node.
	Acknowledge(ctx context.Context, reimbursementID, nodeID, approverID int64, at time.Time) (bool, error)
	CountPending(ctx context.Context, reimbursementID, nodeID int64) (int, error)
	// ClearNodeApprovals drops the request's acknowledgment ledger, signed
	// rows included, so a returned request can re-enter the same node.
	// Human actions are kept in the approval history.
	ClearNodeApprovals(ctx context.Context, reimbursementID int64) error
}

// TransactionManager executes a function within a database transaction.
// Repositories called with the returned context join the transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

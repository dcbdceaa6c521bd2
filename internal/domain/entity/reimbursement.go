package entity

import "time"

// Reimbursement status values. CurrentNodeID is non-nil iff the status
// is approving, and always references a node of WorkflowID.
const (
	RequestStatusDraft     = "draft"
	RequestStatusPending   = "pending"
	RequestStatusApproving = "approving"
	RequestStatusApproved  = "approved"
	RequestStatusRejected  = "rejected"
	RequestStatusCancelled = "cancelled"
)

// Approval action values recorded in approval_records.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionReturn  = "return"
	ActionSkip    = "skip"
)

// Reimbursement is the approvable request routed through a workflow.
type Reimbursement struct {
	ID              int64      `json:"id"`
	ReimbursementNo string     `json:"reimbursement_no"`
	SubmitterID     int64      `json:"submitter_id"`
	DepartmentID    int64      `json:"department_id"`
	Title           string     `json:"title"`
	TotalAmount     float64    `json:"total_amount"`
	Status          string     `json:"status"`
	WorkflowID      *int64     `json:"workflow_id,omitempty"`
	CurrentNodeID   *int64     `json:"current_node_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// ApprovalRecord is one append-only history entry for a request. Records
// are never updated or deleted once written.
type ApprovalRecord struct {
	ID              int64     `json:"id"`
	ReimbursementID int64     `json:"reimbursement_id"`
	NodeID          int64     `json:"node_id"`
	NodeOrder       int       `json:"node_order"`
	ApproverID      int64     `json:"approver_id"`
	Action          string    `json:"action"`
	Opinion         string    `json:"opinion"`
	CreatedAt       time.Time `json:"created_at"`
}

// NodeApproval tracks one actor's acknowledgment on a parallel node.
// Rows are snapshotted from the resolved approver set when the request
// enters the node; the node completes when no row has a nil ApprovedAt.
type NodeApproval struct {
	ID              int64      `json:"id"`
	ReimbursementID int64      `json:"reimbursement_id"`
	NodeID          int64      `json:"node_id"`
	ApproverID      int64      `json:"approver_id"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
}

// PendingItem is one entry of a user's computed todo list.
type PendingItem struct {
	RequestID       int64     `json:"request_id"`
	ReimbursementNo string    `json:"reimbursement_no"`
	NodeName        string    `json:"node_name"`
	Summary         string    `json:"summary"`
	Amount          float64   `json:"amount"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// ApprovalProgress is the read-only projection of a request's routing
// state: the configured chain plus everything recorded so far.
type ApprovalProgress struct {
	Request       *Reimbursement    `json:"request"`
	Nodes         []*WorkflowNode   `json:"nodes"`
	Records       []*ApprovalRecord `json:"records"`
	CurrentNodeID *int64            `json:"current_node_id,omitempty"`
}

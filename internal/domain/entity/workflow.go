package entity

// ApproverType identifies how a node's eligible actor set is computed.
// The set of variants is closed; resolvers switch exhaustively over it.
type ApproverType string

const (
	ApproverTypeRole              ApproverType = "role"
	ApproverTypeUser              ApproverType = "user"
	ApproverTypeCustomGroup       ApproverType = "custom_group"
	ApproverTypeInitiator         ApproverType = "initiator"
	ApproverTypeDepartmentManager ApproverType = "department_manager"
)

var validApproverTypes = map[ApproverType]bool{
	ApproverTypeRole:              true,
	ApproverTypeUser:              true,
	ApproverTypeCustomGroup:       true,
	ApproverTypeInitiator:         true,
	ApproverTypeDepartmentManager: true,
}

// IsValid returns true if the approver type is a known variant.
func (t ApproverType) IsValid() bool {
	return validApproverTypes[t]
}

// String returns the string representation of the approver type.
func (t ApproverType) String() string {
	return string(t)
}

// ApprovalMode controls how a node completes.
type ApprovalMode string

const (
	// ApprovalModeSerial completes the node on the first approval by any
	// eligible actor.
	ApprovalModeSerial ApprovalMode = "serial"
	// ApprovalModeParallel completes the node only after every actor that
	// was eligible at node entry has individually approved.
	ApprovalModeParallel ApprovalMode = "parallel"
)

// Workflow status values
const (
	WorkflowStatusActive   = "active"
	WorkflowStatusInactive = "inactive"
)

// WorkflowConditions is the structured predicate attached to a workflow.
// It is a flat conjunction of enumerated fields; an unset field is
// vacuously true. The closed struct shape (rather than a free-form map)
// guarantees unknown condition keys are never silently evaluated.
type WorkflowConditions struct {
	// AmountGreaterThan matches when request amount is strictly greater.
	AmountGreaterThan *float64 `json:"amount_greater_than,omitempty"`
	// IsDepartmentManager matches the submitter's manager flag when set.
	IsDepartmentManager *bool `json:"is_department_manager,omitempty"`
	// RoleIDs matches when the submitter holds at least one listed role.
	RoleIDs []int64 `json:"role_ids,omitempty"`
}

// IsEmpty reports whether no condition field is set.
func (c WorkflowConditions) IsEmpty() bool {
	return c.AmountGreaterThan == nil && c.IsDepartmentManager == nil && len(c.RoleIDs) == 0
}

// ApprovalWorkflow is a configured approval chain. At most one active
// workflow carries IsDefault and acts as the fallback when no conditional
// workflow matches a request.
type ApprovalWorkflow struct {
	ID         int64              `json:"id"`
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	IsDefault  bool               `json:"is_default"`
	Conditions WorkflowConditions `json:"conditions"`
}

// WorkflowNode is one step of a workflow's strict linear chain, ordered
// by OrderNum. Exactly one of RoleID, ApproverID, CustomTypeName is
// populated, matching ApproverType.
type WorkflowNode struct {
	ID             int64        `json:"id"`
	WorkflowID     int64        `json:"workflow_id"`
	OrderNum       int          `json:"order_num"`
	NodeName       string       `json:"node_name"`
	ApproverType   ApproverType `json:"approver_type"`
	RoleID         *int64       `json:"role_id,omitempty"`
	ApproverID     *int64       `json:"approver_id,omitempty"`
	CustomTypeName *string      `json:"custom_type_name,omitempty"`
	ApprovalMode   ApprovalMode `json:"approval_mode"`
	CanSkip        bool         `json:"can_skip"`
}

package service

import (
	"context"
	"fmt"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

// WorkflowSelector picks the single applicable workflow for a request.
type WorkflowSelector interface {
	// Select evaluates each active conditional workflow's predicate as a
	// flat conjunction against the request and its submitter, in ascending
	// workflow id order; the first full match wins. When none matches, the
	// workflow flagged is_default is selected. Fails with
	// entity.ErrNoWorkflowAvailable when neither exists.
	Select(ctx context.Context, request *entity.Reimbursement) (*entity.ApprovalWorkflow, error)
}

type workflowSelectorImpl struct {
	workflows port.WorkflowRepository
	users     port.UserRepository
	logger    Logger
}

// NewWorkflowSelector creates a new WorkflowSelector.
func NewWorkflowSelector(workflows port.WorkflowRepository, users port.UserRepository, logger Logger) WorkflowSelector {
	return &workflowSelectorImpl{
		workflows: workflows,
		users:     users,
		logger:    logger,
	}
}

func (s *workflowSelectorImpl) Select(ctx context.Context, request *entity.Reimbursement) (*entity.ApprovalWorkflow, error) {
	submitter, err := s.users.GetByID(ctx, request.SubmitterID)
	if err != nil {
		return nil, fmt.Errorf("load submitter: %w", err)
	}
	if submitter == nil {
		return nil, fmt.Errorf("%w: submitter %d", entity.ErrNotFound, request.SubmitterID)
	}

	roles, err := s.users.ListRoles(ctx, request.SubmitterID)
	if err != nil {
		return nil, fmt.Errorf("list submitter roles: %w", err)
	}
	roleIDs := make(map[int64]bool, len(roles))
	for _, r := range roles {
		roleIDs[r.ID] = true
	}

	workflows, err := s.workflows.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	// The default is excluded from the conditional pass and kept as the
	// fallback; selection over the remainder is stable by ascending id.
	var fallback *entity.ApprovalWorkflow
	for _, wf := range workflows {
		if wf.IsDefault {
			if fallback == nil {
				fallback = wf
			}
			continue
		}
		if conditionsMatch(wf.Conditions, request.TotalAmount, submitter.IsDepartmentManager, roleIDs) {
			s.logger.Info("Matched conditional workflow",
				"workflow_id", wf.ID, "workflow", wf.Name, "reimbursement_id", request.ID)
			return wf, nil
		}
	}

	if fallback != nil {
		s.logger.Info("Using default workflow",
			"workflow_id", fallback.ID, "workflow", fallback.Name, "reimbursement_id", request.ID)
		return fallback, nil
	}

	return nil, fmt.Errorf("%w: reimbursement %d", entity.ErrNoWorkflowAvailable, request.ID)
}

// conditionsMatch evaluates the workflow predicate as a conjunction.
// An unset field is vacuously true; amount comparison is strictly greater.
func conditionsMatch(c entity.WorkflowConditions, amount float64, isDepartmentManager bool, submitterRoles map[int64]bool) bool {
	if c.AmountGreaterThan != nil && !(amount > *c.AmountGreaterThan) {
		return false
	}
	if c.IsDepartmentManager != nil && *c.IsDepartmentManager != isDepartmentManager {
		return false
	}
	if len(c.RoleIDs) > 0 {
		matched := false
		for _, id := range c.RoleIDs {
			if submitterRoles[id] {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
	"github.com/linkoffice/oa-approval/internal/domain/lifecycle"
)

// ApprovalService owns a request's routing state. It is the only writer
// of reimbursement status and current node; a failed operation leaves the
// persisted request unchanged.
type ApprovalService interface {
	// Submit routes a draft/pending request: selects a workflow and enters
	// the first non-skipped node, or approves outright when every node
	// auto-skips. Only the submitter may submit their own request.
	Submit(ctx context.Context, requestID, actorID int64) (*entity.Reimbursement, error)

	// Act applies an approver action (approve, reject, return) to the
	// request's current node. The actor must be in the node's resolved set.
	Act(ctx context.Context, requestID, actorID int64, action, opinion string) (*entity.Reimbursement, error)

	// Cancel terminates a request that has not yet been routed. Only the
	// submitter may cancel their own request.
	Cancel(ctx context.Context, requestID, actorID int64) error

	// Progress returns the read-only routing projection for a request.
	Progress(ctx context.Context, requestID int64) (*entity.ApprovalProgress, error)
}

type approvalServiceImpl struct {
	requests  port.ReimbursementRepository
	workflows port.WorkflowRepository
	records   port.RecordRepository
	selector  WorkflowSelector
	approvers ApproverService
	txManager port.TransactionManager
	logger    Logger
	now       func() time.Time
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(
	requests port.ReimbursementRepository,
	workflows port.WorkflowRepository,
	records port.RecordRepository,
	selector WorkflowSelector,
	approvers ApproverService,
	txManager port.TransactionManager,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		requests:  requests,
		workflows: workflows,
		records:   records,
		selector:  selector,
		approvers: approvers,
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit routes a draft/pending request into its workflow.
func (s *approvalServiceImpl) Submit(ctx context.Context, requestID, actorID int64) (*entity.Reimbursement, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, fmt.Errorf("%w: reimbursement %d", entity.ErrNotFound, requestID)
	}
	if request.SubmitterID != actorID {
		return nil, fmt.Errorf("%w: user %d is not the submitter of reimbursement %d",
			entity.ErrForbidden, actorID, requestID)
	}

	machine := lifecycle.NewRequestMachine(lifecycle.State(request.Status))
	if !machine.CanFire(lifecycle.TriggerSubmit) {
		return nil, fmt.Errorf("%w: cannot submit from status %q", entity.ErrInvalidTransition, request.Status)
	}

	workflow, err := s.selector.Select(ctx, request)
	if err != nil {
		return nil, err
	}

	nodes, err := s.workflows.ListNodes(ctx, workflow.ID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: workflow %d has no nodes", entity.ErrConfiguration, workflow.ID)
	}

	submittedAt := s.now()
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		first, firstSet, err := s.firstEligibleNode(txCtx, nodes, request, submittedAt)
		if err != nil {
			return err
		}

		if first == nil {
			// Every node auto-skipped; nothing to wait on.
			won, err := s.requests.MarkApprovedOnSubmit(txCtx, requestID, workflow.ID, submittedAt)
			if err != nil {
				return err
			}
			if !won {
				return fmt.Errorf("%w: reimbursement %d already routed", entity.ErrInvalidTransition, requestID)
			}
			return nil
		}

		won, err := s.requests.MarkSubmitted(txCtx, requestID, workflow.ID, first.ID, submittedAt)
		if err != nil {
			return err
		}
		if !won {
			return fmt.Errorf("%w: reimbursement %d already routed", entity.ErrInvalidTransition, requestID)
		}

		if first.ApprovalMode == entity.ApprovalModeParallel {
			if err := s.records.SnapshotNodeApprovals(txCtx, requestID, first.ID, firstSet); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to submit reimbursement", "error", err, "reimbursement_id", requestID)
		return nil, err
	}

	updated, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Reimbursement submitted",
		"reimbursement_id", requestID, "workflow_id", workflow.ID, "status", updated.Status)
	return updated, nil
}

// Act applies an approver action inside a single transaction. Any failure
// rolls back the history record together with the state change.
func (s *approvalServiceImpl) Act(ctx context.Context, requestID, actorID int64, action, opinion string) (*entity.Reimbursement, error) {
	trigger, err := actionTrigger(action)
	if err != nil {
		return nil, err
	}

	asOf := s.now()
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		request, err := s.requests.GetByID(txCtx, requestID)
		if err != nil {
			return err
		}
		if request == nil {
			return fmt.Errorf("%w: reimbursement %d", entity.ErrNotFound, requestID)
		}

		machine := lifecycle.NewRequestMachine(lifecycle.State(request.Status))
		if !machine.CanFire(trigger) {
			return fmt.Errorf("%w: cannot %s from status %q", entity.ErrInvalidTransition, action, request.Status)
		}
		if request.CurrentNodeID == nil {
			return fmt.Errorf("%w: reimbursement %d has no current node", entity.ErrInvalidTransition, requestID)
		}

		node, err := s.workflows.GetNode(txCtx, *request.CurrentNodeID)
		if err != nil {
			return err
		}
		if node == nil {
			return fmt.Errorf("%w: current node %d does not exist", entity.ErrConfiguration, *request.CurrentNodeID)
		}

		assignments, err := s.approvers.ResolveNodeAssignments(txCtx, node, request, asOf)
		if err != nil {
			return err
		}
		ledgerIDs := ledgerIdentities(assignments, actorID)
		if len(ledgerIDs) == 0 {
			return fmt.Errorf("%w: user %d is not an approver of node %q", entity.ErrForbidden, actorID, node.NodeName)
		}

		record := &entity.ApprovalRecord{
			ReimbursementID: requestID,
			NodeID:          node.ID,
			NodeOrder:       node.OrderNum,
			ApproverID:      actorID,
			Action:          action,
			Opinion:         opinion,
			CreatedAt:       asOf,
		}
		if err := s.records.Create(txCtx, record); err != nil {
			return err
		}

		switch action {
		case entity.ActionApprove:
			return s.applyApprove(txCtx, request, node, actorID, ledgerIDs, asOf)
		case entity.ActionReject:
			won, err := s.requests.Finalize(txCtx, requestID, node.ID, entity.RequestStatusRejected, asOf)
			if err != nil {
				return err
			}
			if !won {
				return fmt.Errorf("%w: node already advanced", entity.ErrInvalidTransition)
			}
			return nil
		case entity.ActionReturn:
			won, err := s.requests.ReturnToDraft(txCtx, requestID, node.ID)
			if err != nil {
				return err
			}
			if !won {
				return fmt.Errorf("%w: node already advanced", entity.ErrInvalidTransition)
			}
			// The whole ledger goes, signed slots included, so a
			// resubmission can re-enter the node with a fresh snapshot.
			// The actions themselves stay in approval_records.
			return s.records.ClearNodeApprovals(txCtx, requestID)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Approval action failed",
			"error", err, "reimbursement_id", requestID, "actor_id", actorID, "action", action)
		return nil, err
	}

	updated, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Approval action applied",
		"reimbursement_id", requestID, "actor_id", actorID, "action", action, "status", updated.Status)
	return updated, nil
}

// applyApprove completes or advances the current node after an approve.
// ledgerIDs lists the acknowledgment slots the actor may consume, their
// own first.
func (s *approvalServiceImpl) applyApprove(ctx context.Context, request *entity.Reimbursement, node *entity.WorkflowNode, actorID int64, ledgerIDs []int64, asOf time.Time) error {
	if node.ApprovalMode == entity.ApprovalModeParallel {
		acked := false
		for _, ledgerID := range ledgerIDs {
			ok, err := s.records.Acknowledge(ctx, request.ID, node.ID, ledgerID, asOf)
			if err != nil {
				return err
			}
			if ok {
				acked = true
				break
			}
		}
		if !acked {
			return fmt.Errorf("%w: user %d has no open sign-off on node %q", entity.ErrInvalidTransition, actorID, node.NodeName)
		}
		pending, err := s.records.CountPending(ctx, request.ID, node.ID)
		if err != nil {
			return err
		}
		if pending > 0 {
			// Node stays open until every snapshotted approver has signed.
			return nil
		}
	}

	nodes, err := s.workflows.ListNodes(ctx, node.WorkflowID)
	if err != nil {
		return err
	}

	next, nextSet, err := s.nextEligibleNode(ctx, nodes, node.OrderNum, request, asOf)
	if err != nil {
		return err
	}

	if next == nil {
		won, err := s.requests.Finalize(ctx, request.ID, node.ID, entity.RequestStatusApproved, asOf)
		if err != nil {
			return err
		}
		if !won {
			return fmt.Errorf("%w: node already advanced", entity.ErrInvalidTransition)
		}
		return nil
	}

	won, err := s.requests.AdvanceNode(ctx, request.ID, node.ID, next.ID)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("%w: node already advanced", entity.ErrInvalidTransition)
	}

	if next.ApprovalMode == entity.ApprovalModeParallel {
		return s.records.SnapshotNodeApprovals(ctx, request.ID, next.ID, nextSet)
	}
	return nil
}

// Cancel terminates an unrouted request.
func (s *approvalServiceImpl) Cancel(ctx context.Context, requestID, actorID int64) error {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request == nil {
		return fmt.Errorf("%w: reimbursement %d", entity.ErrNotFound, requestID)
	}
	if request.SubmitterID != actorID {
		return fmt.Errorf("%w: user %d is not the submitter of reimbursement %d",
			entity.ErrForbidden, actorID, requestID)
	}

	machine := lifecycle.NewRequestMachine(lifecycle.State(request.Status))
	if !machine.CanFire(lifecycle.TriggerCancel) {
		return fmt.Errorf("%w: cannot cancel from status %q", entity.ErrInvalidTransition, request.Status)
	}

	won, err := s.requests.Cancel(ctx, requestID)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("%w: reimbursement %d already routed", entity.ErrInvalidTransition, requestID)
	}
	s.logger.Info("Reimbursement cancelled", "reimbursement_id", requestID)
	return nil
}

// Progress returns the routing projection for a request.
func (s *approvalServiceImpl) Progress(ctx context.Context, requestID int64) (*entity.ApprovalProgress, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, fmt.Errorf("%w: reimbursement %d", entity.ErrNotFound, requestID)
	}

	var nodes []*entity.WorkflowNode
	if request.WorkflowID != nil {
		nodes, err = s.workflows.ListNodes(ctx, *request.WorkflowID)
		if err != nil {
			return nil, err
		}
	}

	records, err := s.records.ListByReimbursement(ctx, requestID)
	if err != nil {
		return nil, err
	}

	return &entity.ApprovalProgress{
		Request:       request,
		Nodes:         nodes,
		Records:       records,
		CurrentNodeID: request.CurrentNodeID,
	}, nil
}

// firstEligibleNode walks the chain from the start and returns the first
// node that does not auto-skip, together with its resolved approver set.
func (s *approvalServiceImpl) firstEligibleNode(ctx context.Context, nodes []*entity.WorkflowNode, request *entity.Reimbursement, asOf time.Time) (*entity.WorkflowNode, []int64, error) {
	return s.nextEligibleNode(ctx, nodes, -1, request, asOf)
}

// nextEligibleNode returns the first node after the given order that does
// not auto-skip. A node auto-skips when can_skip is set and its resolved
// approver set is empty, so requests never stall on unconfigured nodes.
func (s *approvalServiceImpl) nextEligibleNode(ctx context.Context, nodes []*entity.WorkflowNode, afterOrder int, request *entity.Reimbursement, asOf time.Time) (*entity.WorkflowNode, []int64, error) {
	for _, node := range nodes {
		if node.OrderNum <= afterOrder {
			continue
		}
		set, err := s.approvers.ResolveNodeApprovers(ctx, node, request, asOf)
		if err != nil {
			return nil, nil, err
		}
		if len(set) == 0 && node.CanSkip {
			s.logger.Info("Skipping unconfigured node",
				"reimbursement_id", request.ID, "node_id", node.ID, "node", node.NodeName)
			continue
		}
		return node, set, nil
	}
	return nil, nil, nil
}

// ledgerIdentities lists the acknowledgment slots the actor may consume
// on the node: their own id first, then each approver they stand in for
// as an active delegate. Empty means the actor is not on the node.
func ledgerIdentities(assignments []NodeAssignment, actorID int64) []int64 {
	var principals []int64
	onNode := false
	for _, a := range assignments {
		if a.ActorID != actorID {
			continue
		}
		onNode = true
		if a.PrincipalID != actorID {
			principals = append(principals, a.PrincipalID)
		}
	}
	if !onNode {
		return nil
	}
	return append([]int64{actorID}, principals...)
}

// actionTrigger maps an approver action to its lifecycle trigger.
func actionTrigger(action string) (lifecycle.Trigger, error) {
	switch action {
	case entity.ActionApprove:
		return lifecycle.TriggerApprove, nil
	case entity.ActionReject:
		return lifecycle.TriggerReject, nil
	case entity.ActionReturn:
		return lifecycle.TriggerReturn, nil
	default:
		return "", fmt.Errorf("%w: unsupported action %q", entity.ErrInvalidTransition, action)
	}
}

package service

import (
	"context"
	"time"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

// TodoService lists every pending node where a user is currently an
// eligible approver. The list is a pure read projection recomputed per
// call; there is no persisted inbox.
type TodoService interface {
	ListPending(ctx context.Context, userID int64) ([]entity.PendingItem, error)
}

type todoServiceImpl struct {
	requests  port.ReimbursementRepository
	workflows port.WorkflowRepository
	approvers ApproverService
	logger    Logger
	now       func() time.Time
}

// NewTodoService creates a new TodoService.
func NewTodoService(
	requests port.ReimbursementRepository,
	workflows port.WorkflowRepository,
	approvers ApproverService,
	logger Logger,
) TodoService {
	return &todoServiceImpl{
		requests:  requests,
		workflows: workflows,
		approvers: approvers,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *todoServiceImpl) ListPending(ctx context.Context, userID int64) ([]entity.PendingItem, error) {
	requests, err := s.requests.ListApproving(ctx)
	if err != nil {
		return nil, err
	}

	asOf := s.now()
	items := make([]entity.PendingItem, 0)
	for _, request := range requests {
		if request.CurrentNodeID == nil {
			continue
		}
		node, err := s.workflows.GetNode(ctx, *request.CurrentNodeID)
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}

		set, err := s.approvers.ResolveNodeApprovers(ctx, node, request, asOf)
		if err != nil {
			// One misconfigured workflow must not empty the whole inbox.
			s.logger.Warn("Skipping unresolvable node in todo list",
				"error", err, "reimbursement_id", request.ID, "node_id", node.ID)
			continue
		}
		if !containsID(set, userID) {
			continue
		}

		submittedAt := request.CreatedAt
		if request.SubmittedAt != nil {
			submittedAt = *request.SubmittedAt
		}
		items = append(items, entity.PendingItem{
			RequestID:       request.ID,
			ReimbursementNo: request.ReimbursementNo,
			NodeName:        node.NodeName,
			Summary:         request.Title,
			Amount:          request.TotalAmount,
			SubmittedAt:     submittedAt,
		})
	}

	// ListApproving already orders newest first; keep that order.
	return items, nil
}

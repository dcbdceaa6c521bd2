package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

// NodeAssignment pairs an authorized actor with the configured approver
// whose sign-off slot they fill. PrincipalID equals ActorID unless an
// active delegation substituted the actor in.
type NodeAssignment struct {
	ActorID     int64
	PrincipalID int64
}

// ApproverService resolves the concrete set of users eligible to act on
// an approval node for a given request.
type ApproverService interface {
	// ResolveNodeApprovers returns the deduplicated, ascending set of user
	// ids authorized for the node, with active delegations substituted as
	// of the given date. An empty set is a valid result; a node referencing
	// a role, user or group that no longer exists fails with
	// entity.ErrConfiguration. Callers must not union results across nodes.
	ResolveNodeApprovers(ctx context.Context, node *entity.WorkflowNode, request *entity.Reimbursement, asOf time.Time) ([]int64, error)

	// ResolveNodeAssignments returns the same set with each actor paired
	// to the approver they stand in for. A parallel node acknowledged
	// against a snapshot taken before a delegation window opened uses the
	// pairing to locate the delegator's ledger slot.
	ResolveNodeAssignments(ctx context.Context, node *entity.WorkflowNode, request *entity.Reimbursement, asOf time.Time) ([]NodeAssignment, error)
}

type approverServiceImpl struct {
	users     port.UserRepository
	approvers port.ApproverRepository
	logger    Logger
}

// NewApproverService creates a new ApproverService.
func NewApproverService(users port.UserRepository, approvers port.ApproverRepository, logger Logger) ApproverService {
	return &approverServiceImpl{
		users:     users,
		approvers: approvers,
		logger:    logger,
	}
}

func (s *approverServiceImpl) ResolveNodeApprovers(ctx context.Context, node *entity.WorkflowNode, request *entity.Reimbursement, asOf time.Time) ([]int64, error) {
	assignments, err := s.ResolveNodeAssignments(ctx, node, request, asOf)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ActorID)
	}
	return dedupeSorted(ids), nil
}

func (s *approverServiceImpl) ResolveNodeAssignments(ctx context.Context, node *entity.WorkflowNode, request *entity.Reimbursement, asOf time.Time) ([]NodeAssignment, error) {
	var (
		ids []int64
		err error
	)

	switch node.ApproverType {
	case entity.ApproverTypeUser:
		ids, err = s.resolveUser(ctx, node)
	case entity.ApproverTypeRole:
		ids, err = s.resolveRole(ctx, node)
	case entity.ApproverTypeCustomGroup:
		ids, err = s.resolveCustomGroup(ctx, node, request)
	case entity.ApproverTypeInitiator:
		ids = []int64{request.SubmitterID}
	case entity.ApproverTypeDepartmentManager:
		ids, err = s.resolveDepartmentManager(ctx, request)
	default:
		return nil, fmt.Errorf("%w: node %d has unknown approver type %q", entity.ErrConfiguration, node.ID, node.ApproverType)
	}
	if err != nil {
		return nil, err
	}

	assignments, err := s.applyDelegates(ctx, ids, asOf)
	if err != nil {
		return nil, err
	}

	return dedupeAssignments(assignments), nil
}

func (s *approverServiceImpl) resolveUser(ctx context.Context, node *entity.WorkflowNode) ([]int64, error) {
	if node.ApproverID == nil {
		return nil, fmt.Errorf("%w: user node %d has no approver id", entity.ErrConfiguration, node.ID)
	}
	user, err := s.users.GetByID(ctx, *node.ApproverID)
	if err != nil {
		return nil, fmt.Errorf("load approver user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: node %d references missing user %d", entity.ErrConfiguration, node.ID, *node.ApproverID)
	}
	return []int64{user.ID}, nil
}

func (s *approverServiceImpl) resolveRole(ctx context.Context, node *entity.WorkflowNode) ([]int64, error) {
	if node.RoleID == nil {
		return nil, fmt.Errorf("%w: role node %d has no role id", entity.ErrConfiguration, node.ID)
	}
	exists, err := s.users.RoleExists(ctx, *node.RoleID)
	if err != nil {
		return nil, fmt.Errorf("check role: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: node %d references missing role %d", entity.ErrConfiguration, node.ID, *node.RoleID)
	}
	holders, err := s.users.ListActiveByRole(ctx, *node.RoleID)
	if err != nil {
		return nil, fmt.Errorf("list role holders: %w", err)
	}
	ids := make([]int64, 0, len(holders))
	for _, u := range holders {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (s *approverServiceImpl) resolveCustomGroup(ctx context.Context, node *entity.WorkflowNode, request *entity.Reimbursement) ([]int64, error) {
	if node.CustomTypeName == nil || *node.CustomTypeName == "" {
		return nil, fmt.Errorf("%w: custom_group node %d has no group name", entity.ErrConfiguration, node.ID)
	}
	members, err := s.approvers.ListByGroup(ctx, *node.CustomTypeName)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: node %d references unknown approval group %q", entity.ErrConfiguration, node.ID, *node.CustomTypeName)
	}

	// Each member is independently constrained; a group whose every member
	// is filtered out yields a valid empty set.
	var ids []int64
	for _, m := range members {
		if !m.IsActive {
			continue
		}
		if !m.EligibleForAmount(request.TotalAmount) {
			continue
		}
		if !m.EligibleForDepartment(request.DepartmentID) {
			continue
		}
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (s *approverServiceImpl) resolveDepartmentManager(ctx context.Context, request *entity.Reimbursement) ([]int64, error) {
	manager, err := s.users.GetDepartmentManager(ctx, request.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("load department manager: %w", err)
	}
	if manager == nil {
		// No manager configured is not an error; can_skip nodes rely on
		// the empty set to auto-advance.
		return nil, nil
	}
	return []int64{manager.ID}, nil
}

// applyDelegates substitutes time-bounded delegates into the resolved set.
// The delegate replaces the original approver, never joins them; each
// assignment keeps the original approver as its principal.
func (s *approverServiceImpl) applyDelegates(ctx context.Context, ids []int64, asOf time.Time) ([]NodeAssignment, error) {
	assignments := make([]NodeAssignment, 0, len(ids))
	if len(ids) == 0 {
		return assignments, nil
	}
	rows, err := s.approvers.ListActiveByUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list delegations: %w", err)
	}

	delegates := make(map[int64]int64, len(rows))
	for _, row := range rows {
		if row.DelegateActiveAt(asOf) {
			if _, ok := delegates[row.UserID]; !ok {
				delegates[row.UserID] = *row.DelegateUserID
			}
		}
	}

	for _, id := range ids {
		if sub, ok := delegates[id]; ok {
			assignments = append(assignments, NodeAssignment{ActorID: sub, PrincipalID: id})
		} else {
			assignments = append(assignments, NodeAssignment{ActorID: id, PrincipalID: id})
		}
	}
	return assignments, nil
}

// dedupeAssignments sorts by actor then principal and removes exact
// duplicate pairs. Distinct principals delegating to the same actor stay
// as separate assignments so each keeps its own ledger slot.
func dedupeAssignments(in []NodeAssignment) []NodeAssignment {
	sort.Slice(in, func(i, j int) bool {
		if in[i].ActorID != in[j].ActorID {
			return in[i].ActorID < in[j].ActorID
		}
		return in[i].PrincipalID < in[j].PrincipalID
	})
	out := in[:0]
	for i, a := range in {
		if i > 0 && a == in[i-1] {
			continue
		}
		out = append(out, a)
	}
	return out
}

// containsID reports whether id is present in the sorted set.
func containsID(ids []int64, id int64) bool {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	return i < len(ids) && ids[i] == id
}

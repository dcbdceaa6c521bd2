package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
	"github.com/linkoffice/oa-approval/internal/infrastructure/persistence/sqlite"
)

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

// ListActive returns active workflows in ascending id order, the stable
// order the selector's first-match rule depends on
func (r *WorkflowRepository) ListActive(ctx context.Context) ([]*entity.ApprovalWorkflow, error) {
	query := `
		SELECT id, name, status, is_default, conditions
		FROM approval_workflows
		WHERE status = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, entity.WorkflowStatusActive)
	if err != nil {
		r.logger.Error("Failed to list workflows", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*entity.ApprovalWorkflow
	for rows.Next() {
		var (
			wf             entity.ApprovalWorkflow
			conditionsJSON sql.NullString
		)
		if err := rows.Scan(&wf.ID, &wf.Name, &wf.Status, &wf.IsDefault, &conditionsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		if conditionsJSON.Valid && conditionsJSON.String != "" {
			if err := json.Unmarshal([]byte(conditionsJSON.String), &wf.Conditions); err != nil {
				return nil, fmt.Errorf("failed to decode conditions of workflow %d: %w", wf.ID, err)
			}
		}
		workflows = append(workflows, &wf)
	}
	return workflows, rows.Err()
}

const nodeColumns = `
	id, workflow_id, order_num, node_name, approver_type,
	role_id, approver_id, custom_type_name, approval_mode, can_skip
`

// GetNode retrieves a node by id, (nil, nil) when absent
func (r *WorkflowRepository) GetNode(ctx context.Context, nodeID int64) (*entity.WorkflowNode, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_workflow_nodes WHERE id = ?`, nodeColumns)

	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, nodeID)
	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get node", zap.Int64("node_id", nodeID), zap.Error(err))
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return node, nil
}

// ListNodes returns the workflow's nodes in chain order
func (r *WorkflowRepository) ListNodes(ctx context.Context, workflowID int64) ([]*entity.WorkflowNode, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM approval_workflow_nodes
		WHERE workflow_id = ?
		ORDER BY order_num ASC
	`, nodeColumns)

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, workflowID)
	if err != nil {
		r.logger.Error("Failed to list nodes", zap.Int64("workflow_id", workflowID), zap.Error(err))
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*entity.WorkflowNode
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (*entity.WorkflowNode, error) {
	var (
		node           entity.WorkflowNode
		approverType   string
		approvalMode   string
		roleID         sql.NullInt64
		approverID     sql.NullInt64
		customTypeName sql.NullString
	)
	if err := row.Scan(
		&node.ID,
		&node.WorkflowID,
		&node.OrderNum,
		&node.NodeName,
		&approverType,
		&roleID,
		&approverID,
		&customTypeName,
		&approvalMode,
		&node.CanSkip,
	); err != nil {
		return nil, err
	}

	node.ApproverType = entity.ApproverType(approverType)
	node.ApprovalMode = entity.ApprovalMode(approvalMode)
	if roleID.Valid {
		node.RoleID = &roleID.Int64
	}
	if approverID.Valid {
		node.ApproverID = &approverID.Int64
	}
	if customTypeName.Valid && customTypeName.String != "" {
		node.CustomTypeName = &customTypeName.String
	}
	return &node, nil
}

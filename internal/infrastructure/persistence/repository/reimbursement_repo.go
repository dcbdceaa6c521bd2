package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
	"github.com/linkoffice/oa-approval/internal/infrastructure/persistence/sqlite"
)

// ReimbursementRepository implements port.ReimbursementRepository.
// Mutations are guarded updates: the WHERE clause re-checks the observed
// status and current node, so at most one concurrent actor wins a
// transition.
type ReimbursementRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReimbursementRepository creates a new reimbursement repository
func NewReimbursementRepository(db *sql.DB, logger *zap.Logger) port.ReimbursementRepository {
	return &ReimbursementRepository{
		db:     db,
		logger: logger,
	}
}

const reimbursementColumns = `
	id, reimbursement_no, submitter_id, department_id, title, total_amount,
	status, workflow_id, current_node_id, created_at, submitted_at, completed_at
`

// GetByID retrieves a reimbursement by id, (nil, nil) when absent
func (r *ReimbursementRepository) GetByID(ctx context.Context, id int64) (*entity.Reimbursement, error) {
	query := fmt.Sprintf(`SELECT %s FROM reimbursements WHERE id = ?`, reimbursementColumns)

	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id)
	req, err := scanReimbursement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get reimbursement", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get reimbursement: %w", err)
	}
	return req, nil
}

// ListApproving returns in-flight requests, newest submission first
func (r *ReimbursementRepository) ListApproving(ctx context.Context) ([]*entity.Reimbursement, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM reimbursements
		WHERE status = ?
		ORDER BY submitted_at DESC, id DESC
	`, reimbursementColumns)

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, entity.RequestStatusApproving)
	if err != nil {
		r.logger.Error("Failed to list approving reimbursements", zap.Error(err))
		return nil, fmt.Errorf("failed to list reimbursements: %w", err)
	}
	defer rows.Close()

	var requests []*entity.Reimbursement
	for rows.Next() {
		req, err := scanReimbursement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reimbursement: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// MarkSubmitted routes a draft/pending request into its first node
func (r *ReimbursementRepository) MarkSubmitted(ctx context.Context, id, workflowID, nodeID int64, at time.Time) (bool, error) {
	query := `
		UPDATE reimbursements
		SET status = ?, workflow_id = ?, current_node_id = ?, submitted_at = ?
		WHERE id = ? AND status IN (?, ?)
	`
	return r.guardedExec(ctx, query,
		entity.RequestStatusApproving, workflowID, nodeID, at,
		id, entity.RequestStatusDraft, entity.RequestStatusPending)
}

// MarkApprovedOnSubmit finalizes a request whose every node skipped
func (r *ReimbursementRepository) MarkApprovedOnSubmit(ctx context.Context, id, workflowID int64, at time.Time) (bool, error) {
	query := `
		UPDATE reimbursements
		SET status = ?, workflow_id = ?, current_node_id = NULL, submitted_at = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?)
	`
	return r.guardedExec(ctx, query,
		entity.RequestStatusApproved, workflowID, at, at,
		id, entity.RequestStatusDraft, entity.RequestStatusPending)
}

// AdvanceNode moves the current node pointer forward
func (r *ReimbursementRepository) AdvanceNode(ctx context.Context, id, fromNodeID, toNodeID int64) (bool, error) {
	query := `
		UPDATE reimbursements
		SET current_node_id = ?
		WHERE id = ? AND status = ? AND current_node_id = ?
	`
	return r.guardedExec(ctx, query,
		toNodeID, id, entity.RequestStatusApproving, fromNodeID)
}

// Finalize moves an approving request to a terminal status
func (r *ReimbursementRepository) Finalize(ctx context.Context, id, fromNodeID int64, status string, at time.Time) (bool, error) {
	query := `
		UPDATE reimbursements
		SET status = ?, current_node_id = NULL, completed_at = ?
		WHERE id = ? AND status = ? AND current_node_id = ?
	`
	return r.guardedExec(ctx, query,
		status, at, id, entity.RequestStatusApproving, fromNodeID)
}

// ReturnToDraft clears routing so the submitter may edit and resubmit
func (r *ReimbursementRepository) ReturnToDraft(ctx context.Context, id, fromNodeID int64) (bool, error) {
	query := `
		UPDATE reimbursements
		SET status = ?, current_node_id = NULL, workflow_id = NULL, submitted_at = NULL
		WHERE id = ? AND status = ? AND current_node_id = ?
	`
	return r.guardedExec(ctx, query,
		entity.RequestStatusDraft, id, entity.RequestStatusApproving, fromNodeID)
}

// Cancel terminates a request that has not yet been routed
func (r *ReimbursementRepository) Cancel(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE reimbursements
		SET status = ?
		WHERE id = ? AND status IN (?, ?)
	`
	return r.guardedExec(ctx, query,
		entity.RequestStatusCancelled, id, entity.RequestStatusDraft, entity.RequestStatusPending)
}

func (r *ReimbursementRepository) guardedExec(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Guarded update failed", zap.Error(err))
		return false, fmt.Errorf("failed to update reimbursement: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

func scanReimbursement(row rowScanner) (*entity.Reimbursement, error) {
	var (
		req         entity.Reimbursement
		workflowID  sql.NullInt64
		nodeID      sql.NullInt64
		submittedAt sql.NullTime
		completedAt sql.NullTime
	)
	if err := row.Scan(
		&req.ID,
		&req.ReimbursementNo,
		&req.SubmitterID,
		&req.DepartmentID,
		&req.Title,
		&req.TotalAmount,
		&req.Status,
		&workflowID,
		&nodeID,
		&req.CreatedAt,
		&submittedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	if workflowID.Valid {
		req.WorkflowID = &workflowID.Int64
	}
	if nodeID.Valid {
		req.CurrentNodeID = &nodeID.Int64
	}
	if submittedAt.Valid {
		req.SubmittedAt = &submittedAt.Time
	}
	if completedAt.Valid {
		req.CompletedAt = &completedAt.Time
	}
	return &req, nil
}

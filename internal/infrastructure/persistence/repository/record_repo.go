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

// RecordRepository implements port.RecordRepository
type RecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *sql.DB, logger *zap.Logger) port.RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history record
func (r *RecordRepository) Create(ctx context.Context, record *entity.ApprovalRecord) error {
	query := `
		INSERT INTO approval_records (
			reimbursement_id, node_id, node_order, approver_id, action, opinion, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		record.ReimbursementID,
		record.NodeID,
		record.NodeOrder,
		record.ApproverID,
		record.Action,
		record.Opinion,
		record.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval record", zap.Error(err))
		return fmt.Errorf("failed to create approval record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	record.ID = id
	return nil
}

// ListByReimbursement returns the request's history, oldest first
func (r *RecordRepository) ListByReimbursement(ctx context.Context, reimbursementID int64) ([]*entity.ApprovalRecord, error) {
	query := `
		SELECT id, reimbursement_id, node_id, node_order, approver_id, action, opinion, created_at
		FROM approval_records
		WHERE reimbursement_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, reimbursementID)
	if err != nil {
		r.logger.Error("Failed to list approval records",
			zap.Int64("reimbursement_id", reimbursementID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approval records: %w", err)
	}
	defer rows.Close()

	var records []*entity.ApprovalRecord
	for rows.Next() {
		var record entity.ApprovalRecord
		if err := rows.Scan(
			&record.ID,
			&record.ReimbursementID,
			&record.NodeID,
			&record.NodeOrder,
			&record.ApproverID,
			&record.Action,
			&record.Opinion,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan approval record: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// SnapshotNodeApprovals seeds one pending acknowledgment per approver
func (r *RecordRepository) SnapshotNodeApprovals(ctx context.Context, reimbursementID, nodeID int64, approverIDs []int64) error {
	query := `
		INSERT INTO node_approvals (reimbursement_id, node_id, approver_id)
		VALUES (?, ?, ?)
	`
	for _, approverID := range approverIDs {
		if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
			reimbursementID, nodeID, approverID); err != nil {
			r.logger.Error("Failed to snapshot node approval",
				zap.Int64("reimbursement_id", reimbursementID),
				zap.Int64("node_id", nodeID), zap.Error(err))
			return fmt.Errorf("failed to snapshot node approvals: %w", err)
		}
	}
	return nil
}

// Acknowledge marks the actor's pending acknowledgment
func (r *RecordRepository) Acknowledge(ctx context.Context, reimbursementID, nodeID, approverID int64, at time.Time) (bool, error) {
	query := `
		UPDATE node_approvals
		SET approved_at = ?
		WHERE reimbursement_id = ? AND node_id = ? AND approver_id = ? AND approved_at IS NULL
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		at, reimbursementID, nodeID, approverID)
	if err != nil {
		r.logger.Error("Failed to acknowledge node approval", zap.Error(err))
		return false, fmt.Errorf("failed to acknowledge node approval: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

// CountPending returns the number of outstanding acknowledgments
func (r *RecordRepository) CountPending(ctx context.Context, reimbursementID, nodeID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM node_approvals
		WHERE reimbursement_id = ? AND node_id = ? AND approved_at IS NULL
	`

	var count int
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, reimbursementID, nodeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending approvals: %w", err)
	}
	return count, nil
}

// ClearNodeApprovals removes every acknowledgment row for a request,
// signed ones included. Re-entering a node after a return reseeds the
// ledger from scratch.
func (r *RecordRepository) ClearNodeApprovals(ctx context.Context, reimbursementID int64) error {
	query := `
		DELETE FROM node_approvals
		WHERE reimbursement_id = ?
	`

	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, reimbursementID); err != nil {
		r.logger.Error("Failed to clear node approvals",
			zap.Int64("reimbursement_id", reimbursementID), zap.Error(err))
		return fmt.Errorf("failed to clear node approvals: %w", err)
	}
	return nil
}

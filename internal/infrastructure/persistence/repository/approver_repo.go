package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
	"github.com/linkoffice/oa-approval/internal/infrastructure/persistence/sqlite"
)

// ApproverRepository implements port.ApproverRepository
type ApproverRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApproverRepository creates a new approver repository
func NewApproverRepository(db *sql.DB, logger *zap.Logger) port.ApproverRepository {
	return &ApproverRepository{
		db:     db,
		logger: logger,
	}
}

const approverColumns = `
	id, approver_type_label, user_id, amount_limit, department_scope,
	is_active, delegate_user_id, delegate_start_date, delegate_end_date
`

// ListByGroup returns every membership row of the named group
func (r *ApproverRepository) ListByGroup(ctx context.Context, groupName string) ([]*entity.Approver, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM approvers
		WHERE approver_type_label = ?
		ORDER BY id
	`, approverColumns)

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, groupName)
	if err != nil {
		r.logger.Error("Failed to list approvers by group",
			zap.String("group", groupName), zap.Error(err))
		return nil, fmt.Errorf("failed to list approvers: %w", err)
	}
	defer rows.Close()

	return scanApprovers(rows)
}

// ListActiveByUsers returns active rows for any of the given users
func (r *ApproverRepository) ListActiveByUsers(ctx context.Context, userIDs []int64) ([]*entity.Approver, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIDs)), ",")
	query := fmt.Sprintf(`
		SELECT %s
		FROM approvers
		WHERE user_id IN (%s) AND is_active = 1
		ORDER BY id
	`, approverColumns, placeholders)

	args := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list approvers by users", zap.Error(err))
		return nil, fmt.Errorf("failed to list approvers: %w", err)
	}
	defer rows.Close()

	return scanApprovers(rows)
}

func scanApprovers(rows *sql.Rows) ([]*entity.Approver, error) {
	var approvers []*entity.Approver
	for rows.Next() {
		var (
			a              entity.Approver
			amountLimit    sql.NullFloat64
			scopeJSON      sql.NullString
			delegateUserID sql.NullInt64
			delegateStart  sql.NullTime
			delegateEnd    sql.NullTime
		)
		if err := rows.Scan(
			&a.ID,
			&a.GroupName,
			&a.UserID,
			&amountLimit,
			&scopeJSON,
			&a.IsActive,
			&delegateUserID,
			&delegateStart,
			&delegateEnd,
		); err != nil {
			return nil, fmt.Errorf("failed to scan approver: %w", err)
		}

		if amountLimit.Valid {
			a.AmountLimit = &amountLimit.Float64
		}
		if scopeJSON.Valid && scopeJSON.String != "" {
			if err := json.Unmarshal([]byte(scopeJSON.String), &a.DepartmentScope); err != nil {
				return nil, fmt.Errorf("failed to decode department scope of approver %d: %w", a.ID, err)
			}
		}
		if delegateUserID.Valid {
			a.DelegateUserID = &delegateUserID.Int64
		}
		if delegateStart.Valid {
			t := delegateStart.Time
			a.DelegateStart = &t
		}
		if delegateEnd.Valid {
			t := delegateEnd.Time
			a.DelegateEnd = &t
		}

		approvers = append(approvers, &a)
	}
	return approvers, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
	"github.com/linkoffice/oa-approval/internal/infrastructure/persistence/sqlite"
)

// DepartmentRepository implements port.DepartmentRepository
type DepartmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDepartmentRepository creates a new department repository
func NewDepartmentRepository(db *sql.DB, logger *zap.Logger) port.DepartmentRepository {
	return &DepartmentRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a department by id, (nil, nil) when absent
func (r *DepartmentRepository) GetByID(ctx context.Context, id int64) (*entity.Department, error) {
	query := `SELECT id, name, status FROM departments WHERE id = ?`

	var dept entity.Department
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&dept.ID,
		&dept.Name,
		&dept.Status,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get department", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return &dept, nil
}

// ListUserGrants returns departments personally granted to the user
func (r *DepartmentRepository) ListUserGrants(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT ud.department_id
		FROM user_departments ud
		WHERE ud.user_id = ?
		ORDER BY ud.department_id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list user department grants",
			zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list user grants: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// ListRoleGrants returns departments granted through any of the roles
func (r *DepartmentRepository) ListRoleGrants(ctx context.Context, roleIDs []int64) ([]int64, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(roleIDs)), ",")
	query := fmt.Sprintf(`
		SELECT DISTINCT rd.department_id
		FROM role_departments rd
		WHERE rd.role_id IN (%s)
		ORDER BY rd.department_id
	`, placeholders)

	args := make([]interface{}, len(roleIDs))
	for i, id := range roleIDs {
		args[i] = id
	}

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list role department grants", zap.Error(err))
		return nil, fmt.Errorf("failed to list role grants: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
	"github.com/linkoffice/oa-approval/internal/infrastructure/persistence/sqlite"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a user by id, (nil, nil) when absent
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `
		SELECT id, username, real_name, department_id, is_department_manager, status
		FROM users
		WHERE id = ?
	`

	var user entity.User
	var departmentID sql.NullInt64

	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.RealName,
		&departmentID,
		&user.IsDepartmentManager,
		&user.Status,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if departmentID.Valid {
		user.DepartmentID = &departmentID.Int64
	}
	return &user, nil
}

// ListRoles returns the roles attached to a user
func (r *UserRepository) ListRoles(ctx context.Context, userID int64) ([]entity.Role, error) {
	query := `
		SELECT r.id, r.name
		FROM roles r
		INNER JOIN user_roles ur ON r.id = ur.role_id
		WHERE ur.user_id = ?
		ORDER BY r.id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list roles", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []entity.Role
	for rows.Next() {
		var role entity.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// RoleExists reports whether the role id is configured
func (r *UserRepository) RoleExists(ctx context.Context, roleID int64) (bool, error) {
	var count int
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM roles WHERE id = ?", roleID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return count > 0, nil
}

// ListActiveByRole returns active users holding the role
func (r *UserRepository) ListActiveByRole(ctx context.Context, roleID int64) ([]*entity.User, error) {
	query := `
		SELECT u.id, u.username, u.real_name, u.department_id, u.is_department_manager, u.status
		FROM users u
		INNER JOIN user_roles ur ON u.id = ur.user_id
		WHERE ur.role_id = ? AND u.status = ?
		ORDER BY u.id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, roleID, entity.UserStatusActive)
	if err != nil {
		r.logger.Error("Failed to list users by role", zap.Int64("role_id", roleID), zap.Error(err))
		return nil, fmt.Errorf("failed to list users by role: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// GetDepartmentManager returns the active manager of the department,
// (nil, nil) when none is configured
func (r *UserRepository) GetDepartmentManager(ctx context.Context, departmentID int64) (*entity.User, error) {
	query := `
		SELECT id, username, real_name, department_id, is_department_manager, status
		FROM users
		WHERE department_id = ? AND is_department_manager = 1 AND status = ?
		ORDER BY id
		LIMIT 1
	`

	var user entity.User
	var deptID sql.NullInt64

	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, departmentID, entity.UserStatusActive).Scan(
		&user.ID,
		&user.Username,
		&user.RealName,
		&deptID,
		&user.IsDepartmentManager,
		&user.Status,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get department manager",
			zap.Int64("department_id", departmentID), zap.Error(err))
		return nil, fmt.Errorf("failed to get department manager: %w", err)
	}

	if deptID.Valid {
		user.DepartmentID = &deptID.Int64
	}
	return &user, nil
}

func scanUsers(rows *sql.Rows) ([]*entity.User, error) {
	var users []*entity.User
	for rows.Next() {
		var user entity.User
		var deptID sql.NullInt64
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.RealName,
			&deptID,
			&user.IsDepartmentManager,
			&user.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if deptID.Valid {
			user.DepartmentID = &deptID.Int64
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

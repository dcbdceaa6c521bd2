package entity

// User represents an account in the host platform. Identity issuance is
// external; the approval core treats the id as an opaque key.
type User struct {
	ID                  int64  `json:"id"`
	Username            string `json:"username"`
	RealName            string `json:"real_name"`
	DepartmentID        *int64 `json:"department_id,omitempty"`
	IsDepartmentManager bool   `json:"is_department_manager"`
	Status              string `json:"status"`
}

// Role represents a named role attached to users via user_roles.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Department represents a flat (non-nested) organizational unit.
type Department struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// User and department status values
const (
	UserStatusActive       = "active"
	DepartmentStatusActive = "active"
	DepartmentStatusDeleted = "deleted"
)

// SuperAdminRoleName marks the role whose holders bypass department
// visibility restrictions entirely.
const SuperAdminRoleName = "超级管理员"

// UserPermissions is the derived, cached visibility profile for a user.
// It is never persisted to the relational store.
type UserPermissions struct {
	UserID                int64   `json:"user_id"`
	Username              string  `json:"username"`
	DepartmentID          *int64  `json:"department_id,omitempty"`
	ViewableDepartmentIDs []int64 `json:"viewable_department_ids"`
	CanViewAllDepartments bool    `json:"can_view_all_departments"`
	Roles                 []Role  `json:"roles"`
}

// HasRole reports whether the user holds any of the given role ids.
func (p *UserPermissions) HasRole(roleIDs ...int64) bool {
	for _, want := range roleIDs {
		for _, r := range p.Roles {
			if r.ID == want {
				return true
			}
		}
	}
	return false
}

// RoleIDs returns the ids of all roles held by the user.
func (p *UserPermissions) RoleIDs() []int64 {
	ids := make([]int64, 0, len(p.Roles))
	for _, r := range p.Roles {
		ids = append(ids, r.ID)
	}
	return ids
}

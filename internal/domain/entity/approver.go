package entity

import "time"

// Approver is one membership row of a named special approval group
// (for example "区域经理"). Many rows may share the same GroupName; a
// custom_group node referencing that name resolves to the active members,
// each independently constrained by amount ceiling and department scope.
type Approver struct {
	ID              int64      `json:"id"`
	GroupName       string     `json:"group_name"`
	UserID          int64      `json:"user_id"`
	AmountLimit     *float64   `json:"amount_limit,omitempty"`
	DepartmentScope []int64    `json:"department_scope,omitempty"`
	IsActive        bool       `json:"is_active"`
	DelegateUserID  *int64     `json:"delegate_user_id,omitempty"`
	DelegateStart   *time.Time `json:"delegate_start_date,omitempty"`
	DelegateEnd     *time.Time `json:"delegate_end_date,omitempty"`
}

// EligibleForAmount reports whether this member may act on a request of
// the given amount. A nil limit means unrestricted.
func (a *Approver) EligibleForAmount(amount float64) bool {
	return a.AmountLimit == nil || amount <= *a.AmountLimit
}

// EligibleForDepartment reports whether this member may act on a request
// from the given department. An empty scope means unrestricted.
func (a *Approver) EligibleForDepartment(departmentID int64) bool {
	if len(a.DepartmentScope) == 0 {
		return true
	}
	for _, id := range a.DepartmentScope {
		if id == departmentID {
			return true
		}
	}
	return false
}

// DelegateActiveAt reports whether the delegate substitution window covers
// the given date (inclusive on both ends).
func (a *Approver) DelegateActiveAt(asOf time.Time) bool {
	if a.DelegateUserID == nil || a.DelegateStart == nil || a.DelegateEnd == nil {
		return false
	}
	day := asOf.Truncate(24 * time.Hour)
	start := a.DelegateStart.Truncate(24 * time.Hour)
	end := a.DelegateEnd.Truncate(24 * time.Hour)
	return !day.Before(start) && !day.After(end)
}

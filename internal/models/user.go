package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleEmployee UserRole = "EMPLOYEE"
)

// User represents an application account stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	EmployeeID   *string    `db:"employee_id" json:"employee_id,omitempty"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Employee holds the HR profile an account may be linked to.
type Employee struct {
	ID           string  `db:"id" json:"id"`
	No           string  `db:"no" json:"no"`
	EmailAddress string  `db:"email_address" json:"email_address"`
	ChineseName  string  `db:"chinese_name" json:"chinese_name"`
	PhoneNumber  string  `db:"phone_number" json:"phone_number"`
	PointBalance float64 `db:"point_balance" json:"point_balance"`
}

// UserWithEmployee joins a user with its optional employee profile.
// Profile columns are nullable because not every account is linked to HR data.
type UserWithEmployee struct {
	User
	EmployeeNo     *string  `db:"employee_no" json:"employee_no,omitempty"`
	EmployeeEmail  *string  `db:"employee_email" json:"employee_email,omitempty"`
	EmployeeName   *string  `db:"employee_name" json:"employee_name,omitempty"`
	EmployeePhone  *string  `db:"employee_phone" json:"employee_phone,omitempty"`
	EmployeePoints *float64 `db:"employee_points" json:"employee_points,omitempty"`
}

// Profile returns the linked employee profile. The second return value is
// false when the account has no HR profile, in which case callers must fall
// back to account-level identity (username as email).
func (u *UserWithEmployee) Profile() (Employee, bool) {
	if u == nil || u.EmployeeNo == nil {
		return Employee{}, false
	}
	emp := Employee{No: *u.EmployeeNo}
	if u.EmployeeID != nil {
		emp.ID = *u.EmployeeID
	}
	if u.EmployeeEmail != nil {
		emp.EmailAddress = *u.EmployeeEmail
	}
	if u.EmployeeName != nil {
		emp.ChineseName = *u.EmployeeName
	}
	if u.EmployeePhone != nil {
		emp.PhoneNumber = *u.EmployeePhone
	}
	if u.EmployeePoints != nil {
		emp.PointBalance = *u.EmployeePoints
	}
	return emp, true
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

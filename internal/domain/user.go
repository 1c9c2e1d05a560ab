package domain

import "time"

// UserRole enumerates platform roles.
type UserRole string

const (
	UserRoleEmployee   UserRole = "employee"
	UserRoleManager    UserRole = "manager"
	UserRoleAdmin      UserRole = "admin"
	UserRoleSuperAdmin UserRole = "super-admin"
)

// User models a tenant member. ManagerID is self-referential and forms
// the escalation hierarchy; it is not guaranteed acyclic at the data
// level, so walkers must guard against cycles.
type User struct {
	ID                 string
	TenantID           *string
	ManagerID          *string
	CategoryID         *int64
	Username           string
	Email              string
	FirstName          string
	LastName           string
	PasswordHash       string
	Role               UserRole
	IsActive           bool
	IsAcceptingTickets bool
	Capacity           int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FullName concatenates first and last name for notification text.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

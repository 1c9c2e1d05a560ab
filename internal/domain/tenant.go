package domain

import "time"

// Tenant is an isolated customer organization.
type Tenant struct {
	ID        string
	Name      string
	Slug      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category is a tenant-scoped ticket classification; agents can be
// pinned to one.
type Category struct {
	ID        int64
	TenantID  string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

package domain

import "time"

// TenantStatus represents the lifecycle state of a tenant account.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

// Tenant represents an isolated customer organization owning contacts,
// conversations and integration hooks.
type Tenant struct {
	ID         int64        `json:"id" bson:"id"`
	Name       string       `json:"name" bson:"name"`
	Status     TenantStatus `json:"status" bson:"status"`
	AdminEmail string       `json:"admin_email" bson:"admin_email"`
	CreatedAt  time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" bson:"updated_at"`
}

// Active reports whether the tenant may receive compliance work.
func (t *Tenant) Active() bool {
	return t != nil && t.Status == TenantStatusActive
}

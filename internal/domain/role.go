package domain

import "time"

// PermissionWildcard grants every action.
const PermissionWildcard = "*"

// Role is a named set of action permissions. Roles are assigned per
// (user, tenant) pair; a user may hold different roles in different
// tenants.
type Role struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Allows reports whether the role permits the action, either by the
// action literal or the wildcard.
func (r *Role) Allows(action string) bool {
	if r == nil {
		return false
	}
	for _, p := range r.Permissions {
		if p == PermissionWildcard || p == action {
			return true
		}
	}
	return false
}

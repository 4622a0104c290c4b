package domain

import "testing"

func TestRoleAllows(t *testing.T) {
	tests := []struct {
		name   string
		perms  []string
		action string
		want   bool
	}{
		{"literal match", []string{"render:create", "render:read"}, "render:create", true},
		{"literal miss", []string{"render:read"}, "render:create", false},
		{"wildcard matches anything", []string{"*"}, "model:delete", true},
		{"wildcard among literals", []string{"render:read", "*"}, "drawing:read", true},
		{"empty permission set", nil, "render:create", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Role{ID: "role-001", Name: "test", Permissions: tt.perms}
			if got := r.Allows(tt.action); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.action, got, tt.want)
			}
		})
	}
}

func TestRoleAllows_NilRole(t *testing.T) {
	var r *Role
	if r.Allows("render:create") {
		t.Error("nil role must not allow any action")
	}
}

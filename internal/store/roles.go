package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/archvision/entgate/internal/domain"
)

func (s *PostgresStore) UpsertRole(ctx context.Context, role *domain.Role) (*domain.Role, error) {
	if role == nil {
		return nil, fmt.Errorf("role is required")
	}
	name := strings.TrimSpace(role.Name)
	if name == "" {
		return nil, fmt.Errorf("role name is required")
	}
	if err := domain.ValidateTenantID(role.TenantID); err != nil {
		return nil, err
	}
	if len(role.Permissions) == 0 {
		return nil, fmt.Errorf("role permissions are required")
	}
	id := strings.TrimSpace(role.ID)
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO roles (id, tenant_id, name, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (tenant_id, name)
		DO UPDATE SET permissions = EXCLUDED.permissions, updated_at = NOW()
	`, id, role.TenantID, name, role.Permissions)
	if err != nil {
		return nil, fmt.Errorf("upsert role: %w", err)
	}

	var r domain.Role
	err = s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, permissions, created_at, updated_at
		FROM roles WHERE tenant_id = $1 AND name = $2
	`, role.TenantID, name).Scan(&r.ID, &r.TenantID, &r.Name, &r.Permissions, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListRoles(ctx context.Context, tenantID string) ([]*domain.Role, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, name, permissions, created_at, updated_at
		FROM roles
		WHERE tenant_id = $1
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]*domain.Role, 0)
	for rows.Next() {
		var r domain.Role
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &r.Permissions, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, &r)
	}
	return roles, rows.Err()
}

// AssignRole binds the user to a role. The role must belong to the
// target tenant: honoring another tenant's role here would leak its
// permission set across the tenant boundary.
func (s *PostgresStore) AssignRole(ctx context.Context, userID, tenantID, roleID string) error {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return fmt.Errorf("user id is required")
	}

	var roleTenant string
	err := s.pool.QueryRow(ctx, `
		SELECT tenant_id FROM roles WHERE id = $1
	`, roleID).Scan(&roleTenant)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("role %s: %w", roleID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get role: %w", err)
	}
	if roleTenant != tenantID {
		return fmt.Errorf("role %s belongs to tenant %s, not %s", roleID, roleTenant, tenantID)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO role_assignments (tenant_id, user_id, role_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, user_id)
		DO UPDATE SET role_id = EXCLUDED.role_id, created_at = NOW()
	`, tenantID, uid, roleID)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func (s *PostgresStore) UnassignRole(ctx context.Context, userID, tenantID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM role_assignments WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID)
	if err != nil {
		return fmt.Errorf("unassign role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role assignment %s/%s: %w", tenantID, userID, ErrNotFound)
	}
	return nil
}

// GetUserRole resolves the role a user holds in the tenant.
func (s *PostgresStore) GetUserRole(ctx context.Context, userID, tenantID string) (*domain.Role, error) {
	var r domain.Role
	err := s.pool.QueryRow(ctx, `
		SELECT r.id, r.tenant_id, r.name, r.permissions, r.created_at, r.updated_at
		FROM role_assignments a
		JOIN roles r ON r.id = a.role_id AND r.tenant_id = a.tenant_id
		WHERE a.tenant_id = $1 AND a.user_id = $2
	`, tenantID, userID).Scan(&r.ID, &r.TenantID, &r.Name, &r.Permissions, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("role assignment %s/%s: %w", tenantID, userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user role: %w", err)
	}
	return &r, nil
}

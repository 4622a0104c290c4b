package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/archvision/entgate/internal/domain"
)

func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, error) {
	if tenant == nil {
		return nil, fmt.Errorf("tenant is required")
	}
	if err := domain.ValidateTenantID(tenant.ID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(tenant.Name)
	if name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}
	status := tenant.Status
	if status == "" {
		status = domain.TenantActive
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid tenant status: %s", status)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenants (id, name, display_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, tenant.ID, name, tenant.DisplayType, status)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "duplicate key") {
			return nil, fmt.Errorf("tenant already exists: %s", tenant.ID)
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return s.GetTenant(ctx, tenant.ID)
}

func (s *PostgresStore) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	var t domain.Tenant
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, display_type, status, created_at, updated_at
		FROM tenants WHERE id = $1
	`, tenantID).Scan(&t.ID, &t.Name, &t.DisplayType, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) ListTenants(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, display_type, status, created_at, updated_at
		FROM tenants
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	tenants := make([]*domain.Tenant, 0)
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.DisplayType, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tenants rows: %w", err)
	}
	return tenants, nil
}

func (s *PostgresStore) UpdateTenant(ctx context.Context, tenantID string, update *TenantUpdate) (*domain.Tenant, error) {
	if update == nil {
		return s.GetTenant(ctx, tenantID)
	}
	if update.Status != nil && !update.Status.IsValid() {
		return nil, fmt.Errorf("invalid tenant status: %s", *update.Status)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE tenants SET
			name = COALESCE($2, name),
			display_type = COALESCE($3, display_type),
			status = COALESCE($4, status),
			updated_at = NOW()
		WHERE id = $1
	`, tenantID, update.Name, update.DisplayType, update.Status)
	if err != nil {
		return nil, fmt.Errorf("update tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}
	return s.GetTenant(ctx, tenantID)
}

// GetTenantProduct returns the activation record joined with the
// owning tenant's status, assembling the quota map from the ledger.
func (s *PostgresStore) GetTenantProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	var tp domain.TenantProduct
	err := s.pool.QueryRow(ctx, `
		SELECT p.tenant_id, p.product_code, p.enabled, p.features, p.services, p.enabled_at, t.status
		FROM tenant_products p
		JOIN tenants t ON t.id = p.tenant_id
		WHERE p.tenant_id = $1 AND p.product_code = $2
	`, tenantID, productCode).Scan(
		&tp.TenantID,
		&tp.ProductCode,
		&tp.Enabled,
		&tp.Features,
		&tp.Services,
		&tp.EnabledAt,
		&tp.TenantStatus,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenant product %s/%s: %w", tenantID, productCode, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant product: %w", err)
	}

	quotas, err := s.listQuotas(ctx, tenantID, productCode)
	if err != nil {
		return nil, err
	}
	tp.Quotas = quotas
	return &tp, nil
}

func (s *PostgresStore) EnableProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	code := strings.TrimSpace(productCode)
	if code == "" {
		return nil, fmt.Errorf("product code is required")
	}
	if _, err := s.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_products (tenant_id, product_code, enabled, enabled_at, updated_at)
		VALUES ($1, $2, TRUE, NOW(), NOW())
		ON CONFLICT (tenant_id, product_code)
		DO UPDATE SET enabled = TRUE, updated_at = NOW()
	`, tenantID, code)
	if err != nil {
		return nil, fmt.Errorf("enable product: %w", err)
	}
	return s.GetTenantProduct(ctx, tenantID, code)
}

func (s *PostgresStore) DisableProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tenant_products SET enabled = FALSE, updated_at = NOW()
		WHERE tenant_id = $1 AND product_code = $2
	`, tenantID, productCode)
	if err != nil {
		return nil, fmt.Errorf("disable product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("tenant product %s/%s: %w", tenantID, productCode, ErrNotFound)
	}
	return s.GetTenantProduct(ctx, tenantID, productCode)
}

func (s *PostgresStore) SetFeature(ctx context.Context, tenantID, productCode, featureCode string, granted bool) error {
	return s.setGrantFlag(ctx, "features", tenantID, productCode, featureCode, granted)
}

func (s *PostgresStore) SetService(ctx context.Context, tenantID, productCode, serviceCode string, granted bool) error {
	return s.setGrantFlag(ctx, "services", tenantID, productCode, serviceCode, granted)
}

// setGrantFlag flips one key inside the features/services JSONB map.
// column is always one of the two literal names above, never user input.
func (s *PostgresStore) setGrantFlag(ctx context.Context, column, tenantID, productCode, code string, granted bool) error {
	key := strings.TrimSpace(code)
	if key == "" {
		return fmt.Errorf("entitlement code is required")
	}
	query := fmt.Sprintf(`
		UPDATE tenant_products
		SET %s = jsonb_set(%s, $3, to_jsonb($4::boolean), true), updated_at = NOW()
		WHERE tenant_id = $1 AND product_code = $2
	`, column, column)
	tag, err := s.pool.Exec(ctx, query, tenantID, productCode, []string{key}, granted)
	if err != nil {
		return fmt.Errorf("set %s grant: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenant product %s/%s: %w", tenantID, productCode, ErrNotFound)
	}
	return nil
}

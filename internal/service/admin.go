// Package service implements the administrative operations that shape
// entitlement state: tenant lifecycle, product activation, grant
// management, assets and roles. It validates writes against the
// product catalog before they reach the store and invalidates the
// entitlement read cache after mutations.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/archvision/entgate/internal/catalog"
	"github.com/archvision/entgate/internal/domain"
	"github.com/archvision/entgate/internal/logging"
	"github.com/archvision/entgate/internal/metrics"
	"github.com/archvision/entgate/internal/store"
)

// GrantInvalidator evicts cached read-path entries after a mutation.
// The cached store implements it; a nil invalidator is a no-op.
type GrantInvalidator interface {
	InvalidateTenantProduct(ctx context.Context, tenantID, productCode string) error
	InvalidateUserRole(ctx context.Context, userID, tenantID string) error
}

// AdminService owns all entitlement mutations.
type AdminService struct {
	store       store.Store
	catalog     *catalog.Catalog
	invalidator GrantInvalidator
}

// NewAdminService creates the admin service. invalidator may be nil
// when no read cache is in front of the store.
func NewAdminService(s store.Store, cat *catalog.Catalog, invalidator GrantInvalidator) *AdminService {
	if cat == nil {
		cat = catalog.Default()
	}
	return &AdminService{store: s, catalog: cat, invalidator: invalidator}
}

// ─── Tenants ─────────────────────────────────────────────────────────

type CreateTenantRequest struct {
	ID          string
	Name        string
	DisplayType string
}

// CreateTenant registers a tenant and returns it along with the
// catalog's product suggestions for its display type. The suggestions
// are hints for a UI; nothing is activated automatically.
func (s *AdminService) CreateTenant(ctx context.Context, req CreateTenantRequest) (*domain.Tenant, []string, error) {
	if err := domain.ValidateTenantID(req.ID); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, nil, fmt.Errorf("tenant name is required")
	}

	tenant, err := s.store.CreateTenant(ctx, &domain.Tenant{
		ID:          req.ID,
		Name:        strings.TrimSpace(req.Name),
		DisplayType: req.DisplayType,
		Status:      domain.TenantActive,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create tenant: %w", err)
	}

	logging.Op().Info("tenant created",
		"tenant_id", tenant.ID, "display_type", tenant.DisplayType)
	return tenant, s.catalog.Suggestions(req.DisplayType), nil
}

func (s *AdminService) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	return s.store.GetTenant(ctx, tenantID)
}

func (s *AdminService) ListTenants(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListTenants(ctx, limit, offset)
}

// SetTenantStatus activates or deactivates a tenant. Deactivation
// takes effect on the next evaluation that reads the tenant.
func (s *AdminService) SetTenantStatus(ctx context.Context, tenantID string, status domain.TenantStatus) (*domain.Tenant, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid tenant status: %s", status)
	}
	tenant, err := s.store.UpdateTenant(ctx, tenantID, &store.TenantUpdate{Status: &status})
	if err != nil {
		return nil, err
	}
	s.invalidateTenantProducts(ctx, tenantID)
	logging.Op().Info("tenant status changed",
		"tenant_id", tenantID, "status", string(status))
	return tenant, nil
}

// ─── Products and grants ─────────────────────────────────────────────

// EnableProduct activates a catalog product for a tenant.
func (s *AdminService) EnableProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	if _, ok := s.catalog.Product(productCode); !ok {
		return nil, fmt.Errorf("unknown product: %s", productCode)
	}
	tp, err := s.store.EnableProduct(ctx, tenantID, productCode)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, tenantID, productCode)
	logging.Op().Info("product enabled",
		"tenant_id", tenantID, "product", productCode)
	return tp, nil
}

func (s *AdminService) DisableProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	tp, err := s.store.DisableProduct(ctx, tenantID, productCode)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, tenantID, productCode)
	logging.Op().Info("product disabled",
		"tenant_id", tenantID, "product", productCode)
	return tp, nil
}

// SetFeature grants or revokes a feature entitlement. The feature must
// exist in the catalog under the product.
func (s *AdminService) SetFeature(ctx context.Context, tenantID, productCode, featureCode string, granted bool) error {
	if !s.catalog.HasEntitlement(productCode, featureCode, domain.KindFeature) {
		return fmt.Errorf("product %s has no feature %s", productCode, featureCode)
	}
	if err := s.store.SetFeature(ctx, tenantID, productCode, featureCode, granted); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID, productCode)
	logging.Op().Info("feature grant changed",
		"tenant_id", tenantID, "product", productCode, "feature", featureCode, "granted", granted)
	return nil
}

// SetService grants or revokes a value-added service entitlement.
func (s *AdminService) SetService(ctx context.Context, tenantID, productCode, serviceCode string, granted bool) error {
	if !s.catalog.HasEntitlement(productCode, serviceCode, domain.KindService) {
		return fmt.Errorf("product %s has no service %s", productCode, serviceCode)
	}
	if err := s.store.SetService(ctx, tenantID, productCode, serviceCode, granted); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID, productCode)
	logging.Op().Info("service grant changed",
		"tenant_id", tenantID, "product", productCode, "service", serviceCode, "granted", granted)
	return nil
}

// SetQuotaLimit sets a quota entitlement's limit. The limit must be
// non-negative or the unlimited sentinel.
func (s *AdminService) SetQuotaLimit(ctx context.Context, tenantID, productCode, quotaCode string, limit int64) error {
	if !s.catalog.HasEntitlement(productCode, quotaCode, domain.KindQuota) {
		return fmt.Errorf("product %s has no quota %s", productCode, quotaCode)
	}
	if limit < 0 && limit != domain.UnlimitedQuota {
		return fmt.Errorf("quota limit must be non-negative or %d, got %d", domain.UnlimitedQuota, limit)
	}
	if err := s.store.SetQuotaLimit(ctx, tenantID, productCode, quotaCode, limit); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID, productCode)
	logging.Op().Info("quota limit changed",
		"tenant_id", tenantID, "product", productCode, "quota", quotaCode, "limit", limit)
	return nil
}

// ConsumeQuota records consumption after an allowed, quota-bearing
// action. The store applies the check-and-increment atomically.
func (s *AdminService) ConsumeQuota(ctx context.Context, tenantID, productCode, quotaCode string, amount int64) (*domain.QuotaStatus, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("quota amount must be positive, got %d", amount)
	}
	status, err := s.store.ConsumeQuota(ctx, tenantID, productCode, quotaCode, amount)
	if err != nil {
		return nil, err
	}
	metrics.RecordQuotaConsume(productCode, status.Sufficient)
	return status, nil
}

// ─── Assets ──────────────────────────────────────────────────────────

func (s *AdminService) CreateAsset(ctx context.Context, asset *domain.Asset) (*domain.Asset, error) {
	if asset == nil || !asset.Type.IsValid() {
		return nil, fmt.Errorf("invalid asset type")
	}
	if err := domain.ValidateTenantID(asset.OwnerTenantID); err != nil {
		return nil, fmt.Errorf("asset owner: %w", err)
	}
	if _, err := s.store.GetTenant(ctx, asset.OwnerTenantID); err != nil {
		return nil, fmt.Errorf("asset owner %s: %w", asset.OwnerTenantID, err)
	}
	return s.store.CreateAsset(ctx, asset)
}

func (s *AdminService) ListAssets(ctx context.Context, tenantID string, assetType domain.AssetType) ([]*domain.Asset, error) {
	return s.store.ListAssets(ctx, tenantID, assetType)
}

func (s *AdminService) DeleteAsset(ctx context.Context, assetType domain.AssetType, assetID string) error {
	return s.store.DeleteAsset(ctx, assetType, assetID)
}

// ─── Roles ───────────────────────────────────────────────────────────

// UpsertRole creates or replaces a role by (tenant, name).
//
// Editing an existing role's permissions cannot evict cached role
// resolutions: those are keyed per (tenant, user) and the holders
// cannot be enumerated from here. Users with the role keep the old
// permission set until the cache TTL expires. Assignment changes, by
// contrast, invalidate immediately via AssignRole/UnassignRole.
func (s *AdminService) UpsertRole(ctx context.Context, role *domain.Role) (*domain.Role, error) {
	if role == nil || strings.TrimSpace(role.Name) == "" {
		return nil, fmt.Errorf("role name is required")
	}
	if len(role.Permissions) == 0 {
		return nil, fmt.Errorf("role needs at least one permission")
	}
	return s.store.UpsertRole(ctx, role)
}

func (s *AdminService) ListRoles(ctx context.Context, tenantID string) ([]*domain.Role, error) {
	return s.store.ListRoles(ctx, tenantID)
}

// AssignRole binds a user to a role within the role's tenant. A user
// holds at most one role per tenant; assigning replaces.
func (s *AdminService) AssignRole(ctx context.Context, userID, tenantID, roleID string) error {
	if err := s.store.AssignRole(ctx, userID, tenantID, roleID); err != nil {
		return err
	}
	s.invalidateRole(ctx, userID, tenantID)
	logging.Op().Info("role assigned",
		"user_id", userID, "tenant_id", tenantID, "role_id", roleID)
	return nil
}

func (s *AdminService) UnassignRole(ctx context.Context, userID, tenantID string) error {
	if err := s.store.UnassignRole(ctx, userID, tenantID); err != nil {
		return err
	}
	s.invalidateRole(ctx, userID, tenantID)
	return nil
}

// ─── Cache invalidation ──────────────────────────────────────────────

func (s *AdminService) invalidate(ctx context.Context, tenantID, productCode string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateTenantProduct(ctx, tenantID, productCode); err != nil {
		logging.Op().Warn("cache invalidation failed",
			"tenant_id", tenantID, "product", productCode, "error", err)
	}
}

func (s *AdminService) invalidateTenantProducts(ctx context.Context, tenantID string) {
	for _, code := range s.catalog.ProductCodes() {
		s.invalidate(ctx, tenantID, code)
	}
}

func (s *AdminService) invalidateRole(ctx context.Context, userID, tenantID string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateUserRole(ctx, userID, tenantID); err != nil {
		logging.Op().Warn("cache invalidation failed",
			"user_id", userID, "tenant_id", tenantID, "error", err)
	}
}

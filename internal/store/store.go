package store

import (
	"context"
	"errors"

	"github.com/archvision/entgate/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// The engine maps it to a business denial at the gate that asked;
// any other store error is treated as infrastructure failure and
// denied fail-closed.
var ErrNotFound = errors.New("store: not found")

// EntitlementStore is the read contract the permission engine depends
// on. Implementations must be safe for concurrent reads.
type EntitlementStore interface {
	// GetTenantProduct returns the activation record for the
	// (tenant, product) pair, joined with the owning tenant's status.
	GetTenantProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error)

	// GetAsset returns the asset identified by (type, id).
	GetAsset(ctx context.Context, assetType domain.AssetType, assetID string) (*domain.Asset, error)

	// GetUserRole returns the role the user holds in the tenant.
	GetUserRole(ctx context.Context, userID, tenantID string) (*domain.Role, error)
}

// QuotaLedger reads consumption counters per (tenant, product, quota).
// The engine only ever reads quota state; consumption goes through
// ConsumeQuota on the full Store and uses the ledger's own atomic
// discipline.
type QuotaLedger interface {
	GetQuota(ctx context.Context, tenantID, productCode, quotaCode string) (*domain.QuotaState, error)
}

// TenantUpdate contains optional mutable tenant fields.
type TenantUpdate struct {
	Name        *string
	DisplayType *string
	Status      *domain.TenantStatus
}

// Store is the full persistence surface: the engine's read contracts
// plus the administrative mutations owned by the admin subsystem.
type Store interface {
	EntitlementStore
	QuotaLedger

	Close() error
	Ping(ctx context.Context) error

	// Tenants
	CreateTenant(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, error)
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
	ListTenants(ctx context.Context, limit, offset int) ([]*domain.Tenant, error)
	UpdateTenant(ctx context.Context, tenantID string, update *TenantUpdate) (*domain.Tenant, error)

	// Product activation and entitlement grants
	EnableProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error)
	DisableProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error)
	SetFeature(ctx context.Context, tenantID, productCode, featureCode string, granted bool) error
	SetService(ctx context.Context, tenantID, productCode, serviceCode string, granted bool) error
	SetQuotaLimit(ctx context.Context, tenantID, productCode, quotaCode string, limit int64) error

	// Quota ledger writes
	ConsumeQuota(ctx context.Context, tenantID, productCode, quotaCode string, amount int64) (*domain.QuotaStatus, error)

	// Assets
	CreateAsset(ctx context.Context, asset *domain.Asset) (*domain.Asset, error)
	ListAssets(ctx context.Context, tenantID string, assetType domain.AssetType) ([]*domain.Asset, error)
	DeleteAsset(ctx context.Context, assetType domain.AssetType, assetID string) error

	// Roles
	UpsertRole(ctx context.Context, role *domain.Role) (*domain.Role, error)
	ListRoles(ctx context.Context, tenantID string) ([]*domain.Role, error)
	AssignRole(ctx context.Context, userID, tenantID, roleID string) error
	UnassignRole(ctx context.Context, userID, tenantID string) error
}

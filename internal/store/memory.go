package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archvision/entgate/internal/domain"
)

// MemoryStore is a complete in-process Store implementation. It backs
// the CLI demo mode and serves as the substitutable fake in tests; no
// network is involved.
type MemoryStore struct {
	mu          sync.RWMutex
	tenants     map[string]*domain.Tenant
	products    map[string]*domain.TenantProduct // key tenantID/productCode
	quotas      map[string]*domain.QuotaState    // key tenantID/productCode/quotaCode
	assets      map[string]*domain.Asset         // key type/id
	roles       map[string]*domain.Role          // key roleID
	assignments map[string]string                // key tenantID/userID -> roleID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:     make(map[string]*domain.Tenant),
		products:    make(map[string]*domain.TenantProduct),
		quotas:      make(map[string]*domain.QuotaState),
		assets:      make(map[string]*domain.Asset),
		roles:       make(map[string]*domain.Role),
		assignments: make(map[string]string),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func productKey(tenantID, productCode string) string {
	return tenantID + "/" + productCode
}

func quotaKey(tenantID, productCode, quotaCode string) string {
	return tenantID + "/" + productCode + "/" + quotaCode
}

func assetKey(assetType domain.AssetType, assetID string) string {
	return string(assetType) + "/" + assetID
}

// ─── Tenants ────────────────────────────────────────────────────────────────

func (s *MemoryStore) CreateTenant(_ context.Context, tenant *domain.Tenant) (*domain.Tenant, error) {
	if tenant == nil {
		return nil, fmt.Errorf("tenant is required")
	}
	if err := domain.ValidateTenantID(tenant.ID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(tenant.Name) == "" {
		return nil, fmt.Errorf("tenant name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenant.ID]; ok {
		return nil, fmt.Errorf("tenant already exists: %s", tenant.ID)
	}
	t := *tenant
	if t.Status == "" {
		t.Status = domain.TenantActive
	}
	if !t.Status.IsValid() {
		return nil, fmt.Errorf("invalid tenant status: %s", t.Status)
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tenants[t.ID] = &t
	out := t
	return &out, nil
}

func (s *MemoryStore) GetTenant(_ context.Context, tenantID string) (*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}
	out := *t
	return &out, nil
}

func (s *MemoryStore) ListTenants(_ context.Context, limit, offset int) ([]*domain.Tenant, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tenants := make([]*domain.Tenant, 0)
	for i, id := range ids {
		if i < offset {
			continue
		}
		if len(tenants) >= limit {
			break
		}
		out := *s.tenants[id]
		tenants = append(tenants, &out)
	}
	return tenants, nil
}

func (s *MemoryStore) UpdateTenant(_ context.Context, tenantID string, update *TenantUpdate) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}
	if update != nil {
		if update.Status != nil {
			if !update.Status.IsValid() {
				return nil, fmt.Errorf("invalid tenant status: %s", *update.Status)
			}
			t.Status = *update.Status
		}
		if update.Name != nil {
			t.Name = *update.Name
		}
		if update.DisplayType != nil {
			t.DisplayType = *update.DisplayType
		}
		t.UpdatedAt = time.Now().UTC()
	}
	out := *t
	return &out, nil
}

// ─── Products & grants ──────────────────────────────────────────────────────

func (s *MemoryStore) GetTenantProduct(_ context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTenantProductLocked(tenantID, productCode)
}

func (s *MemoryStore) getTenantProductLocked(tenantID, productCode string) (*domain.TenantProduct, error) {
	tp, ok := s.products[productKey(tenantID, productCode)]
	if !ok {
		return nil, fmt.Errorf("tenant product %s/%s: %w", tenantID, productCode, ErrNotFound)
	}
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}

	out := *tp
	out.TenantStatus = t.Status
	out.Features = copyBoolMap(tp.Features)
	out.Services = copyBoolMap(tp.Services)
	out.Quotas = make(map[string]domain.QuotaState)
	prefix := productKey(tenantID, productCode) + "/"
	for k, q := range s.quotas {
		if strings.HasPrefix(k, prefix) {
			out.Quotas[strings.TrimPrefix(k, prefix)] = *q
		}
	}
	return &out, nil
}

func (s *MemoryStore) EnableProduct(_ context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	code := strings.TrimSpace(productCode)
	if code == "" {
		return nil, fmt.Errorf("product code is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenantID]; !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}
	key := productKey(tenantID, code)
	tp, ok := s.products[key]
	if !ok {
		tp = &domain.TenantProduct{
			TenantID:    tenantID,
			ProductCode: code,
			Features:    make(map[string]bool),
			Services:    make(map[string]bool),
			EnabledAt:   time.Now().UTC(),
		}
		s.products[key] = tp
	}
	tp.Enabled = true
	return s.getTenantProductLocked(tenantID, code)
}

func (s *MemoryStore) DisableProduct(_ context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tp, ok := s.products[productKey(tenantID, productCode)]
	if !ok {
		return nil, fmt.Errorf("tenant product %s/%s: %w", tenantID, productCode, ErrNotFound)
	}
	tp.Enabled = false
	return s.getTenantProductLocked(tenantID, productCode)
}

func (s *MemoryStore) SetFeature(_ context.Context, tenantID, productCode, featureCode string, granted bool) error {
	return s.setGrant(tenantID, productCode, featureCode, granted, false)
}

func (s *MemoryStore) SetService(_ context.Context, tenantID, productCode, serviceCode string, granted bool) error {
	return s.setGrant(tenantID, productCode, serviceCode, granted, true)
}

func (s *MemoryStore) setGrant(tenantID, productCode, code string, granted, service bool) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("entitlement code is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tp, ok := s.products[productKey(tenantID, productCode)]
	if !ok {
		return fmt.Errorf("tenant product %s/%s: %w", tenantID, productCode, ErrNotFound)
	}
	if service {
		if tp.Services == nil {
			tp.Services = make(map[string]bool)
		}
		tp.Services[code] = granted
	} else {
		if tp.Features == nil {
			tp.Features = make(map[string]bool)
		}
		tp.Features[code] = granted
	}
	return nil
}

// ─── Quotas ─────────────────────────────────────────────────────────────────

func (s *MemoryStore) GetQuota(_ context.Context, tenantID, productCode, quotaCode string) (*domain.QuotaState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotas[quotaKey(tenantID, productCode, quotaCode)]
	if !ok {
		return nil, fmt.Errorf("quota %s/%s/%s: %w", tenantID, productCode, quotaCode, ErrNotFound)
	}
	out := *q
	return &out, nil
}

func (s *MemoryStore) SetQuotaLimit(_ context.Context, tenantID, productCode, quotaCode string, limit int64) error {
	code := strings.TrimSpace(quotaCode)
	if code == "" {
		return fmt.Errorf("quota code is required")
	}
	if limit < 0 && limit != domain.UnlimitedQuota {
		return fmt.Errorf("quota limit must be >= 0 or %d (unlimited)", domain.UnlimitedQuota)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := quotaKey(tenantID, productCode, code)
	if q, ok := s.quotas[key]; ok {
		q.Limit = limit
		return nil
	}
	s.quotas[key] = &domain.QuotaState{Limit: limit}
	return nil
}

func (s *MemoryStore) ConsumeQuota(_ context.Context, tenantID, productCode, quotaCode string, amount int64) (*domain.QuotaStatus, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("consume amount must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotas[quotaKey(tenantID, productCode, quotaCode)]
	if !ok {
		return nil, fmt.Errorf("quota %s/%s/%s: %w", tenantID, productCode, quotaCode, ErrNotFound)
	}
	if q.Limit != domain.UnlimitedQuota && q.Limit-q.Used < amount {
		return &domain.QuotaStatus{
			Sufficient: false,
			Used:       q.Used,
			Limit:      q.Limit,
			Remaining:  remaining(q.Limit, q.Used),
		}, nil
	}
	q.Used += amount
	return &domain.QuotaStatus{
		Sufficient: true,
		Used:       q.Used,
		Limit:      q.Limit,
		Remaining:  remaining(q.Limit, q.Used),
	}, nil
}

// ─── Assets ─────────────────────────────────────────────────────────────────

func (s *MemoryStore) CreateAsset(_ context.Context, asset *domain.Asset) (*domain.Asset, error) {
	if asset == nil {
		return nil, fmt.Errorf("asset is required")
	}
	if !asset.Type.IsValid() {
		return nil, fmt.Errorf("invalid asset type: %s", asset.Type)
	}
	if strings.TrimSpace(asset.ID) == "" {
		return nil, fmt.Errorf("asset id is required")
	}
	if err := domain.ValidateTenantID(asset.OwnerTenantID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := assetKey(asset.Type, asset.ID)
	if _, ok := s.assets[key]; ok {
		return nil, fmt.Errorf("asset already exists: %s/%s", asset.Type, asset.ID)
	}
	a := *asset
	a.CreatedAt = time.Now().UTC()
	s.assets[key] = &a
	out := a
	return &out, nil
}

func (s *MemoryStore) GetAsset(_ context.Context, assetType domain.AssetType, assetID string) (*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[assetKey(assetType, assetID)]
	if !ok {
		return nil, fmt.Errorf("asset %s/%s: %w", assetType, assetID, ErrNotFound)
	}
	out := *a
	return &out, nil
}

func (s *MemoryStore) ListAssets(_ context.Context, tenantID string, assetType domain.AssetType) ([]*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.assets))
	for k := range s.assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	assets := make([]*domain.Asset, 0)
	for _, k := range keys {
		a := s.assets[k]
		if a.OwnerTenantID != tenantID {
			continue
		}
		if assetType != "" && a.Type != assetType {
			continue
		}
		out := *a
		assets = append(assets, &out)
	}
	return assets, nil
}

func (s *MemoryStore) DeleteAsset(_ context.Context, assetType domain.AssetType, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := assetKey(assetType, assetID)
	if _, ok := s.assets[key]; !ok {
		return fmt.Errorf("asset %s/%s: %w", assetType, assetID, ErrNotFound)
	}
	delete(s.assets, key)
	return nil
}

// ─── Roles ──────────────────────────────────────────────────────────────────

func (s *MemoryStore) UpsertRole(_ context.Context, role *domain.Role) (*domain.Role, error) {
	if role == nil {
		return nil, fmt.Errorf("role is required")
	}
	if strings.TrimSpace(role.Name) == "" {
		return nil, fmt.Errorf("role name is required")
	}
	if err := domain.ValidateTenantID(role.TenantID); err != nil {
		return nil, err
	}
	if len(role.Permissions) == 0 {
		return nil, fmt.Errorf("role permissions are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, existing := range s.roles {
		if existing.TenantID == role.TenantID && existing.Name == role.Name {
			existing.Permissions = append([]string(nil), role.Permissions...)
			existing.UpdatedAt = now
			out := *existing
			return &out, nil
		}
	}
	r := *role
	if strings.TrimSpace(r.ID) == "" {
		r.ID = uuid.NewString()
	}
	r.Permissions = append([]string(nil), role.Permissions...)
	r.CreatedAt = now
	r.UpdatedAt = now
	s.roles[r.ID] = &r
	out := r
	return &out, nil
}

func (s *MemoryStore) ListRoles(_ context.Context, tenantID string) ([]*domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roles := make([]*domain.Role, 0)
	for _, r := range s.roles {
		if r.TenantID != tenantID {
			continue
		}
		out := *r
		roles = append(roles, &out)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (s *MemoryStore) AssignRole(_ context.Context, userID, tenantID, roleID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID]
	if !ok {
		return fmt.Errorf("role %s: %w", roleID, ErrNotFound)
	}
	if r.TenantID != tenantID {
		return fmt.Errorf("role %s belongs to tenant %s, not %s", roleID, r.TenantID, tenantID)
	}
	s.assignments[productKey(tenantID, userID)] = roleID
	return nil
}

func (s *MemoryStore) UnassignRole(_ context.Context, userID, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := productKey(tenantID, userID)
	if _, ok := s.assignments[key]; !ok {
		return fmt.Errorf("role assignment %s/%s: %w", tenantID, userID, ErrNotFound)
	}
	delete(s.assignments, key)
	return nil
}

func (s *MemoryStore) GetUserRole(_ context.Context, userID, tenantID string) (*domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roleID, ok := s.assignments[productKey(tenantID, userID)]
	if !ok {
		return nil, fmt.Errorf("role assignment %s/%s: %w", tenantID, userID, ErrNotFound)
	}
	r, ok := s.roles[roleID]
	if !ok || r.TenantID != tenantID {
		return nil, fmt.Errorf("role %s: %w", roleID, ErrNotFound)
	}
	out := *r
	out.Permissions = append([]string(nil), r.Permissions...)
	return &out, nil
}

func copyBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

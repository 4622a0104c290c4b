package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/archvision/entgate/internal/cache"
	"github.com/archvision/entgate/internal/domain"
)

// CachedEntitlementStore decorates an EntitlementStore with a cache on
// the two hottest evaluation reads: tenant product records and role
// resolutions. Assets pass through uncached; the ownership check is a
// primary-key lookup and stale ownership would weaken the boundary.
//
// Only successful reads are cached. Admin writes must call the
// Invalidate helpers so grants take effect before TTL expiry.
type CachedEntitlementStore struct {
	inner     EntitlementStore
	cache     cache.Cache
	ttl       time.Duration
	publisher Publisher
}

// Publisher broadcasts an evicted key so other replicas drop their
// local copy too. cache.Invalidator implements it over Redis pub/sub.
type Publisher interface {
	Publish(ctx context.Context, key string) error
}

// NewCachedEntitlementStore wraps inner with the given cache.
// ttl defaults to 30s.
func NewCachedEntitlementStore(inner EntitlementStore, c cache.Cache, ttl time.Duration) *CachedEntitlementStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedEntitlementStore{inner: inner, cache: c, ttl: ttl}
}

// SetPublisher makes every eviction also broadcast the key. Without a
// publisher, evictions reach only the local L1 and the shared L2;
// other replicas keep their L1 entry until its TTL.
func (s *CachedEntitlementStore) SetPublisher(p Publisher) {
	s.publisher = p
}

func (s *CachedEntitlementStore) evict(ctx context.Context, key string) error {
	if err := s.cache.Delete(ctx, key); err != nil {
		return err
	}
	if s.publisher != nil {
		return s.publisher.Publish(ctx, key)
	}
	return nil
}

func tenantProductCacheKey(tenantID, productCode string) string {
	return "tenant-product:" + tenantID + "/" + productCode
}

func userRoleCacheKey(tenantID, userID string) string {
	return "role:" + tenantID + "/" + userID
}

func (s *CachedEntitlementStore) GetTenantProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	key := tenantProductCacheKey(tenantID, productCode)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var tp domain.TenantProduct
		if err := json.Unmarshal(raw, &tp); err == nil {
			return &tp, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		_ = s.cache.Delete(ctx, key)
	}

	tp, err := s.inner.GetTenantProduct(ctx, tenantID, productCode)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(tp); err == nil {
		_ = s.cache.Set(ctx, key, raw, s.ttl)
	}
	return tp, nil
}

func (s *CachedEntitlementStore) GetAsset(ctx context.Context, assetType domain.AssetType, assetID string) (*domain.Asset, error) {
	return s.inner.GetAsset(ctx, assetType, assetID)
}

func (s *CachedEntitlementStore) GetUserRole(ctx context.Context, userID, tenantID string) (*domain.Role, error) {
	key := userRoleCacheKey(tenantID, userID)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var r domain.Role
		if err := json.Unmarshal(raw, &r); err == nil {
			return &r, nil
		}
		_ = s.cache.Delete(ctx, key)
	}

	r, err := s.inner.GetUserRole(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(r); err == nil {
		_ = s.cache.Set(ctx, key, raw, s.ttl)
	}
	return r, nil
}

// InvalidateTenantProduct evicts the cached activation record after an
// admin write to the (tenant, product) pair.
func (s *CachedEntitlementStore) InvalidateTenantProduct(ctx context.Context, tenantID, productCode string) error {
	return s.evict(ctx, tenantProductCacheKey(tenantID, productCode))
}

// InvalidateUserRole evicts the cached role resolution after a role
// assignment change.
func (s *CachedEntitlementStore) InvalidateUserRole(ctx context.Context, userID, tenantID string) error {
	return s.evict(ctx, userRoleCacheKey(tenantID, userID))
}

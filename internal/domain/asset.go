package domain

import "time"

// AssetType classifies an ownable object.
type AssetType string

const (
	AssetBrand       AssetType = "brand"
	AssetSupplyChain AssetType = "supply_chain"
	AssetModel       AssetType = "model"
	AssetProduct     AssetType = "product"
)

func (t AssetType) IsValid() bool {
	switch t {
	case AssetBrand, AssetSupplyChain, AssetModel, AssetProduct:
		return true
	}
	return false
}

// Asset is an object owned by exactly one tenant. There is no
// cross-tenant default access; sharing would be a distinct explicit
// grant, not modeled here.
type Asset struct {
	Type          AssetType         `json:"type"`
	ID            string            `json:"id"`
	OwnerTenantID string            `json:"owner_tenant_id"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// OwnedBy reports whether the asset belongs to the given tenant.
func (a *Asset) OwnedBy(tenantID string) bool {
	return a != nil && a.OwnerTenantID == tenantID
}

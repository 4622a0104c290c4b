package domain

// EntitlementKind classifies what a grant toggles.
type EntitlementKind string

const (
	KindFeature EntitlementKind = "feature"
	KindQuota   EntitlementKind = "quota"
	KindService EntitlementKind = "service"
)

func (k EntitlementKind) IsValid() bool {
	switch k {
	case KindFeature, KindQuota, KindService:
		return true
	}
	return false
}

// Entitlement describes what a product can grant. It is catalog data:
// immutable at evaluation time. The per-tenant grant state lives in
// TenantProduct.
type Entitlement struct {
	ProductCode string          `json:"product_code"`
	Code        string          `json:"code"`
	Kind        EntitlementKind `json:"kind"`
	Name        string          `json:"name,omitempty"`
}

package domain

import "fmt"

// AssetRef identifies an asset referenced by an evaluation. The zero
// value means no asset is referenced.
type AssetRef struct {
	Type AssetType `json:"type,omitempty"`
	ID   string    `json:"id,omitempty"`
}

// Valid reports whether the reference names a concrete asset.
func (r AssetRef) Valid() bool {
	return r.Type != "" && r.ID != ""
}

// QuotaRef names a quota and the amount an action intends to consume.
// The zero value means the action is not quota-bearing.
type QuotaRef struct {
	Code   string `json:"code,omitempty"`
	Amount int64  `json:"amount,omitempty"`
}

// Valid reports whether the reference names a concrete quota.
func (r QuotaRef) Valid() bool {
	return r.Code != ""
}

// EvaluationContext is the immutable input to one permission
// evaluation. It is constructed fresh per call and never mutated by
// the engine.
type EvaluationContext struct {
	TenantID    string `json:"tenant_id"`
	ProductCode string `json:"product_code"`
	Action      string `json:"action"`
	UserID      string `json:"user_id"`

	// FeatureCode gates the action on a feature entitlement when
	// non-empty. Not every action is feature-gated.
	FeatureCode string `json:"feature_code,omitempty"`

	// Asset, when valid, subjects the action to the asset ownership
	// boundary.
	Asset AssetRef `json:"asset,omitempty"`

	// Quota, when valid, records the quota the caller intends to
	// consume after a successful evaluation. The engine does not
	// consult it during CheckPermission; see CheckQuota.
	Quota QuotaRef `json:"quota,omitempty"`
}

// HasFeature reports whether the entitlement gate applies.
func (c EvaluationContext) HasFeature() bool {
	return c.FeatureCode != ""
}

// HasAsset reports whether the asset boundary gate applies.
func (c EvaluationContext) HasAsset() bool {
	return c.Asset.Valid()
}

// Validate checks the structural requirements of the context. A
// partially specified asset reference is rejected rather than silently
// skipping the boundary gate.
func (c EvaluationContext) Validate() error {
	if err := ValidateTenantID(c.TenantID); err != nil {
		return err
	}
	if c.ProductCode == "" {
		return fmt.Errorf("product code is required")
	}
	if c.Action == "" {
		return fmt.Errorf("action is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if (c.Asset.Type == "") != (c.Asset.ID == "") {
		return fmt.Errorf("asset reference requires both type and id")
	}
	if c.Asset.Type != "" && !c.Asset.Type.IsValid() {
		return fmt.Errorf("invalid asset type: %s", c.Asset.Type)
	}
	if c.Quota.Code != "" && c.Quota.Amount <= 0 {
		return fmt.Errorf("quota amount must be positive")
	}
	return nil
}

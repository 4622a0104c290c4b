package domain

import "testing"

func validContext() EvaluationContext {
	return EvaluationContext{
		TenantID:    "T1",
		ProductCode: "domestic_3d",
		Action:      "render:create",
		UserID:      "U1",
	}
}

func TestEvaluationContextValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EvaluationContext)
		wantErr bool
	}{
		{"minimal valid", func(c *EvaluationContext) {}, false},
		{"missing tenant", func(c *EvaluationContext) { c.TenantID = "" }, true},
		{"bad tenant id", func(c *EvaluationContext) { c.TenantID = "t 1" }, true},
		{"missing product", func(c *EvaluationContext) { c.ProductCode = "" }, true},
		{"missing action", func(c *EvaluationContext) { c.Action = "" }, true},
		{"missing user", func(c *EvaluationContext) { c.UserID = "" }, true},
		{"complete asset ref", func(c *EvaluationContext) {
			c.Asset = AssetRef{Type: AssetBrand, ID: "BRAND-001"}
		}, false},
		{"asset ref without id", func(c *EvaluationContext) {
			c.Asset = AssetRef{Type: AssetBrand}
		}, true},
		{"asset ref without type", func(c *EvaluationContext) {
			c.Asset = AssetRef{ID: "BRAND-001"}
		}, true},
		{"unknown asset type", func(c *EvaluationContext) {
			c.Asset = AssetRef{Type: "warehouse", ID: "W-1"}
		}, true},
		{"quota ref needs positive amount", func(c *EvaluationContext) {
			c.Quota = QuotaRef{Code: "render_2k_monthly"}
		}, true},
		{"quota ref with amount", func(c *EvaluationContext) {
			c.Quota = QuotaRef{Code: "render_2k_monthly", Amount: 1}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validContext()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEvaluationContextPresence(t *testing.T) {
	c := validContext()
	if c.HasFeature() || c.HasAsset() {
		t.Error("minimal context must not report optional inputs")
	}

	c.FeatureCode = "3d_rendering"
	c.Asset = AssetRef{Type: AssetModel, ID: "M20240001"}
	if !c.HasFeature() {
		t.Error("HasFeature() = false with feature code set")
	}
	if !c.HasAsset() {
		t.Error("HasAsset() = false with complete asset ref")
	}
}

package domain

import "testing"

func TestTenantProductFeatureGranted(t *testing.T) {
	tp := &TenantProduct{
		TenantID:    "T1",
		ProductCode: "domestic_3d",
		Enabled:     true,
		Features: map[string]bool{
			"3d_rendering":         true,
			"construction_drawing": false,
		},
	}

	if !tp.FeatureGranted("3d_rendering") {
		t.Error("granted feature reported as missing")
	}
	if tp.FeatureGranted("construction_drawing") {
		t.Error("feature flagged false reported as granted")
	}
	if tp.FeatureGranted("model_management") {
		t.Error("absent feature reported as granted")
	}

	var nilTP *TenantProduct
	if nilTP.FeatureGranted("3d_rendering") {
		t.Error("nil record reported a granted feature")
	}
}

func TestValidateTenantID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"T1", false},
		{"ENT-001", false},
		{"tenant_42", false},
		{"", true},
		{"bad tenant", true},
		{"tenant/1", true},
	}
	for _, tt := range tests {
		if err := ValidateTenantID(tt.id); (err != nil) != tt.wantErr {
			t.Errorf("ValidateTenantID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestTenantStatusIsValid(t *testing.T) {
	if !TenantActive.IsValid() || !TenantInactive.IsValid() {
		t.Error("known statuses reported invalid")
	}
	if TenantStatus("suspended").IsValid() {
		t.Error("unknown status reported valid")
	}
}

package engine

import (
	"context"
	"testing"

	"github.com/archvision/entgate/internal/domain"
	"github.com/archvision/entgate/internal/store"
)

// Exercises the full rendering flow over the real in-memory store: a
// mall tenant with the domestic 3D product, a granted rendering
// feature, a designer role and an owned brand, rendering against a
// monthly quota.
func TestRenderingFlowAgainstMemoryStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	if _, err := st.CreateTenant(ctx, &domain.Tenant{
		ID: "mall-42", Name: "Harbor Mall", DisplayType: "mall", Status: domain.TenantActive,
	}); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	if _, err := st.EnableProduct(ctx, "mall-42", "domestic_3d"); err != nil {
		t.Fatalf("EnableProduct: %v", err)
	}
	if err := st.SetFeature(ctx, "mall-42", "domestic_3d", "3d_rendering", true); err != nil {
		t.Fatalf("SetFeature: %v", err)
	}
	if err := st.SetQuotaLimit(ctx, "mall-42", "domestic_3d", "render_2k_monthly", 3); err != nil {
		t.Fatalf("SetQuotaLimit: %v", err)
	}
	if _, err := st.CreateAsset(ctx, &domain.Asset{
		Type: domain.AssetBrand, ID: "brand-7", OwnerTenantID: "mall-42",
	}); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	role, err := st.UpsertRole(ctx, &domain.Role{
		TenantID: "mall-42", Name: "designer", Permissions: []string{"render:create"},
	})
	if err != nil {
		t.Fatalf("UpsertRole: %v", err)
	}
	if err := st.AssignRole(ctx, "designer-1", "mall-42", role.ID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	e := New(st, st, WithAuditLogger(nil))

	ec := domain.EvaluationContext{
		TenantID:    "mall-42",
		ProductCode: "domestic_3d",
		Action:      "render:create",
		UserID:      "designer-1",
		FeatureCode: "3d_rendering",
		Asset:       domain.AssetRef{Type: domain.AssetBrand, ID: "brand-7"},
	}

	d, err := e.CheckPermission(ctx, ec)
	if err != nil {
		t.Fatalf("CheckPermission: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("render denied: %s / %s", d.ReasonCode, d.Reason)
	}

	// Permission granted; check then consume quota until exhaustion.
	for i := 0; i < 3; i++ {
		qs, err := e.CheckQuota(ctx, "mall-42", "domestic_3d", "render_2k_monthly", 1)
		if err != nil {
			t.Fatalf("CheckQuota %d: %v", i, err)
		}
		if !qs.Sufficient {
			t.Fatalf("render %d: quota insufficient early: %+v", i, qs)
		}
		if _, err := st.ConsumeQuota(ctx, "mall-42", "domestic_3d", "render_2k_monthly", 1); err != nil {
			t.Fatalf("ConsumeQuota %d: %v", i, err)
		}
	}

	qs, err := e.CheckQuota(ctx, "mall-42", "domestic_3d", "render_2k_monthly", 1)
	if err != nil {
		t.Fatalf("CheckQuota after exhaustion: %v", err)
	}
	if qs.Sufficient {
		t.Fatalf("quota should be exhausted: %+v", qs)
	}
	if qs.Used != 3 || qs.Remaining != 0 {
		t.Errorf("used/remaining = %d/%d, want 3/0", qs.Used, qs.Remaining)
	}

	// A different mall referencing the same brand stays outside the
	// ownership boundary even with its own product and role.
	if _, err := st.CreateTenant(ctx, &domain.Tenant{
		ID: "mall-99", Name: "Rival Mall", DisplayType: "mall", Status: domain.TenantActive,
	}); err != nil {
		t.Fatalf("CreateTenant rival: %v", err)
	}
	if _, err := st.EnableProduct(ctx, "mall-99", "domestic_3d"); err != nil {
		t.Fatalf("EnableProduct rival: %v", err)
	}
	rivalRole, err := st.UpsertRole(ctx, &domain.Role{
		TenantID: "mall-99", Name: "admin", Permissions: []string{domain.PermissionWildcard},
	})
	if err != nil {
		t.Fatalf("UpsertRole rival: %v", err)
	}
	if err := st.AssignRole(ctx, "rival-1", "mall-99", rivalRole.ID); err != nil {
		t.Fatalf("AssignRole rival: %v", err)
	}

	rival := domain.EvaluationContext{
		TenantID:    "mall-99",
		ProductCode: "domestic_3d",
		Action:      "render:create",
		UserID:      "rival-1",
		Asset:       domain.AssetRef{Type: domain.AssetBrand, ID: "brand-7"},
	}
	d, err = e.CheckPermission(ctx, rival)
	if err != nil {
		t.Fatalf("CheckPermission rival: %v", err)
	}
	if d.Allowed || d.FailedGate != domain.GateAsset {
		t.Fatalf("cross-tenant asset access: allowed=%v gate=%s", d.Allowed, d.FailedGate)
	}
}

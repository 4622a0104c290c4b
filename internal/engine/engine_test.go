package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/archvision/entgate/internal/domain"
	"github.com/archvision/entgate/internal/store"
)

// recordingStore is an in-memory EntitlementStore/QuotaLedger that
// records every lookup so tests can assert which gates touched the
// store and in what order.
type recordingStore struct {
	mu    sync.Mutex
	calls []string

	tenantProducts map[string]*domain.TenantProduct // tenantID/productCode
	assets         map[string]*domain.Asset         // type/id
	roles          map[string]*domain.Role          // userID/tenantID
	quotas         map[string]*domain.QuotaState    // tenantID/productCode/quotaCode

	failTenantProduct error
	failAsset         error
	failRole          error
	failQuota         error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		tenantProducts: map[string]*domain.TenantProduct{},
		assets:         map[string]*domain.Asset{},
		roles:          map[string]*domain.Role{},
		quotas:         map[string]*domain.QuotaState{},
	}
}

func (s *recordingStore) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *recordingStore) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *recordingStore) GetTenantProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	s.record("tenant_product")
	if s.failTenantProduct != nil {
		return nil, s.failTenantProduct
	}
	tp, ok := s.tenantProducts[tenantID+"/"+productCode]
	if !ok {
		return nil, store.ErrNotFound
	}
	return tp, nil
}

func (s *recordingStore) GetAsset(ctx context.Context, assetType domain.AssetType, assetID string) (*domain.Asset, error) {
	s.record("asset")
	if s.failAsset != nil {
		return nil, s.failAsset
	}
	a, ok := s.assets[string(assetType)+"/"+assetID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (s *recordingStore) GetUserRole(ctx context.Context, userID, tenantID string) (*domain.Role, error) {
	s.record("role")
	if s.failRole != nil {
		return nil, s.failRole
	}
	r, ok := s.roles[userID+"/"+tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (s *recordingStore) GetQuota(ctx context.Context, tenantID, productCode, quotaCode string) (*domain.QuotaState, error) {
	s.record("quota")
	if s.failQuota != nil {
		return nil, s.failQuota
	}
	q, ok := s.quotas[tenantID+"/"+productCode+"/"+quotaCode]
	if !ok {
		return nil, store.ErrNotFound
	}
	return q, nil
}

// seedAllowed loads state under which fullContext() passes every gate.
func seedAllowed(s *recordingStore) {
	s.tenantProducts["mall-1/domestic_3d"] = &domain.TenantProduct{
		TenantID:     "mall-1",
		ProductCode:  "domestic_3d",
		Enabled:      true,
		Features:     map[string]bool{"3d_rendering": true},
		TenantStatus: domain.TenantActive,
	}
	s.assets["brand/b-100"] = &domain.Asset{
		Type: domain.AssetBrand, ID: "b-100", OwnerTenantID: "mall-1",
	}
	s.roles["u-1/mall-1"] = &domain.Role{
		ID: "r-1", TenantID: "mall-1", Name: "designer",
		Permissions: []string{"render:create", "model:read"},
	}
}

func fullContext() domain.EvaluationContext {
	return domain.EvaluationContext{
		TenantID:    "mall-1",
		ProductCode: "domestic_3d",
		Action:      "render:create",
		UserID:      "u-1",
		FeatureCode: "3d_rendering",
		Asset:       domain.AssetRef{Type: domain.AssetBrand, ID: "b-100"},
	}
}

func newTestEngine(s *recordingStore) *Engine {
	return New(s, s, WithAuditLogger(nil))
}

func trailGates(d *domain.Decision) []string {
	out := make([]string, 0, len(d.Trail))
	for _, g := range d.Trail {
		out = append(out, string(g.Gate)+":"+string(g.Status))
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCheckPermissionAllowed(t *testing.T) {
	s := newRecordingStore()
	seedAllowed(s)
	e := newTestEngine(s)

	d, err := e.CheckPermission(context.Background(), fullContext())
	if err != nil {
		t.Fatalf("CheckPermission: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow, got deny: %s / %s", d.ReasonCode, d.Reason)
	}
	if d.FailedGate != domain.GateNone {
		t.Errorf("failed gate = %s, want none", d.FailedGate)
	}
	if d.ReasonCode != domain.ReasonAllowed {
		t.Errorf("reason code = %s, want allowed", d.ReasonCode)
	}
	if d.ID == "" {
		t.Error("decision id is empty")
	}
	want := []string{"product:passed", "entitlement:passed", "asset:passed", "role:passed"}
	if got := trailGates(d); !equalStrings(got, want) {
		t.Errorf("trail = %v, want %v", got, want)
	}
}

func TestGateOrderAndShortCircuit(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*recordingStore)
		wantGate   domain.Gate
		wantReason domain.ReasonCode
		wantCalls  []string
	}{
		{
			name: "product not enabled stops before everything else",
			mutate: func(s *recordingStore) {
				s.tenantProducts["mall-1/domestic_3d"].Enabled = false
			},
			wantGate:   domain.GateProduct,
			wantReason: domain.ReasonProductNotEnabled,
			wantCalls:  []string{"tenant_product"},
		},
		{
			name: "inactive tenant denies at product gate",
			mutate: func(s *recordingStore) {
				s.tenantProducts["mall-1/domestic_3d"].TenantStatus = domain.TenantInactive
			},
			wantGate:   domain.GateProduct,
			wantReason: domain.ReasonTenantInactive,
			wantCalls:  []string{"tenant_product"},
		},
		{
			name: "missing activation record denies at product gate",
			mutate: func(s *recordingStore) {
				delete(s.tenantProducts, "mall-1/domestic_3d")
			},
			wantGate:   domain.GateProduct,
			wantReason: domain.ReasonProductNotEnabled,
			wantCalls:  []string{"tenant_product"},
		},
		{
			name: "ungranted feature stops before asset and role",
			mutate: func(s *recordingStore) {
				s.tenantProducts["mall-1/domestic_3d"].Features["3d_rendering"] = false
			},
			wantGate:   domain.GateEntitlement,
			wantReason: domain.ReasonEntitlementNotGranted,
			wantCalls:  []string{"tenant_product"},
		},
		{
			name: "foreign asset stops before role",
			mutate: func(s *recordingStore) {
				s.assets["brand/b-100"].OwnerTenantID = "other-tenant"
			},
			wantGate:   domain.GateAsset,
			wantReason: domain.ReasonAssetOutOfBoundary,
			wantCalls:  []string{"tenant_product", "asset"},
		},
		{
			name: "missing asset is outside the boundary",
			mutate: func(s *recordingStore) {
				delete(s.assets, "brand/b-100")
			},
			wantGate:   domain.GateAsset,
			wantReason: domain.ReasonAssetOutOfBoundary,
			wantCalls:  []string{"tenant_product", "asset"},
		},
		{
			name: "role without the action denies last",
			mutate: func(s *recordingStore) {
				s.roles["u-1/mall-1"].Permissions = []string{"model:read"}
			},
			wantGate:   domain.GateRole,
			wantReason: domain.ReasonRoleNotPermitted,
			wantCalls:  []string{"tenant_product", "asset", "role"},
		},
		{
			name: "no role assignment denies at role gate",
			mutate: func(s *recordingStore) {
				delete(s.roles, "u-1/mall-1")
			},
			wantGate:   domain.GateRole,
			wantReason: domain.ReasonRoleNotPermitted,
			wantCalls:  []string{"tenant_product", "asset", "role"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newRecordingStore()
			seedAllowed(s)
			tt.mutate(s)
			e := newTestEngine(s)

			d, err := e.CheckPermission(context.Background(), fullContext())
			if err != nil {
				t.Fatalf("CheckPermission: %v", err)
			}
			if d.Allowed {
				t.Fatal("expected deny, got allow")
			}
			if d.FailedGate != tt.wantGate {
				t.Errorf("failed gate = %s, want %s", d.FailedGate, tt.wantGate)
			}
			if d.ReasonCode != tt.wantReason {
				t.Errorf("reason code = %s, want %s", d.ReasonCode, tt.wantReason)
			}
			if got := s.callLog(); !equalStrings(got, tt.wantCalls) {
				t.Errorf("store calls = %v, want %v", got, tt.wantCalls)
			}
			// Gates past the failure must not appear in the trail.
			last := d.Trail[len(d.Trail)-1]
			if last.Gate != tt.wantGate || last.Status != domain.GateFailed {
				t.Errorf("trail ends with %s:%s, want %s:failed", last.Gate, last.Status, tt.wantGate)
			}
		})
	}
}

func TestOptionalGatesSkipped(t *testing.T) {
	s := newRecordingStore()
	seedAllowed(s)
	e := newTestEngine(s)

	ec := fullContext()
	ec.FeatureCode = ""
	ec.Asset = domain.AssetRef{}

	d, err := e.CheckPermission(context.Background(), ec)
	if err != nil {
		t.Fatalf("CheckPermission: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow, got %s", d.ReasonCode)
	}
	want := []string{"product:passed", "entitlement:skipped", "asset:skipped", "role:passed"}
	if got := trailGates(d); !equalStrings(got, want) {
		t.Errorf("trail = %v, want %v", got, want)
	}
	// Skipped gates must not reach the store.
	if got := s.callLog(); !equalStrings(got, []string{"tenant_product", "role"}) {
		t.Errorf("store calls = %v", got)
	}
}

func TestWildcardPermission(t *testing.T) {
	s := newRecordingStore()
	seedAllowed(s)
	s.roles["u-1/mall-1"].Permissions = []string{domain.PermissionWildcard}
	e := newTestEngine(s)

	ec := fullContext()
	ec.Action = "anything:at-all"
	d, _ := e.CheckPermission(context.Background(), ec)
	if !d.Allowed {
		t.Fatalf("wildcard role should allow any action, got %s", d.ReasonCode)
	}
}

func TestStoreErrorsFailClosed(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name       string
		mutate     func(*recordingStore)
		wantGate   domain.Gate
		wantReason domain.ReasonCode
	}{
		{
			name:       "product lookup failure",
			mutate:     func(s *recordingStore) { s.failTenantProduct = boom },
			wantGate:   domain.GateProduct,
			wantReason: domain.ReasonStoreUnavailable,
		},
		{
			name:       "asset lookup failure",
			mutate:     func(s *recordingStore) { s.failAsset = boom },
			wantGate:   domain.GateAsset,
			wantReason: domain.ReasonStoreUnavailable,
		},
		{
			name:       "role lookup failure",
			mutate:     func(s *recordingStore) { s.failRole = boom },
			wantGate:   domain.GateRole,
			wantReason: domain.ReasonStoreUnavailable,
		},
		{
			name:       "product lookup timeout",
			mutate:     func(s *recordingStore) { s.failTenantProduct = context.DeadlineExceeded },
			wantGate:   domain.GateProduct,
			wantReason: domain.ReasonStoreTimeout,
		},
		{
			name: "role lookup canceled",
			mutate: func(s *recordingStore) {
				s.failRole = fmt.Errorf("query: %w", context.Canceled)
			},
			wantGate:   domain.GateRole,
			wantReason: domain.ReasonStoreTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newRecordingStore()
			seedAllowed(s)
			tt.mutate(s)
			e := newTestEngine(s)

			d, err := e.CheckPermission(context.Background(), fullContext())
			if err != nil {
				t.Fatalf("CheckPermission: %v", err)
			}
			if d.Allowed {
				t.Fatal("store failure must deny")
			}
			if d.FailedGate != tt.wantGate {
				t.Errorf("failed gate = %s, want %s", d.FailedGate, tt.wantGate)
			}
			if d.ReasonCode != tt.wantReason {
				t.Errorf("reason code = %s, want %s", d.ReasonCode, tt.wantReason)
			}
			if !d.StoreFault() {
				t.Error("StoreFault() = false for an infrastructure denial")
			}
		})
	}
}

func TestInvalidContext(t *testing.T) {
	s := newRecordingStore()
	seedAllowed(s)
	e := newTestEngine(s)

	tests := []struct {
		name   string
		mutate func(*domain.EvaluationContext)
	}{
		{"empty tenant", func(ec *domain.EvaluationContext) { ec.TenantID = "" }},
		{"bad tenant id", func(ec *domain.EvaluationContext) { ec.TenantID = "mall 1!" }},
		{"empty product", func(ec *domain.EvaluationContext) { ec.ProductCode = "" }},
		{"empty action", func(ec *domain.EvaluationContext) { ec.Action = "" }},
		{"empty user", func(ec *domain.EvaluationContext) { ec.UserID = "" }},
		{"asset id without type", func(ec *domain.EvaluationContext) { ec.Asset = domain.AssetRef{ID: "b-100"} }},
		{"asset type without id", func(ec *domain.EvaluationContext) { ec.Asset = domain.AssetRef{Type: domain.AssetBrand} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := fullContext()
			tt.mutate(&ec)

			d, err := e.CheckPermission(context.Background(), ec)
			if err != nil {
				t.Fatalf("CheckPermission: %v", err)
			}
			if d.Allowed {
				t.Fatal("invalid context must deny")
			}
			if d.ReasonCode != domain.ReasonInvalidContext {
				t.Errorf("reason code = %s, want invalid_context", d.ReasonCode)
			}
			if d.FailedGate != domain.GateNone {
				t.Errorf("failed gate = %s, want none", d.FailedGate)
			}
			if len(d.Trail) != 0 {
				t.Errorf("trail = %v, want empty", d.Trail)
			}
		})
	}

	// No lookup may have happened for any invalid context.
	if got := s.callLog(); len(got) != 0 {
		t.Errorf("store calls = %v, want none", got)
	}
}

func TestDecisionIsDeterministic(t *testing.T) {
	s := newRecordingStore()
	seedAllowed(s)
	s.roles["u-1/mall-1"].Permissions = []string{"model:read"}
	e := newTestEngine(s)

	first, _ := e.CheckPermission(context.Background(), fullContext())
	for i := 0; i < 10; i++ {
		d, _ := e.CheckPermission(context.Background(), fullContext())
		if d.Allowed != first.Allowed || d.FailedGate != first.FailedGate || d.ReasonCode != first.ReasonCode {
			t.Fatalf("run %d diverged: %+v vs %+v", i, d, first)
		}
	}
}

func TestConcurrentEvaluations(t *testing.T) {
	s := newRecordingStore()
	seedAllowed(s)
	e := newTestEngine(s)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := e.CheckPermission(context.Background(), fullContext())
			if err != nil || !d.Allowed {
				t.Errorf("concurrent evaluation failed: %v %v", err, d)
			}
		}()
	}
	wg.Wait()
}

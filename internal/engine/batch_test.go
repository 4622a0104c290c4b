package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/archvision/entgate/internal/domain"
	"github.com/archvision/entgate/internal/store"
)

func TestBatchPreservesInputOrder(t *testing.T) {
	s := newRecordingStore()
	seedAllowed(s)
	e := newTestEngine(s)

	allow := fullContext()
	deny := fullContext()
	deny.Action = "tenant:delete" // not in the seeded role

	decisions := e.CheckPermissionBatch(context.Background(), []domain.EvaluationContext{allow, deny, allow})
	if len(decisions) != 3 {
		t.Fatalf("got %d decisions, want 3", len(decisions))
	}
	wantAllowed := []bool{true, false, true}
	for i, d := range decisions {
		if d == nil {
			t.Fatalf("decision %d is nil", i)
		}
		if d.Allowed != wantAllowed[i] {
			t.Errorf("decision %d allowed = %v, want %v", i, d.Allowed, wantAllowed[i])
		}
	}
	if decisions[1].FailedGate != domain.GateRole {
		t.Errorf("denied item failed at %s, want role", decisions[1].FailedGate)
	}
}

func TestBatchIsolatesStoreFailures(t *testing.T) {
	// Role lookups for one user fail while the rest are served normally.
	s := newRecordingStore()
	seedAllowed(s)
	s.roles["u-2/mall-1"] = &domain.Role{
		ID: "r-2", TenantID: "mall-1", Name: "viewer",
		Permissions: []string{"render:create"},
	}
	e := New(&failingUserStore{inner: s, userID: "u-broken"}, s, WithAuditLogger(nil))

	ok := fullContext()
	broken := fullContext()
	broken.UserID = "u-broken"
	other := fullContext()
	other.UserID = "u-2"

	decisions := e.CheckPermissionBatch(context.Background(), []domain.EvaluationContext{ok, broken, other})

	if !decisions[0].Allowed || !decisions[2].Allowed {
		t.Errorf("healthy items must be unaffected: %v / %v", decisions[0].ReasonCode, decisions[2].ReasonCode)
	}
	if decisions[1].Allowed {
		t.Fatal("broken item must deny")
	}
	if !decisions[1].StoreFault() {
		t.Errorf("broken item reason = %s, want a store fault", decisions[1].ReasonCode)
	}
}

func TestBatchEmptyInput(t *testing.T) {
	e := newTestEngine(newRecordingStore())

	if got := e.CheckPermissionBatch(context.Background(), nil); len(got) != 0 {
		t.Errorf("nil input: got %d decisions", len(got))
	}
	if got := e.CheckPermissionBatch(context.Background(), []domain.EvaluationContext{}); len(got) != 0 {
		t.Errorf("empty input: got %d decisions", len(got))
	}
}

func TestBatchBoundsConcurrency(t *testing.T) {
	s := newRecordingStore()
	seedAllowed(s)
	gauge := &concurrencyGauge{}
	e := New(&gaugedStore{inner: s, gauge: gauge}, s,
		WithAuditLogger(nil), WithBatchConcurrency(4))

	contexts := make([]domain.EvaluationContext, 64)
	for i := range contexts {
		contexts[i] = fullContext()
	}

	decisions := e.CheckPermissionBatch(context.Background(), contexts)
	for i, d := range decisions {
		if !d.Allowed {
			t.Fatalf("decision %d denied: %s", i, d.ReasonCode)
		}
	}
	if max := gauge.max.Load(); max > 4 {
		t.Errorf("observed %d concurrent lookups, limit is 4", max)
	}
}

func TestBatchCompletionTimingDoesNotReorder(t *testing.T) {
	// The first item is made slow; its decision must still come first.
	s := newRecordingStore()
	seedAllowed(s)
	deny := fullContext()
	deny.Action = "tenant:delete"

	slow := &slowFirstStore{inner: s, delay: 20 * time.Millisecond}
	e := New(slow, s, WithAuditLogger(nil))

	decisions := e.CheckPermissionBatch(context.Background(), []domain.EvaluationContext{fullContext(), deny})
	if !decisions[0].Allowed {
		t.Errorf("slow first item must still land at index 0 allowed, got %s", decisions[0].ReasonCode)
	}
	if decisions[1].Allowed {
		t.Error("second item must be the denial")
	}
}

// ─── Test doubles ────────────────────────────────────────────────────

// failingUserStore breaks role lookups for a single user.
type failingUserStore struct {
	inner  *recordingStore
	userID string
}

func (f *failingUserStore) GetTenantProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	return f.inner.GetTenantProduct(ctx, tenantID, productCode)
}

func (f *failingUserStore) GetAsset(ctx context.Context, assetType domain.AssetType, assetID string) (*domain.Asset, error) {
	return f.inner.GetAsset(ctx, assetType, assetID)
}

func (f *failingUserStore) GetUserRole(ctx context.Context, userID, tenantID string) (*domain.Role, error) {
	if userID == f.userID {
		return nil, errors.New("connection reset by peer")
	}
	return f.inner.GetUserRole(ctx, userID, tenantID)
}

type concurrencyGauge struct {
	current atomic.Int64
	max     atomic.Int64
}

func (g *concurrencyGauge) enter() {
	cur := g.current.Add(1)
	for {
		max := g.max.Load()
		if cur <= max || g.max.CompareAndSwap(max, cur) {
			return
		}
	}
}

func (g *concurrencyGauge) leave() {
	g.current.Add(-1)
}

// gaugedStore tracks how many lookups are in flight at once.
type gaugedStore struct {
	inner *recordingStore
	gauge *concurrencyGauge
}

func (g *gaugedStore) GetTenantProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	g.gauge.enter()
	defer g.gauge.leave()
	time.Sleep(time.Millisecond)
	return g.inner.GetTenantProduct(ctx, tenantID, productCode)
}

func (g *gaugedStore) GetAsset(ctx context.Context, assetType domain.AssetType, assetID string) (*domain.Asset, error) {
	g.gauge.enter()
	defer g.gauge.leave()
	return g.inner.GetAsset(ctx, assetType, assetID)
}

func (g *gaugedStore) GetUserRole(ctx context.Context, userID, tenantID string) (*domain.Role, error) {
	g.gauge.enter()
	defer g.gauge.leave()
	return g.inner.GetUserRole(ctx, userID, tenantID)
}

// slowFirstStore delays the first product lookup it sees.
type slowFirstStore struct {
	inner *recordingStore
	delay time.Duration
	once  sync.Once
}

func (s *slowFirstStore) GetTenantProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	s.once.Do(func() { time.Sleep(s.delay) })
	return s.inner.GetTenantProduct(ctx, tenantID, productCode)
}

func (s *slowFirstStore) GetAsset(ctx context.Context, assetType domain.AssetType, assetID string) (*domain.Asset, error) {
	return s.inner.GetAsset(ctx, assetType, assetID)
}

func (s *slowFirstStore) GetUserRole(ctx context.Context, userID, tenantID string) (*domain.Role, error) {
	return s.inner.GetUserRole(ctx, userID, tenantID)
}

var _ store.EntitlementStore = (*failingUserStore)(nil)

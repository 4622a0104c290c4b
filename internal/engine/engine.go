// Package engine evaluates permission requests against tenant
// entitlement state. Evaluation is a fixed pipeline of four gates
// (product, entitlement, asset, role) with short-circuit on the first
// failure; denials are returned as data, never as errors. Any failure
// to read authoritative state denies fail-closed with a reason code
// distinct from business denials.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/archvision/entgate/internal/domain"
	"github.com/archvision/entgate/internal/logging"
	"github.com/archvision/entgate/internal/metrics"
	"github.com/archvision/entgate/internal/observability"
	"github.com/archvision/entgate/internal/store"
)

const (
	defaultStoreTimeout     = 2 * time.Second
	defaultBatchConcurrency = 16
)

// Engine runs permission evaluations. It holds no mutable state and is
// safe for concurrent use; construct one per process and share it.
type Engine struct {
	store  store.EntitlementStore
	ledger store.QuotaLedger
	audit  *logging.DecisionLogger

	storeTimeout     time.Duration
	batchConcurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithStoreTimeout bounds each store lookup made during evaluation.
// Zero disables the per-lookup bound; the caller's context still applies.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) { e.storeTimeout = d }
}

// WithBatchConcurrency caps how many evaluations of a batch run at once.
func WithBatchConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchConcurrency = n
		}
	}
}

// WithAuditLogger replaces the default decision audit logger. Pass nil
// to disable audit logging.
func WithAuditLogger(l *logging.DecisionLogger) Option {
	return func(e *Engine) { e.audit = l }
}

// New creates an Engine over the given read contracts.
func New(st store.EntitlementStore, ledger store.QuotaLedger, opts ...Option) *Engine {
	e := &Engine{
		store:            st,
		ledger:           ledger,
		audit:            logging.Decisions(),
		storeTimeout:     defaultStoreTimeout,
		batchConcurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckPermission evaluates one context through the gate pipeline and
// returns exactly one Decision. The returned error is always nil today;
// the signature leaves room for caller-context failures.
func (e *Engine) CheckPermission(ctx context.Context, ec domain.EvaluationContext) (*domain.Decision, error) {
	return e.checkPermission(ctx, ec, false), nil
}

func (e *Engine) checkPermission(ctx context.Context, ec domain.EvaluationContext, batch bool) *domain.Decision {
	start := time.Now()

	ctx, span := observability.StartSpan(ctx, "engine.CheckPermission",
		observability.AttrTenantID.String(ec.TenantID),
		observability.AttrProduct.String(ec.ProductCode),
		observability.AttrAction.String(ec.Action),
		observability.AttrUserID.String(ec.UserID),
	)
	defer span.End()

	ev := &evaluation{
		decision: &domain.Decision{
			ID:          uuid.NewString(),
			EvaluatedAt: start,
		},
	}

	if err := ec.Validate(); err != nil {
		ev.fail(domain.GateNone, domain.ReasonInvalidContext, err.Error())
	} else {
		e.runGates(ctx, ec, ev)
	}

	d := ev.decision
	span.SetAttributes(
		observability.AttrDecisionID.String(d.ID),
		observability.AttrAllowed.Bool(d.Allowed),
		observability.AttrReasonCode.String(string(d.ReasonCode)),
	)
	if !d.Allowed {
		span.SetAttributes(observability.AttrGate.String(string(d.FailedGate)))
	}
	observability.SetSpanOK(span)

	e.record(ec, d, time.Since(start), batch)
	return d
}

// runGates walks the fixed gate order, short-circuiting on the first
// failure. Gates downstream of a failure are never consulted, so a
// denial at gate k costs at most k store lookups.
func (e *Engine) runGates(ctx context.Context, ec domain.EvaluationContext, ev *evaluation) {
	// Gate 1: product activation. A single joined lookup answers both
	// the tenant status and the activation flag.
	tp, err := e.lookupTenantProduct(ctx, ec.TenantID, ec.ProductCode)
	if err != nil {
		ev.storeFail(domain.GateProduct, err)
		return
	}
	switch {
	case tp == nil || !tp.Enabled:
		ev.fail(domain.GateProduct, domain.ReasonProductNotEnabled,
			fmt.Sprintf("product %s is not enabled for tenant %s", ec.ProductCode, ec.TenantID))
		return
	case tp.TenantStatus != domain.TenantActive:
		ev.fail(domain.GateProduct, domain.ReasonTenantInactive,
			fmt.Sprintf("tenant %s is not active", ec.TenantID))
		return
	}
	ev.pass(domain.GateProduct, "")

	// Gate 2: entitlement grant. Applies only to feature-gated actions.
	if !ec.HasFeature() {
		ev.skip(domain.GateEntitlement, "no feature code in context")
	} else if !tp.FeatureGranted(ec.FeatureCode) {
		ev.fail(domain.GateEntitlement, domain.ReasonEntitlementNotGranted,
			fmt.Sprintf("feature %s is not granted", ec.FeatureCode))
		return
	} else {
		ev.pass(domain.GateEntitlement, ec.FeatureCode)
	}

	// Gate 3: asset ownership boundary. Applies only when the action
	// references a concrete asset. A missing asset is outside every
	// tenant's boundary.
	if !ec.HasAsset() {
		ev.skip(domain.GateAsset, "no asset referenced")
	} else {
		asset, err := e.lookupAsset(ctx, ec.Asset)
		if err != nil {
			ev.storeFail(domain.GateAsset, err)
			return
		}
		if !asset.OwnedBy(ec.TenantID) {
			ev.fail(domain.GateAsset, domain.ReasonAssetOutOfBoundary,
				fmt.Sprintf("%s %s is not owned by tenant %s", ec.Asset.Type, ec.Asset.ID, ec.TenantID))
			return
		}
		ev.pass(domain.GateAsset, string(ec.Asset.Type)+"/"+ec.Asset.ID)
	}

	// Gate 4: role permission. A user with no role in the tenant holds
	// no permissions there.
	role, err := e.lookupUserRole(ctx, ec.UserID, ec.TenantID)
	if err != nil {
		ev.storeFail(domain.GateRole, err)
		return
	}
	if !role.Allows(ec.Action) {
		ev.fail(domain.GateRole, domain.ReasonRoleNotPermitted,
			fmt.Sprintf("user %s may not perform %s", ec.UserID, ec.Action))
		return
	}
	ev.pass(domain.GateRole, ec.Action)

	ev.allow()
}

// ─── Store lookups ───────────────────────────────────────────────────

func (e *Engine) lookupTenantProduct(ctx context.Context, tenantID, productCode string) (*domain.TenantProduct, error) {
	ctx, cancel := e.boundCtx(ctx)
	defer cancel()
	tp, err := e.store.GetTenantProduct(ctx, tenantID, productCode)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return tp, err
}

func (e *Engine) lookupAsset(ctx context.Context, ref domain.AssetRef) (*domain.Asset, error) {
	ctx, cancel := e.boundCtx(ctx)
	defer cancel()
	asset, err := e.store.GetAsset(ctx, ref.Type, ref.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return asset, err
}

func (e *Engine) lookupUserRole(ctx context.Context, userID, tenantID string) (*domain.Role, error) {
	ctx, cancel := e.boundCtx(ctx)
	defer cancel()
	role, err := e.store.GetUserRole(ctx, userID, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return role, err
}

func (e *Engine) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.storeTimeout)
}

// storeReason classifies an infrastructure error. Timeouts and caller
// cancellation get their own code so operators can tell slow stores
// from down stores.
func storeReason(err error) domain.ReasonCode {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.ReasonStoreTimeout
	}
	return domain.ReasonStoreUnavailable
}

// ─── Decision assembly ───────────────────────────────────────────────

// evaluation accumulates the trail for one pipeline run.
type evaluation struct {
	decision *domain.Decision
}

func (ev *evaluation) pass(gate domain.Gate, detail string) {
	ev.decision.Trail = append(ev.decision.Trail, domain.GateResult{
		Gate: gate, Status: domain.GatePassed, Detail: detail,
	})
}

func (ev *evaluation) skip(gate domain.Gate, detail string) {
	ev.decision.Trail = append(ev.decision.Trail, domain.GateResult{
		Gate: gate, Status: domain.GateSkipped, Detail: detail,
	})
}

func (ev *evaluation) fail(gate domain.Gate, code domain.ReasonCode, reason string) {
	if gate != domain.GateNone {
		ev.decision.Trail = append(ev.decision.Trail, domain.GateResult{
			Gate: gate, Status: domain.GateFailed, Detail: reason,
		})
	}
	ev.decision.Allowed = false
	ev.decision.FailedGate = gate
	ev.decision.ReasonCode = code
	ev.decision.Reason = reason
}

func (ev *evaluation) storeFail(gate domain.Gate, err error) {
	ev.fail(gate, storeReason(err), fmt.Sprintf("store lookup failed: %v", err))
}

func (ev *evaluation) allow() {
	ev.decision.Allowed = true
	ev.decision.FailedGate = domain.GateNone
	ev.decision.ReasonCode = domain.ReasonAllowed
	ev.decision.Reason = "all gates passed"
}

// ─── Telemetry ───────────────────────────────────────────────────────

func (e *Engine) record(ec domain.EvaluationContext, d *domain.Decision, elapsed time.Duration, batch bool) {
	outcome := "denied"
	if d.Allowed {
		outcome = "allowed"
	}
	metrics.RecordEvaluation(ec.ProductCode, outcome, float64(elapsed.Microseconds())/1000.0)
	if !d.Allowed {
		metrics.RecordGateFailure(string(d.FailedGate), string(d.ReasonCode))
		if d.StoreFault() {
			metrics.RecordStoreError(string(d.FailedGate))
		}
	}

	if e.audit == nil {
		return
	}
	e.audit.Log(&logging.DecisionEntry{
		Timestamp:   d.EvaluatedAt,
		DecisionID:  d.ID,
		TenantID:    ec.TenantID,
		ProductCode: ec.ProductCode,
		Action:      ec.Action,
		UserID:      ec.UserID,
		FeatureCode: ec.FeatureCode,
		AssetType:   string(ec.Asset.Type),
		AssetID:     ec.Asset.ID,
		Allowed:     d.Allowed,
		FailedGate:  failedGateLabel(d),
		ReasonCode:  string(d.ReasonCode),
		StoreFault:  d.StoreFault(),
		DurationMs:  elapsed.Milliseconds(),
		Batch:       batch,
	})
}

func failedGateLabel(d *domain.Decision) string {
	if d.Allowed || d.FailedGate == domain.GateNone {
		return ""
	}
	return string(d.FailedGate)
}

package domain

import "time"

// Gate is one stage of the fixed evaluation order.
type Gate string

const (
	GateNone        Gate = "none"
	GateProduct     Gate = "product"
	GateEntitlement Gate = "entitlement"
	GateAsset       Gate = "asset"
	GateRole        Gate = "role"
	GateQuota       Gate = "quota"
)

// GateStatus records how a gate concluded.
type GateStatus string

const (
	GatePassed  GateStatus = "passed"
	GateSkipped GateStatus = "skipped"
	GateFailed  GateStatus = "failed"
)

// ReasonCode is the machine-readable cause of a decision. Business
// denials and infrastructure denials carry distinct codes so telemetry
// can separate them.
type ReasonCode string

const (
	ReasonAllowed               ReasonCode = "allowed"
	ReasonTenantInactive        ReasonCode = "tenant_inactive"
	ReasonProductNotEnabled     ReasonCode = "product_not_enabled"
	ReasonEntitlementNotGranted ReasonCode = "entitlement_not_granted"
	ReasonAssetOutOfBoundary    ReasonCode = "asset_out_of_boundary"
	ReasonRoleNotPermitted      ReasonCode = "role_not_permitted"
	ReasonQuotaExceeded         ReasonCode = "quota_exceeded"
	ReasonStoreUnavailable      ReasonCode = "store_unavailable"
	ReasonStoreTimeout          ReasonCode = "store_timeout"
	ReasonInvalidContext        ReasonCode = "invalid_context"
)

// GateResult is the diagnostic record for one gate the engine reached.
// Gates after the first failure never appear in a trail.
type GateResult struct {
	Gate   Gate       `json:"gate"`
	Status GateStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// Decision is the outcome of one permission evaluation. Denials are
// data, not errors: callers branch on Allowed and FailedGate.
type Decision struct {
	ID          string       `json:"id"`
	Allowed     bool         `json:"allowed"`
	FailedGate  Gate         `json:"failed_gate"`
	ReasonCode  ReasonCode   `json:"reason_code"`
	Reason      string       `json:"reason"`
	Trail       []GateResult `json:"trail"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
}

// StoreFault reports whether the denial was caused by an inability to
// read authoritative state rather than by policy.
func (d *Decision) StoreFault() bool {
	return d != nil && (d.ReasonCode == ReasonStoreUnavailable || d.ReasonCode == ReasonStoreTimeout)
}

// QuotaStatus is the result of a quota sufficiency check. Remaining is
// UnlimitedQuota when the limit is unlimited.
type QuotaStatus struct {
	Sufficient bool  `json:"sufficient"`
	Used       int64 `json:"used"`
	Limit      int64 `json:"limit"`
	Remaining  int64 `json:"remaining"`
}

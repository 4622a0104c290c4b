package domain

import (
	"fmt"
	"regexp"
	"time"
)

// TenantStatus is the administrative state of a tenant.
type TenantStatus string

const (
	TenantActive   TenantStatus = "active"
	TenantInactive TenantStatus = "inactive"
)

func (s TenantStatus) IsValid() bool {
	return s == TenantActive || s == TenantInactive
}

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateTenantID enforces the accepted tenant identifier format.
func ValidateTenantID(id string) error {
	if id == "" {
		return fmt.Errorf("tenant id is required")
	}
	if !tenantIDPattern.MatchString(id) {
		return fmt.Errorf("invalid tenant id: must match %s", tenantIDPattern.String())
	}
	return nil
}

// Tenant is the billing/administrative container holding product
// activations, assets and user-role assignments.
//
// DisplayType is cosmetic: it drives UI labels and creation-time
// suggestions only. The permission engine never reads it; authorization
// is resolved exclusively through product activation, entitlement
// grants, asset ownership and roles.
type Tenant struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	DisplayType string       `json:"display_type,omitempty"`
	Status      TenantStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// QuotaState is the limit/used pair for one quota entitlement.
// A limit of UnlimitedQuota means the quota is never exhausted.
type QuotaState struct {
	Limit int64 `json:"limit"`
	Used  int64 `json:"used"`
}

// UnlimitedQuota is the sentinel limit for quotas without a cap.
const UnlimitedQuota int64 = -1

// TenantProduct is the activation record for one (tenant, product)
// pair, including the per-tenant entitlement grant state.
//
// TenantStatus is the owning tenant's status at read time; stores join
// it in so the product gate is a single lookup.
type TenantProduct struct {
	TenantID     string                `json:"tenant_id"`
	ProductCode  string                `json:"product_code"`
	Enabled      bool                  `json:"enabled"`
	Features     map[string]bool       `json:"features,omitempty"`
	Quotas       map[string]QuotaState `json:"quotas,omitempty"`
	Services     map[string]bool       `json:"services,omitempty"`
	EnabledAt    time.Time             `json:"enabled_at"`
	TenantStatus TenantStatus          `json:"tenant_status"`
}

// FeatureGranted reports whether the feature flag is present and on.
func (tp *TenantProduct) FeatureGranted(code string) bool {
	if tp == nil || tp.Features == nil {
		return false
	}
	return tp.Features[code]
}

// ServiceGranted reports whether the value-added service is present and on.
func (tp *TenantProduct) ServiceGranted(code string) bool {
	if tp == nil || tp.Services == nil {
		return false
	}
	return tp.Services[code]
}

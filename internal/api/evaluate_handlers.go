package api

import (
	"encoding/json"
	"net/http"

	"github.com/archvision/entgate/internal/domain"
	"github.com/archvision/entgate/internal/engine"
	"github.com/archvision/entgate/internal/service"
	"github.com/archvision/entgate/internal/store"
)

// Handler handles evaluation and administration HTTP requests.
type Handler struct {
	Engine *engine.Engine
	Admin  *service.AdminService
	Store  store.Store
}

// RegisterRoutes registers all routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Evaluation
	mux.HandleFunc("POST /v1/evaluate", h.Evaluate)
	mux.HandleFunc("POST /v1/evaluate/batch", h.EvaluateBatch)
	mux.HandleFunc("POST /v1/quotas/check", h.CheckQuota)
	mux.HandleFunc("POST /v1/quotas/consume", h.ConsumeQuota)

	// Administration
	mux.HandleFunc("POST /v1/tenants", h.CreateTenant)
	mux.HandleFunc("GET /v1/tenants", h.ListTenants)
	mux.HandleFunc("GET /v1/tenants/{id}", h.GetTenant)
	mux.HandleFunc("PUT /v1/tenants/{id}/status", h.SetTenantStatus)

	mux.HandleFunc("POST /v1/tenants/{id}/products/{code}", h.EnableProduct)
	mux.HandleFunc("DELETE /v1/tenants/{id}/products/{code}", h.DisableProduct)
	mux.HandleFunc("PUT /v1/tenants/{id}/products/{code}/grants", h.SetGrant)

	mux.HandleFunc("POST /v1/assets", h.CreateAsset)
	mux.HandleFunc("GET /v1/tenants/{id}/assets", h.ListAssets)
	mux.HandleFunc("DELETE /v1/assets/{type}/{id}", h.DeleteAsset)

	mux.HandleFunc("POST /v1/tenants/{id}/roles", h.UpsertRole)
	mux.HandleFunc("GET /v1/tenants/{id}/roles", h.ListRoles)
	mux.HandleFunc("PUT /v1/tenants/{id}/users/{user}/role", h.AssignRole)
	mux.HandleFunc("DELETE /v1/tenants/{id}/users/{user}/role", h.UnassignRole)

	// Health
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", h.HealthLive)
	mux.HandleFunc("GET /health/ready", h.HealthReady)
}

// evaluateRequest is the wire form of an EvaluationContext.
type evaluateRequest struct {
	TenantID    string `json:"tenant_id"`
	ProductCode string `json:"product_code"`
	Action      string `json:"action"`
	UserID      string `json:"user_id"`
	FeatureCode string `json:"feature_code,omitempty"`
	AssetType   string `json:"asset_type,omitempty"`
	AssetID     string `json:"asset_id,omitempty"`
}

func (r evaluateRequest) context() domain.EvaluationContext {
	return domain.EvaluationContext{
		TenantID:    r.TenantID,
		ProductCode: r.ProductCode,
		Action:      r.Action,
		UserID:      r.UserID,
		FeatureCode: r.FeatureCode,
		Asset: domain.AssetRef{
			Type: domain.AssetType(r.AssetType),
			ID:   r.AssetID,
		},
	}
}

// Evaluate handles POST /v1/evaluate. Denials come back as 200 with
// allowed=false; structurally invalid contexts too, with reason code
// invalid_context.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	decision, err := h.Engine.CheckPermission(r.Context(), req.context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decision)
}

// EvaluateBatch handles POST /v1/evaluate/batch. Decisions come back
// in request order.
func (h *Handler) EvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []evaluateRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "items is required", http.StatusBadRequest)
		return
	}
	if len(req.Items) > 256 {
		http.Error(w, "too many items (max 256)", http.StatusBadRequest)
		return
	}

	contexts := make([]domain.EvaluationContext, len(req.Items))
	for i, item := range req.Items {
		contexts[i] = item.context()
	}

	decisions := h.Engine.CheckPermissionBatch(r.Context(), contexts)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"decisions": decisions})
}

type quotaRequest struct {
	TenantID    string `json:"tenant_id"`
	ProductCode string `json:"product_code"`
	QuotaCode   string `json:"quota_code"`
	Amount      int64  `json:"amount"`
}

// CheckQuota handles POST /v1/quotas/check.
func (h *Handler) CheckQuota(w http.ResponseWriter, r *http.Request) {
	var req quotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Amount == 0 {
		req.Amount = 1
	}

	status, err := h.Engine.CheckQuota(r.Context(), req.TenantID, req.ProductCode, req.QuotaCode, req.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// ConsumeQuota handles POST /v1/quotas/consume. The response carries
// sufficient=false with status 200 when the quota cannot absorb the
// amount; nothing is consumed in that case.
func (h *Handler) ConsumeQuota(w http.ResponseWriter, r *http.Request) {
	var req quotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Amount == 0 {
		req.Amount = 1
	}

	status, err := h.Admin.ConsumeQuota(r.Context(), req.TenantID, req.ProductCode, req.QuotaCode, req.Amount)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.Store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// HealthLive handles GET /health/live - liveness probe
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// HealthReady handles GET /health/ready - readiness probe
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		http.Error(w, "store unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/archvision/entgate/internal/domain"
	"github.com/archvision/entgate/internal/service"
	"github.com/archvision/entgate/internal/store"
)

// writeStoreError maps store errors to HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// CreateTenant handles POST /v1/tenants
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		DisplayType string `json:"display_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	tenant, suggestions, err := h.Admin.CreateTenant(r.Context(), service.CreateTenantRequest{
		ID:          req.ID,
		Name:        req.Name,
		DisplayType: req.DisplayType,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"tenant":             tenant,
		"suggested_products": suggestions,
	})
}

// ListTenants handles GET /v1/tenants
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tenants, err := h.Admin.ListTenants(r.Context(), limit, offset)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"tenants": tenants})
}

// GetTenant handles GET /v1/tenants/{id}
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.Admin.GetTenant(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenant)
}

// SetTenantStatus handles PUT /v1/tenants/{id}/status
func (h *Handler) SetTenantStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	status := domain.TenantStatus(req.Status)
	if !status.IsValid() {
		http.Error(w, "status must be active or inactive", http.StatusBadRequest)
		return
	}

	tenant, err := h.Admin.SetTenantStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenant)
}

// EnableProduct handles POST /v1/tenants/{id}/products/{code}
func (h *Handler) EnableProduct(w http.ResponseWriter, r *http.Request) {
	tp, err := h.Admin.EnableProduct(r.Context(), r.PathValue("id"), r.PathValue("code"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeStoreError(w, err)
		} else {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tp)
}

// DisableProduct handles DELETE /v1/tenants/{id}/products/{code}
func (h *Handler) DisableProduct(w http.ResponseWriter, r *http.Request) {
	tp, err := h.Admin.DisableProduct(r.Context(), r.PathValue("id"), r.PathValue("code"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tp)
}

// SetGrant handles PUT /v1/tenants/{id}/products/{code}/grants.
// One endpoint covers all three entitlement kinds; quota grants carry
// a limit instead of a granted flag.
func (h *Handler) SetGrant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind    string `json:"kind"`
		Code    string `json:"code"`
		Granted bool   `json:"granted"`
		Limit   int64  `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	tenantID, productCode := r.PathValue("id"), r.PathValue("code")

	var err error
	switch domain.EntitlementKind(req.Kind) {
	case domain.KindFeature:
		err = h.Admin.SetFeature(r.Context(), tenantID, productCode, req.Code, req.Granted)
	case domain.KindService:
		err = h.Admin.SetService(r.Context(), tenantID, productCode, req.Code, req.Granted)
	case domain.KindQuota:
		err = h.Admin.SetQuotaLimit(r.Context(), tenantID, productCode, req.Code, req.Limit)
	default:
		http.Error(w, "kind must be feature, quota or service", http.StatusBadRequest)
		return
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeStoreError(w, err)
		} else {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateAsset handles POST /v1/assets
func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type          string            `json:"type"`
		ID            string            `json:"id"`
		OwnerTenantID string            `json:"owner_tenant_id"`
		Metadata      map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	asset, err := h.Admin.CreateAsset(r.Context(), &domain.Asset{
		Type:          domain.AssetType(req.Type),
		ID:            req.ID,
		OwnerTenantID: req.OwnerTenantID,
		Metadata:      req.Metadata,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeStoreError(w, err)
		} else {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(asset)
}

// ListAssets handles GET /v1/tenants/{id}/assets
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assetType := domain.AssetType(r.URL.Query().Get("type"))
	assets, err := h.Admin.ListAssets(r.Context(), r.PathValue("id"), assetType)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"assets": assets})
}

// DeleteAsset handles DELETE /v1/assets/{type}/{id}
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	err := h.Admin.DeleteAsset(r.Context(), domain.AssetType(r.PathValue("type")), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertRole handles POST /v1/tenants/{id}/roles
func (h *Handler) UpsertRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	role, err := h.Admin.UpsertRole(r.Context(), &domain.Role{
		TenantID:    r.PathValue("id"),
		Name:        req.Name,
		Permissions: req.Permissions,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(role)
}

// ListRoles handles GET /v1/tenants/{id}/roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Admin.ListRoles(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"roles": roles})
}

// AssignRole handles PUT /v1/tenants/{id}/users/{user}/role
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoleID string `json:"role_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.RoleID == "" {
		http.Error(w, "role_id is required", http.StatusBadRequest)
		return
	}

	if err := h.Admin.AssignRole(r.Context(), r.PathValue("user"), r.PathValue("id"), req.RoleID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnassignRole handles DELETE /v1/tenants/{id}/users/{user}/role
func (h *Handler) UnassignRole(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.UnassignRole(r.Context(), r.PathValue("user"), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

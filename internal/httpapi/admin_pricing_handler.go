package httpapi

import (
	"encoding/json"
	"net/http"

	"relaygate/internal/domain"
)

type pricingRequest struct {
	ProviderID    string   `json:"providerId"`
	Model         string   `json:"model"`
	Input         float64  `json:"input"`
	Output        float64  `json:"output"`
	Cached        *float64 `json:"cached,omitempty"`
	Reasoning     *float64 `json:"reasoning,omitempty"`
	CacheCreation *float64 `json:"cacheCreation,omitempty"`
}

func (deps *Dependencies) handleListPricing(w http.ResponseWriter, r *http.Request) {
	pricing, err := deps.Pricing.All(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to list pricing")
		return
	}
	writeJSON(w, http.StatusOK, pricing)
}

// handleUpsertPricing sets the per-token USD rates used to cost a
// request's usage.TokenCounts. A provider/model pair with no pricing row
// simply costs 0 — see usage.CostOf.
func (deps *Dependencies) handleUpsertPricing(w http.ResponseWriter, r *http.Request) {
	var req pricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProviderID == "" || req.Model == "" {
		writeErr(w, http.StatusBadRequest, "providerId and model are required")
		return
	}

	p := &domain.PricingEntry{
		ProviderID:    req.ProviderID,
		Model:         req.Model,
		Input:         req.Input,
		Output:        req.Output,
		Cached:        req.Cached,
		Reasoning:     req.Reasoning,
		CacheCreation: req.CacheCreation,
	}
	if err := deps.Pricing.Upsert(r.Context(), p); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to save pricing")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (deps *Dependencies) handleDeletePricing(w http.ResponseWriter, r *http.Request) {
	providerID := r.URL.Query().Get("providerId")
	model := r.URL.Query().Get("model")
	if providerID == "" || model == "" {
		writeErr(w, http.StatusBadRequest, "providerId and model query params are required")
		return
	}
	if err := deps.Pricing.Delete(r.Context(), providerID, model); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to delete pricing")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

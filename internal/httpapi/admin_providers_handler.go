package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"relaygate/internal/domain"
	"relaygate/internal/storage"
)

type providerRequest struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	BaseURL         string   `json:"baseUrl"`
	AlternateURLs   []string `json:"alternateUrls,omitempty"`
	DefaultHeaders  domain.JSONB `json:"defaultHeaders,omitempty"`
	OAuthTokenURL   string   `json:"oauthTokenUrl,omitempty"`
	OAuthClientID   string   `json:"oauthClientId,omitempty"`
	PreferredFormat string   `json:"preferredFormat"`
}

func (deps *Dependencies) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := deps.Providers.List(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to list providers")
		return
	}
	writeJSON(w, http.StatusOK, providers)
}

// handleUpsertProvider creates or updates a provider node. Nothing seeds
// providers at startup: every provider row, whether a built-in provider
// id or a generic OpenAI-/Anthropic-compatible node pointed at a
// self-hosted model, is registered through this surface.
func (deps *Dependencies) handleUpsertProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" || req.BaseURL == "" {
		writeErr(w, http.StatusBadRequest, "id and baseUrl are required")
		return
	}

	p := &domain.Provider{
		ID:              req.ID,
		Name:            req.Name,
		BaseURL:         req.BaseURL,
		AlternateURLs:   req.AlternateURLs,
		DefaultHeaders:  req.DefaultHeaders,
		OAuthTokenURL:   req.OAuthTokenURL,
		OAuthClientID:   req.OAuthClientID,
		PreferredFormat: req.PreferredFormat,
	}
	if err := deps.Providers.Upsert(r.Context(), p); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to save provider")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (deps *Dependencies) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := deps.Providers.Delete(r.Context(), id); err != nil {
		if storage.IsNotFound(err) {
			writeErr(w, http.StatusNotFound, "provider not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "failed to delete provider")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

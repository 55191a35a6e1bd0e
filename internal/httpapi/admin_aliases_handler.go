package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"relaygate/internal/domain"
	"relaygate/internal/storage"
)

type aliasRequest struct {
	Alias      string `json:"alias"`
	ProviderID string `json:"providerId"`
	Model      string `json:"model"`
	Enabled    bool   `json:"enabled"`
}

func (deps *Dependencies) handleListAliases(w http.ResponseWriter, r *http.Request) {
	aliases, err := deps.Aliases.List(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to list aliases")
		return
	}
	writeJSON(w, http.StatusOK, aliases)
}

// handleUpsertAlias creates or updates an alias. The alias name is the
// path key in the underlying table, so creating one with an existing name
// overwrites it in place rather than erroring.
func (deps *Dependencies) handleUpsertAlias(w http.ResponseWriter, r *http.Request) {
	var req aliasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Alias == "" || req.ProviderID == "" || req.Model == "" {
		writeErr(w, http.StatusBadRequest, "alias, providerId and model are required")
		return
	}
	if _, err := deps.Providers.GetByID(r.Context(), req.ProviderID); err != nil {
		if storage.IsNotFound(err) {
			writeErr(w, http.StatusBadRequest, "unknown providerId")
			return
		}
		writeErr(w, http.StatusInternalServerError, "failed to look up provider")
		return
	}

	a := &domain.ModelAlias{
		ID:         uuid.New().String(),
		Alias:      req.Alias,
		ProviderID: req.ProviderID,
		Model:      req.Model,
		Enabled:    req.Enabled,
	}
	if err := deps.Aliases.Upsert(r.Context(), a); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to save alias")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (deps *Dependencies) handleDeleteAlias(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")
	if err := deps.Aliases.Delete(r.Context(), alias); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to delete alias")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"relaygate/internal/domain"
)

type comboRequest struct {
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

func (deps *Dependencies) handleListCombos(w http.ResponseWriter, r *http.Request) {
	combos, err := deps.Combos.List(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to list combos")
		return
	}
	writeJSON(w, http.StatusOK, combos)
}

// handleUpsertCombo creates or replaces a named fallback chain. The chain
// is stored as an ordered list of model strings (each an alias or an
// explicit "provider/model"); resolving it
// at request time is resolver.go's job, not this handler's.
func (deps *Dependencies) handleUpsertCombo(w http.ResponseWriter, r *http.Request) {
	var req comboRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || len(req.Models) == 0 {
		writeErr(w, http.StatusBadRequest, "name and at least one model are required")
		return
	}

	c := &domain.Combo{
		ID:     uuid.New().String(),
		Name:   req.Name,
		Models: domain.StringList(req.Models),
	}
	if err := deps.Combos.Upsert(r.Context(), c); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to save combo")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (deps *Dependencies) handleDeleteCombo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := deps.Combos.Delete(r.Context(), name); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to delete combo")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

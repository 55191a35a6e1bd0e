package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"relaygate/internal/domain"
	"relaygate/internal/storage"
)

type connectionRequest struct {
	ProviderID     string         `json:"providerId"`
	AuthType       domain.AuthType `json:"authType"`
	DisplayName    string         `json:"displayName"`
	Priority       int            `json:"priority"`
	GlobalPriority *int           `json:"globalPriority,omitempty"`
	DefaultModel   string         `json:"defaultModel,omitempty"`
	Secrets        domain.Secrets `json:"secrets,omitempty"`
	IsActive       bool           `json:"isActive"`
}

// handleListConnections lists every account under every provider, or just
// one provider's if ?providerId= is set.
func (deps *Dependencies) handleListConnections(w http.ResponseWriter, r *http.Request) {
	providerID := r.URL.Query().Get("providerId")

	var conns []*domain.Connection
	var err error
	if providerID != "" {
		conns, err = deps.Connections.ListByProvider(r.Context(), providerID)
	} else {
		conns, err = deps.Connections.ListAll(r.Context())
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to list connections")
		return
	}
	redacted := make([]domain.Connection, 0, len(conns))
	for _, c := range conns {
		redacted = append(redacted, c.Redacted())
	}
	writeJSON(w, http.StatusOK, redacted)
}

// handleCreateConnection adds an account for a provider. The provider must
// already exist — a connection with no matching provider row has nowhere
// to get its base URL or family conventions from.
func (deps *Dependencies) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProviderID == "" || req.DisplayName == "" {
		writeErr(w, http.StatusBadRequest, "providerId and displayName are required")
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

	conn := &domain.Connection{
		ID:             uuid.New(),
		ProviderID:     req.ProviderID,
		AuthType:       req.AuthType,
		DisplayName:    req.DisplayName,
		Priority:       req.Priority,
		GlobalPriority: req.GlobalPriority,
		DefaultModel:   req.DefaultModel,
		Secrets:        req.Secrets,
		IsActive:       req.IsActive,
	}
	if err := deps.Connections.Create(r.Context(), conn); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to create connection")
		return
	}
	writeJSON(w, http.StatusCreated, conn.Redacted())
}

// handleUpdateConnection replaces a connection's mutable fields, including
// its secrets when the caller supplies them.
func (deps *Dependencies) handleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid connection id")
		return
	}

	existing, err := deps.Connections.GetByID(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeErr(w, http.StatusNotFound, "connection not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "failed to load connection")
		return
	}

	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing.DisplayName = req.DisplayName
	existing.Priority = req.Priority
	existing.GlobalPriority = req.GlobalPriority
	existing.DefaultModel = req.DefaultModel
	existing.IsActive = req.IsActive
	if req.AuthType != "" {
		existing.AuthType = req.AuthType
	}

	if err := deps.Connections.Update(r.Context(), existing); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to update connection")
		return
	}
	if (req.Secrets != domain.Secrets{}) {
		if err := deps.Connections.UpdateSecrets(r.Context(), id, req.Secrets); err != nil {
			writeErr(w, http.StatusInternalServerError, "failed to update connection secrets")
			return
		}
	}
	writeJSON(w, http.StatusOK, existing.Redacted())
}

// handleDeleteConnection removes an account entirely. The selector will
// simply stop seeing it on the next lookup.
func (deps *Dependencies) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid connection id")
		return
	}
	if err := deps.Connections.Delete(r.Context(), id); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to delete connection")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

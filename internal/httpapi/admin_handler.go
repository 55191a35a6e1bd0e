package httpapi

import (
	"encoding/json"
	"net/http"

	"relaygate/internal/auth"
	"relaygate/internal/storage"
)

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErr(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// handleAdminLogin exchanges the operator's password for a session JWT.
// relaygate has one operator, so there is no username and no lockout
// policy beyond whatever sits in front of this endpoint at the network
// layer.
func (deps *Dependencies) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := deps.Settings.Get(r.Context())
	if err != nil {
		if storage.IsNotFound(err) {
			writeErr(w, http.StatusUnauthorized, "admin password not set")
			return
		}
		writeErr(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	if !auth.CheckPassword(settings.PasswordHash, req.Password) {
		writeErr(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, exp, err := auth.GenerateSession(deps.JWTSecret, deps.SessionTTL)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to issue session")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// handleAdminSettings returns the non-secret operator settings.
func (deps *Dependencies) handleAdminSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := deps.Settings.Get(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleAdminChangePassword re-hashes the operator password after
// verifying the current one.
func (deps *Dependencies) handleAdminChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NewPassword == "" {
		writeErr(w, http.StatusBadRequest, "newPassword is required")
		return
	}

	settings, err := deps.Settings.Get(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if !auth.CheckPassword(settings.PasswordHash, req.CurrentPassword) {
		writeErr(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	settings.PasswordHash = hash
	if err := deps.Settings.Upsert(r.Context(), settings); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Package middleware provides the HTTP middleware the admin/config
// surface is wrapped in.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"relaygate/internal/auth"
	"relaygate/internal/utils"
)

type contextKey string

const sessionKey contextKey = "relaygate.session"

// RequireSession validates the operator's session JWT, signed with
// secret, on the Authorization header. relaygate has a single operator
// role — there is nothing to branch on beyond "valid session or not".
func RequireSession(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "missing session token")
				return
			}
			if err := auth.ValidateSession(tokenString, secret); err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HasSession reports whether ctx carries a validated operator session.
func HasSession(ctx context.Context) bool {
	ok, _ := ctx.Value(sessionKey).(bool)
	return ok
}

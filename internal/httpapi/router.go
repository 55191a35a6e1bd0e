// Package httpapi wires the chat-completion endpoint and the operator
// admin surface onto a chi router.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"relaygate/internal/chathandler"
	"relaygate/internal/middleware"
	"relaygate/internal/storage"
	"relaygate/internal/utils"
)

// Dependencies aggregates the services the HTTP layer needs. It is built by
// cmd/gateway once the database, credential selector, provider registry,
// and background workers exist, then handed to NewRouter.
type Dependencies struct {
	Chat        *chathandler.Handler
	Connections *storage.ConnectionRepository
	Providers   *storage.ProviderRepository
	Aliases     *storage.AliasRepository
	Combos      *storage.ComboRepository
	Pricing     *storage.PricingRepository
	Settings    *storage.SettingsRepository
	Log         *utils.Logger

	JWTSecret  []byte
	SessionTTL time.Duration
}

// NewRouter builds the chi router. The chat endpoint is unauthenticated at
// this layer (see DESIGN.md's Open Question decision on multi-tenant API
// keys); the /admin config surface is gated behind a bcrypt-password
// login that exchanges for a short-lived session JWT.
func NewRouter(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(10 * time.Minute))

	r.Get("/health", handleHealth)

	r.Post("/v1/chat/completions", deps.Chat.ServeHTTP)
	r.Post("/v1/messages", deps.Chat.ServeHTTP)
	r.Post("/v1beta/{modelAndAction}", deps.Chat.ServeHTTPGemini)
	r.Post("/v1beta/models/{modelAndAction}", deps.Chat.ServeHTTPGemini)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/auth/login", deps.handleAdminLogin)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(deps.JWTSecret))
			registerAdminRoutes(r, deps)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

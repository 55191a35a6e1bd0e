package httpapi

import "github.com/go-chi/chi/v5"

// registerAdminRoutes wires the CRUD surface for everything an operator
// configures: accounts, provider nodes, aliases, combos, pricing, and
// their own settings. Every route here already sits behind
// middleware.RequireSession.
func registerAdminRoutes(r chi.Router, deps *Dependencies) {
	r.Get("/settings", deps.handleAdminSettings)
	r.Post("/settings/password", deps.handleAdminChangePassword)

	r.Route("/connections", func(r chi.Router) {
		r.Get("/", deps.handleListConnections)
		r.Post("/", deps.handleCreateConnection)
		r.Put("/{id}", deps.handleUpdateConnection)
		r.Delete("/{id}", deps.handleDeleteConnection)
	})

	r.Route("/providers", func(r chi.Router) {
		r.Get("/", deps.handleListProviders)
		r.Put("/{id}", deps.handleUpsertProvider)
		r.Delete("/{id}", deps.handleDeleteProvider)
	})

	r.Route("/aliases", func(r chi.Router) {
		r.Get("/", deps.handleListAliases)
		r.Put("/{alias}", deps.handleUpsertAlias)
		r.Delete("/{alias}", deps.handleDeleteAlias)
	})

	r.Route("/combos", func(r chi.Router) {
		r.Get("/", deps.handleListCombos)
		r.Put("/{name}", deps.handleUpsertCombo)
		r.Delete("/{name}", deps.handleDeleteCombo)
	})

	r.Route("/pricing", func(r chi.Router) {
		r.Get("/", deps.handleListPricing)
		r.Put("/", deps.handleUpsertPricing)
		r.Delete("/", deps.handleDeletePricing)
	})
}

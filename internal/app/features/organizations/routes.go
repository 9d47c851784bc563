// internal/app/features/organizations/routes.go
package organizations

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes serves the collection endpoints (mounted at "/organizations").
// limit wraps the mutating routes; pass nil to leave them unthrottled.
func Routes(h *Handler, limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.With(optional(limit)...).Post("/", h.HandleCreate)
	r.Get("/{address}", h.ServeForMember)
	return r
}

// ByNameRoutes serves the single-organization endpoints (mounted at
// "/organization").
func ByNameRoutes(h *Handler, limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeByName)
	r.With(optional(limit)...).Post("/{name}/members", h.HandleInvite)
	r.Get("/{name}/transactions", h.ServeTransactions)
	return r
}

func optional(mw func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	if mw == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{mw}
}

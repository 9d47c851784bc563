// internal/app/features/transactions/routes.go
package transactions

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the proposal endpoints under "/transaction". limit wraps
// the mutating routes; pass nil to leave them unthrottled.
func Routes(h *Handler, limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		if limit != nil {
			pr.Use(limit)
		}
		pr.Post("/initiate", h.HandleInitiate)
		pr.Post("/confirm", h.HandleConfirm)
	})

	r.Get("/{id}", h.ServeView)
	r.Get("/{id}/history", h.ServeHistory)
	return r
}

// internal/app/features/ws/routes.go
package ws

import "github.com/go-chi/chi/v5"

// Routes mounts the push channel (typically under "/ws").
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/organization/{organization}/{address}", h.ServeWS)
	return r
}

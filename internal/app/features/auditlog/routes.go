// internal/app/features/auditlog/routes.go
package auditlog

import "github.com/go-chi/chi/v5"

// Routes mounts the audit log routes (typically under "/audit").
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{organization}", h.ServeList)
	return r
}

// internal/app/features/transactions/view.go
package transactions

import (
	"net/http"

	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"github.com/dalemusser/cosign/internal/app/features/shared/request"
	"github.com/dalemusser/cosign/internal/app/store/audit"
	"github.com/dalemusser/cosign/internal/app/system/timeouts"
)

// ServeView handles GET /transaction/{id}.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "get proposal")
	defer cancel()

	p, err := h.Coord.GetProposal(ctx, request.PathParam(r, "id"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, p)
}

// ServeHistory handles GET /transaction/{id}/history: the audit trail of
// the proposal, oldest first.
func (h *Handler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "proposal history")
	defer cancel()

	id := request.PathParam(r, "id")
	if _, err := h.Coord.GetProposal(ctx, id); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	events := []audit.Event{}
	if h.History != nil {
		var err error
		if events, err = h.History.History(ctx, id); err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
	}
	uierrors.WriteJSON(w, http.StatusOK, events)
}

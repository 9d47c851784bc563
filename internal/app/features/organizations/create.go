// internal/app/features/organizations/create.go
package organizations

import (
	"net/http"

	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"github.com/dalemusser/cosign/internal/app/features/shared/request"
	"github.com/dalemusser/cosign/internal/app/system/timeouts"
)

// HandleCreate handles POST /organizations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "create organization")
	defer cancel()

	org, err := h.Coord.CreateOrganization(ctx, req.Name, req.addresses(), req.Threshold)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, org)
}

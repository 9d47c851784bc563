// internal/app/features/transactions/initiate.go
package transactions

import (
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"github.com/dalemusser/cosign/internal/app/features/shared/request"
	"github.com/dalemusser/cosign/internal/app/system/timeouts"
)

// HandleInitiate handles POST /transaction/initiate and answers 202 with
// the new proposal.
func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.BadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.OrganizationName) == "" {
		h.ErrLog.BadRequest(w, "organization_name is required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "initiate proposal")
	defer cancel()

	p, err := h.Coord.InitiateProposal(ctx, req.OrganizationName, req.Initiator, req.Payload)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusAccepted, p)
}

// internal/app/features/transactions/confirm.go
package transactions

import (
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"github.com/dalemusser/cosign/internal/app/features/shared/request"
	"github.com/dalemusser/cosign/internal/app/system/timeouts"
)

// HandleConfirm handles POST /transaction/confirm. Duplicate and late
// approvals are answered 409 with the benign flag and the current proposal.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.BadRequest(w, err.Error())
		return
	}
	if req.ProposalID == "" && strings.TrimSpace(req.OrganizationName) == "" {
		h.ErrLog.BadRequest(w, "organization_name or proposal_id is required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Approval(), h.Log, "submit approval")
	defer cancel()

	res, err := h.Coord.Confirm(ctx, req.OrganizationName, req.ProposalID, req.Address)
	if err != nil {
		h.ErrLog.WriteWithProposal(w, r, err, &res.Proposal)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, res.Proposal)
}

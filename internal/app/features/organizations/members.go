// internal/app/features/organizations/members.go
package organizations

import (
	"net/http"

	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"github.com/dalemusser/cosign/internal/app/features/shared/request"
	"github.com/dalemusser/cosign/internal/app/system/timeouts"
)

// HandleInvite handles POST /organization/{name}/members. The new member
// may approve proposals that are still pending; thresholds do not change.
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "invite member")
	defer cancel()

	org, err := h.Coord.InviteMember(ctx, request.PathParam(r, "name"), req.Address)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, org)
}

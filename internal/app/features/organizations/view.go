// internal/app/features/organizations/view.go
package organizations

import (
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"github.com/dalemusser/cosign/internal/app/features/shared/request"
	"github.com/dalemusser/cosign/internal/app/system/address"
	"github.com/dalemusser/cosign/internal/app/system/timeouts"
)

// ServeByName handles GET /organization?name=...
func (h *Handler) ServeByName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		h.ErrLog.BadRequest(w, "name query parameter is required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "get organization")
	defer cancel()

	org, err := h.Coord.GetOrganization(ctx, name)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, org)
}

// ServeForMember handles GET /organizations/{address}: every organization
// the address belongs to, in name order.
func (h *Handler) ServeForMember(w http.ResponseWriter, r *http.Request) {
	addr := request.PathParam(r, "address")
	if err := address.Validate(addr); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "list organizations for member")
	defer cancel()

	orgs, err := h.Coord.OrganizationsFor(ctx, addr)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, orgs)
}

// ServeTransactions handles GET /organization/{name}/transactions. Clients
// call it after (re)connecting the push channel to catch up.
func (h *Handler) ServeTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "list proposals")
	defer cancel()

	list, err := h.Coord.ListProposals(ctx, request.PathParam(r, "name"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, list)
}

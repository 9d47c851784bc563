// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"github.com/dalemusser/cosign/internal/app/features/shared/request"
	"github.com/dalemusser/cosign/internal/app/store/audit"
	"github.com/dalemusser/cosign/internal/app/system/address"
	"github.com/dalemusser/cosign/internal/app/system/timeouts"
)

const pageSize = 50

// ServeList handles GET /audit/{organization}, newest first, with optional
// category, event_type, actor, start_date, end_date and page filters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	org := request.PathParam(r, "organization")
	q := r.URL.Query()

	category := strings.TrimSpace(q.Get("category"))
	eventType := strings.TrimSpace(q.Get("event_type"))
	actor := strings.TrimSpace(q.Get("actor"))
	startDate := strings.TrimSpace(q.Get("start_date"))
	endDate := strings.TrimSpace(q.Get("end_date"))

	if category != "" && eventTypesForCategory(category) == nil {
		h.ErrLog.BadRequest(w, "unknown category "+strconv.Quote(category))
		return
	}
	if eventType != "" && !validEventType(category, eventType) {
		h.ErrLog.BadRequest(w, "unknown event_type "+strconv.Quote(eventType))
		return
	}

	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	filter := audit.QueryFilter{
		Organization: org,
		Category:     category,
		EventType:    eventType,
		Limit:        pageSize,
		Offset:       int64((page - 1) * pageSize),
	}
	if actor != "" {
		norm, err := address.Normalize(actor)
		if err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		filter.Actor = norm
	}
	if startDate != "" {
		t, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			h.ErrLog.BadRequest(w, "start_date must be YYYY-MM-DD")
			return
		}
		filter.StartTime = &t
	}
	if endDate != "" {
		t, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			h.ErrLog.BadRequest(w, "end_date must be YYYY-MM-DD")
			return
		}
		// End of day
		endOfDay := t.Add(24*time.Hour - time.Second)
		filter.EndTime = &endOfDay
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "audit log list")
	defer cancel()

	if _, err := h.Coord.GetOrganization(ctx, org); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	events, err := h.Audit.Query(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	total, err := h.Audit.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}

	uierrors.WriteJSON(w, http.StatusOK, listResponse{
		Organization: org,
		Events:       events,
		Total:        total,
		Page:         page,
		TotalPages:   totalPages,
		HasNext:      page < totalPages,
	})
}

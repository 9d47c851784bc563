package health

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"github.com/dalemusser/cosign/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// BusStatus reports the cross-instance event bus. It is nil when the
// service runs without one.
type BusStatus interface {
	Connected() bool
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client Pinger
	Bus    BusStatus
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. bus may be nil.
func NewHandler(client Pinger, bus BusStatus, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Bus:    bus,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Bus      string `json:"bus"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "bus":"connected" }
//
// bus is "disabled" without NATS. A lost bus connection degrades the
// status but still answers 200, since this instance keeps serving its own
// subscribers. On DB failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
		Bus:      "disabled",
	}

	if h.Bus != nil {
		if h.Bus.Connected() {
			resp.Bus = "connected"
		} else {
			resp.Bus = "disconnected"
			resp.Status = "degraded"
		}
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		uierrors.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	uierrors.WriteJSON(w, http.StatusOK, resp)
}

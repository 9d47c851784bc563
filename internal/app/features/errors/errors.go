// internal/app/features/errors/errors.go
//
// Package errors renders coordinator failures as JSON error envelopes.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/cosign/internal/app/coordinator"
	"github.com/dalemusser/cosign/internal/domain/models"
	"go.uber.org/zap"
)

// KindInvalidRequest is used for bodies and parameters that cannot be parsed.
const KindInvalidRequest = "invalid_request"

// Response is the body of every non-2xx reply.
type Response struct {
	Error    string           `json:"error"`
	Message  string           `json:"message"`
	Benign   bool             `json:"benign,omitempty"`
	Proposal *models.Proposal `json:"proposal,omitempty"`
}

// Status maps an error kind to its HTTP status code.
func Status(kind string) int {
	switch kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case coordinator.KindInvalidThreshold, coordinator.KindInvalidName, coordinator.KindInvalidAddress:
		return http.StatusUnprocessableEntity
	case coordinator.KindNotFound, coordinator.KindOrganizationNotFound:
		return http.StatusNotFound
	case coordinator.KindNotAMember:
		return http.StatusForbidden
	case coordinator.KindAlreadyExists, coordinator.KindAlreadyMember,
		coordinator.KindAlreadyConfirmed, coordinator.KindDuplicateApproval,
		coordinator.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// ErrorLogger writes error envelopes and logs server-side failures.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger returns an ErrorLogger bound to logger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{Log: logger}
}

// Write classifies err and writes the matching envelope.
func (e *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	e.WriteWithProposal(w, r, err, nil)
}

// WriteWithProposal is Write for approval failures, where the current
// proposal snapshot is returned alongside benign rejections.
func (e *ErrorLogger) WriteWithProposal(w http.ResponseWriter, r *http.Request, err error, p *models.Proposal) {
	kind := coordinator.Kind(err)
	status := Status(kind)

	resp := Response{Error: kind, Message: err.Error()}
	if coordinator.Benign(err) {
		resp.Benign = true
		resp.Proposal = p
	}
	if status >= http.StatusInternalServerError {
		e.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		resp.Message = "internal error"
	}
	WriteJSON(w, status, resp)
}

// BadRequest writes a 400 invalid_request envelope.
func (e *ErrorLogger) BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, Response{Error: KindInvalidRequest, Message: msg})
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

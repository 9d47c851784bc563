// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"

	"github.com/dalemusser/cosign/internal/app/coordinator"
	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"github.com/dalemusser/cosign/internal/app/store/audit"
	"go.uber.org/zap"
)

// Reader is the audit query surface this feature needs.
type Reader interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
}

// Handler serves the audit trail of an organization.
type Handler struct {
	Coord  *coordinator.Coordinator
	Audit  Reader
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler constructs an audit log Handler.
func NewHandler(coord *coordinator.Coordinator, reader Reader, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Coord:  coord,
		Audit:  reader,
		ErrLog: errLog,
		Log:    logger,
	}
}

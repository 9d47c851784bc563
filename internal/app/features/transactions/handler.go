// internal/app/features/transactions/handler.go
package transactions

import (
	"context"

	"github.com/dalemusser/cosign/internal/app/coordinator"
	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"github.com/dalemusser/cosign/internal/app/store/audit"
	"go.uber.org/zap"
)

// HistoryReader returns the recorded trail of one proposal.
type HistoryReader interface {
	History(ctx context.Context, proposalID string) ([]audit.Event, error)
}

// Handler serves the proposal ("transaction") endpoints.
type Handler struct {
	Coord   *coordinator.Coordinator
	History HistoryReader
	ErrLog  *uierrors.ErrorLogger
	Log     *zap.Logger
}

// NewHandler constructs a transactions Handler. history may be nil when
// audit records are not kept in the database.
func NewHandler(coord *coordinator.Coordinator, history HistoryReader, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Coord:   coord,
		History: history,
		ErrLog:  errLog,
		Log:     logger,
	}
}

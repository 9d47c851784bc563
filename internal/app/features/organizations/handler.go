// internal/app/features/organizations/handler.go
package organizations

import (
	"github.com/dalemusser/cosign/internal/app/coordinator"
	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"go.uber.org/zap"
)

// Handler is the feature-level entry point for Organizations.
type Handler struct {
	Coord  *coordinator.Coordinator
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler constructs a new Organizations handler bound to the coordinator.
func NewHandler(coord *coordinator.Coordinator, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Coord:  coord,
		ErrLog: errLog,
		Log:    logger,
	}
}

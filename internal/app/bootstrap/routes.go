// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/cosign/internal/app/coordinator"
	auditlogfeature "github.com/dalemusser/cosign/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/cosign/internal/app/features/errors"
	healthfeature "github.com/dalemusser/cosign/internal/app/features/health"
	organizationsfeature "github.com/dalemusser/cosign/internal/app/features/organizations"
	transactionsfeature "github.com/dalemusser/cosign/internal/app/features/transactions"
	wsfeature "github.com/dalemusser/cosign/internal/app/features/ws"
	"github.com/dalemusser/cosign/internal/app/store/audit"
	organizationstore "github.com/dalemusser/cosign/internal/app/store/organizations"
	proposalstore "github.com/dalemusser/cosign/internal/app/store/proposals"
	"github.com/dalemusser/cosign/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. The stores, the audit logger and the
// coordinator are built here and shared by every feature router.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	orgStore := organizationstore.New(db)
	propStore := proposalstore.New(db, orgStore)
	propStore.SetMaxRetries(appCfg.ApprovalMaxRetries)

	auditStore := audit.New(db)
	auditLogger := auditlog.New(auditStore, logger.Named("audit"), auditlog.Uniform(appCfg.AuditLog))

	coord := coordinator.New(orgStore, propStore, deps.Publisher(), auditLogger, deps.Metrics, logger.Named("coordinator"))

	// Create error logger for handlers.
	errLog := errorsfeature.NewErrorLogger(logger)

	var limit func(http.Handler) http.Handler
	if deps.Limiter != nil {
		limit = deps.Limiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
			errorsfeature.WriteJSON(w, http.StatusTooManyRequests, errorsfeature.Response{
				Error:   "rate_limited",
				Message: "too many requests; retry after the indicated delay",
			})
		})
	}

	r := chi.NewRouter()
	if appCfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(deps.Metrics.Middleware)

	// Health check endpoint for load balancers and orchestrators
	var bus healthfeature.BusStatus
	if deps.Bridge != nil {
		bus = deps.Bridge
	}
	healthHandler := healthfeature.NewHandler(deps.MongoClient, bus, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", deps.Metrics.Handler())

	// Organizations and membership
	orgHandler := organizationsfeature.NewHandler(coord, errLog, logger)
	r.Mount("/organizations", organizationsfeature.Routes(orgHandler, limit))
	r.Mount("/organization", organizationsfeature.ByNameRoutes(orgHandler, limit))

	// Proposals
	// Without database audit records there is no history to serve.
	var history transactionsfeature.HistoryReader
	if appCfg.AuditLog == auditlog.All || appCfg.AuditLog == auditlog.DB {
		history = auditStore
	}
	txHandler := transactionsfeature.NewHandler(coord, history, errLog, logger)
	r.Mount("/transaction", transactionsfeature.Routes(txHandler, limit))

	// Audit trail
	auditHandler := auditlogfeature.NewHandler(coord, auditStore, errLog, logger)
	r.Mount("/audit", auditlogfeature.Routes(auditHandler))

	// Push channel
	wsHandler := wsfeature.NewHandler(coord, deps.Hub, wsfeature.Options{
		WriteTimeout:   appCfg.WSWriteTimeout,
		PingInterval:   appCfg.WSPingInterval,
		PongWait:       appCfg.WSPongWait,
		AllowedOrigins: appCfg.WSAllowedOrigins,
	}, errLog, logger.Named("ws"))
	r.Mount("/ws", wsfeature.Routes(wsHandler))

	return r, nil
}

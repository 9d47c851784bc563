// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown cleanly tears down the bus, the hub and DB connections, in the
// reverse order of ConnectDB.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Retention != nil {
		deps.Retention.Stop()
	}
	if deps.Bridge != nil {
		if err := deps.Bridge.Close(); err != nil {
			logger.Warn("event bus drain failed", zap.Error(err))
		}
	}
	if deps.NATS != nil {
		deps.NATS.Close()
	}
	if deps.Hub != nil {
		// Push connections see a going-away close frame.
		deps.Hub.Close()
	}
	if deps.Limiter != nil {
		deps.Limiter.Stop()
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}

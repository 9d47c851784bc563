// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/cosign/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}
	cur := timeouts.Current()
	logger.Info("request timeouts",
		zap.Duration("ping", cur.Ping),
		zap.Duration("read", cur.Read),
		zap.Duration("write", cur.Write),
		zap.Duration("approval", cur.Approval))

	logger.Info("push channel",
		zap.Int("hub_queue_size", appCfg.HubQueueSize),
		zap.Duration("ws_ping_interval", appCfg.WSPingInterval),
		zap.Duration("ws_pong_wait", appCfg.WSPongWait),
		zap.Strings("ws_allowed_origins", appCfg.WSAllowedOrigins),
		zap.Bool("event_bus", deps.Bridge != nil))
	return nil
}

// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/cosign/internal/app/store/audit"
	"github.com/dalemusser/cosign/internal/app/system/auditlog"
	"github.com/dalemusser/cosign/internal/app/system/indexes"
	"github.com/dalemusser/cosign/internal/app/system/metrics"
	"github.com/dalemusser/cosign/internal/app/system/notify"
	"github.com/dalemusser/cosign/internal/app/system/ratelimit"
	"github.com/dalemusser/cosign/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const mongoConnectTimeout = 15 * time.Second

// ConnectDB opens MongoDB, builds the notification hub and, when nats_url
// is set, joins the event bus.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	cctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", appCfg.MongoMaxPoolSize))

	m := metrics.New()
	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
		Metrics:       m,
		Hub:           notify.NewHub(appCfg.HubQueueSize, logger.Named("hub"), m),
	}

	if appCfg.RateLimitPerMinute > 0 {
		deps.Limiter = ratelimit.New(appCfg.RateLimitPerMinute, appCfg.RateLimitBurst, 10*time.Minute)
	}

	if appCfg.AuditRetention > 0 && (appCfg.AuditLog == auditlog.All || appCfg.AuditLog == auditlog.DB) {
		deps.Retention = workers.NewAuditRetention(audit.New(deps.MongoDatabase), logger.Named("retention"),
			appCfg.AuditRetentionInterval, appCfg.AuditRetention)
		deps.Retention.Start()
	}

	if appCfg.NATSURL != "" {
		nc, err := notify.ConnectNATS(ctx, appCfg.NATSURL, "cosign", appCfg.NATSConnectTimeout, logger.Named("nats"))
		if err != nil {
			_ = Shutdown(context.Background(), coreCfg, appCfg, deps, logger)
			return DBDeps{}, err
		}
		deps.NATS = nc

		bridge, err := notify.NewNATSBridge(nc, appCfg.NATSSubject, deps.Hub, appCfg.NATSReorderWindow, logger.Named("bus"))
		if err != nil {
			_ = Shutdown(context.Background(), coreCfg, appCfg, deps, logger)
			return DBDeps{}, err
		}
		deps.Bridge = bridge
		logger.Info("event bus enabled",
			zap.String("url", nc.ConnectedUrlRedacted()),
			zap.String("subject", appCfg.NATSSubject))
	}

	return deps, nil
}

// EnsureSchema creates the collections' indexes. It is idempotent.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	logger.Info("indexes ensured")
	return nil
}

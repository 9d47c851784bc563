// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/cosign/internal/app/system/auditlog"
	"github.com/dalemusser/cosign/internal/app/system/notify"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for cosign.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, nats_url, etc.
//   - Environment variables: COSIGN_MONGO_URI, COSIGN_NATS_URL, etc.
//   - Command-line flags: --mongo_uri, --nats_url, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "cosign", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 5, Desc: "MongoDB min connection pool size (default: 5)"},

	// Event bus
	{Name: "nats_url", Default: "", Desc: "NATS server URL; blank disables cross-instance fan-out"},
	{Name: "nats_subject", Default: notify.DefaultSubject, Desc: "NATS subject carrying coordinator events"},
	{Name: "nats_connect_timeout", Default: "30s", Desc: "How long to retry the initial NATS connection"},
	{Name: "nats_reorder_window", Default: "2s", Desc: "How long a bus event waits for earlier versions of its proposal"},

	// Notification hub and push channel
	{Name: "hub_queue_size", Default: notify.DefaultQueueSize, Desc: "Events buffered per subscriber before it is dropped"},
	{Name: "ws_write_timeout", Default: "10s", Desc: "Write deadline for each push frame"},
	{Name: "ws_ping_interval", Default: "30s", Desc: "Interval between server pings"},
	{Name: "ws_pong_wait", Default: "60s", Desc: "Time allowed between pongs before the connection is dropped"},
	{Name: "ws_allowed_origins", Default: "", Desc: "Comma-separated Origin allow-list for the push channel ('*' for any)"},

	// Approvals
	{Name: "approval_max_retries", Default: 10, Desc: "Compare-and-swap attempts per approval before answering conflict"},

	// Audit logging
	{Name: "audit_log", Default: "all", Desc: "Audit event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_retention", Default: "0", Desc: "Delete audit records older than this (e.g. 2160h); 0 keeps them forever"},
	{Name: "audit_retention_interval", Default: "1h", Desc: "How often the audit retention worker runs"},

	// Rate limiting
	{Name: "rate_limit_per_minute", Default: 120, Desc: "Mutating requests per minute per client IP (0 disables)"},
	{Name: "rate_limit_burst", Default: 20, Desc: "Burst size for the per-client limiter"},
	{Name: "trust_proxy_headers", Default: false, Desc: "Take the client IP from X-Forwarded-For/X-Real-IP (only behind a trusted proxy)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, COSIGN_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "COSIGN", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		// Event bus
		NATSURL:            appValues.String("nats_url"),
		NATSSubject:        appValues.String("nats_subject"),
		NATSConnectTimeout: appValues.Duration("nats_connect_timeout", 30*time.Second),
		NATSReorderWindow:  appValues.Duration("nats_reorder_window", notify.DefaultReorderWindow),

		// Hub and push channel
		HubQueueSize:     appValues.Int("hub_queue_size"),
		WSWriteTimeout:   appValues.Duration("ws_write_timeout", 10*time.Second),
		WSPingInterval:   appValues.Duration("ws_ping_interval", 30*time.Second),
		WSPongWait:       appValues.Duration("ws_pong_wait", 60*time.Second),
		WSAllowedOrigins: splitList(appValues.String("ws_allowed_origins")),

		ApprovalMaxRetries: appValues.Int("approval_max_retries"),
		AuditLog:           strings.ToLower(appValues.String("audit_log")),

		AuditRetention:         appValues.Duration("audit_retention", 0),
		AuditRetentionInterval: appValues.Duration("audit_retention_interval", time.Hour),

		RateLimitPerMinute: appValues.Int("rate_limit_per_minute"),
		RateLimitBurst:     appValues.Int("rate_limit_burst"),
		TrustProxyHeaders:  appValues.Bool("trust_proxy_headers"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI format is checked here to catch configuration errors
// early, before attempting to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if strings.TrimSpace(appCfg.MongoDatabase) == "" {
		return fmt.Errorf("mongo_database is required")
	}
	if appCfg.HubQueueSize < 1 {
		return fmt.Errorf("hub_queue_size must be positive, got %d", appCfg.HubQueueSize)
	}
	if appCfg.ApprovalMaxRetries < 1 {
		return fmt.Errorf("approval_max_retries must be positive, got %d", appCfg.ApprovalMaxRetries)
	}
	if appCfg.WSWriteTimeout <= 0 || appCfg.WSPongWait <= 0 || appCfg.WSPingInterval <= 0 {
		return fmt.Errorf("ws_write_timeout, ws_ping_interval and ws_pong_wait must be positive")
	}
	if appCfg.WSPingInterval >= appCfg.WSPongWait {
		return fmt.Errorf("ws_ping_interval (%s) must be shorter than ws_pong_wait (%s)", appCfg.WSPingInterval, appCfg.WSPongWait)
	}
	if !auditlog.Valid(appCfg.AuditLog) {
		return fmt.Errorf("audit_log must be one of all, db, log, off; got %q", appCfg.AuditLog)
	}
	if appCfg.AuditRetention < 0 {
		return fmt.Errorf("audit_retention must not be negative")
	}
	if appCfg.AuditRetention > 0 && appCfg.AuditRetentionInterval <= 0 {
		return fmt.Errorf("audit_retention_interval must be positive when audit_retention is set")
	}
	if appCfg.NATSReorderWindow < 0 {
		return fmt.Errorf("nats_reorder_window must not be negative")
	}
	if appCfg.RateLimitPerMinute < 0 || appCfg.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	return nil
}

// splitList parses a comma-separated setting, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//
// AppConfig carries everything specific to the approval coordinator.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Cross-instance event bus (empty URL runs a single instance)
	NATSURL            string
	NATSSubject        string
	NATSConnectTimeout time.Duration // total time spent retrying the first connect
	NATSReorderWindow  time.Duration // hold time for bus events that arrive ahead of their predecessors

	// Notification hub and push channel
	HubQueueSize     int           // per-subscriber buffered events before the subscriber is dropped
	WSWriteTimeout   time.Duration // deadline for each frame written to a client
	WSPingInterval   time.Duration
	WSPongWait       time.Duration // read deadline, extended by every pong
	WSAllowedOrigins []string      // empty: same origin only; "*": any origin

	// Approval recording
	ApprovalMaxRetries int // compare-and-swap attempts before answering conflict

	// Audit logging: all (db+log), db, log or off
	AuditLog string

	// Audit records older than AuditRetention are purged every
	// AuditRetentionInterval. Zero retention keeps them forever.
	AuditRetention         time.Duration
	AuditRetentionInterval time.Duration

	// Per-client throttling of mutating requests (0 disables)
	RateLimitPerMinute int
	RateLimitBurst     int

	// Client IP from X-Forwarded-For / X-Real-IP. Enable only when every
	// request arrives through a proxy that sets them.
	TrustProxyHeaders bool
}

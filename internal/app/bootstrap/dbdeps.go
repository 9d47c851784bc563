// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/cosign/internal/app/system/metrics"
	"github.com/dalemusser/cosign/internal/app/system/notify"
	"github.com/dalemusser/cosign/internal/app/system/ratelimit"
	"github.com/dalemusser/cosign/internal/app/system/workers"
	"github.com/nats-io/nats.go"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and back-end dependencies for the app. Everything
// here is opened in ConnectDB and released in Shutdown.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Metrics *metrics.Metrics
	Hub     *notify.Hub
	Limiter *ratelimit.Limiter // nil when rate limiting is disabled

	Retention *workers.AuditRetention // nil unless audit_retention is set

	// Set only when nats_url is configured.
	NATS   *nats.Conn
	Bridge *notify.NATSBridge
}

// Publisher returns where coordinator events go: the bus when one is
// configured, the local hub otherwise.
func (d DBDeps) Publisher() notify.Publisher {
	if d.Bridge != nil {
		return d.Bridge
	}
	return d.Hub
}

// internal/app/features/ws/handler.go
package ws

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/cosign/internal/app/coordinator"
	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"github.com/dalemusser/cosign/internal/app/system/notify"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Subscriber is the part of the notification hub a push connection uses.
type Subscriber interface {
	Subscribe(org, identity string) (*notify.Subscription, error)
	Unsubscribe(sub *notify.Subscription)
}

// Options tunes connection keepalive. Zero values select the defaults.
type Options struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongWait     time.Duration
	// AllowedOrigins lists acceptable Origin headers. Empty means same
	// origin only; "*" accepts any origin.
	AllowedOrigins []string
}

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultPongWait     = 60 * time.Second

	// Clients send nothing but keepalives.
	maxMessageSize = 512
)

// Handler upgrades push-channel requests and streams hub events.
type Handler struct {
	Coord    *coordinator.Coordinator
	Hub      Subscriber
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
	opts     Options
	upgrader websocket.Upgrader
}

// NewHandler constructs a push-channel Handler.
func NewHandler(coord *coordinator.Coordinator, hub Subscriber, opts Options, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.PingInterval <= 0 || opts.PingInterval >= opts.PongWait {
		opts.PingInterval = opts.PongWait * 9 / 10
	}

	h := &Handler{
		Coord:  coord,
		Hub:    hub,
		ErrLog: errLog,
		Log:    logger,
		opts:   opts,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		HandshakeTimeout: opts.WriteTimeout,
		CheckOrigin:      originChecker(opts.AllowedOrigins),
	}
	return h
}

// originChecker returns nil for an empty list, which leaves gorilla's
// same-origin check in place.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}

// internal/app/system/notify/natsbridge.go
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubject is the NATS subject events travel on when none is configured.
const DefaultSubject = "cosign.events"

// ConnectNATS dials url, retrying with exponential backoff until ctx ends or
// maxElapsed passes. The returned connection reconnects on its own.
func ConnectNATS(ctx context.Context, url, name string, maxElapsed time.Duration, logger *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = maxElapsed

	var nc *nats.Conn
	err := backoff.RetryNotify(func() error {
		c, err := nats.Connect(url, opts...)
		if err != nil {
			return err
		}
		nc = c
		return nil
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		logger.Warn("nats connect failed; retrying",
			zap.String("url", url),
			zap.Duration("next", next),
			zap.Error(err))
	})
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSBridge is a Publisher that fans events out across service instances.
// Publish sends to a NATS subject; every instance, this one included,
// relays what it receives on that subject into its local Hub.
//
// Two instances approving the same proposal publish independently, so the
// bus can deliver their events out of write order. Everything bound for the
// hub passes through a Sequencer that restores per-proposal order.
type NATSBridge struct {
	nc      *nats.Conn
	subject string
	hub     *Hub
	seq     *Sequencer
	sub     *nats.Subscription
	log     *zap.Logger
}

// NewNATSBridge subscribes to subject and starts relaying into hub.
// window bounds how long an out-of-order event waits for its predecessors;
// zero selects DefaultReorderWindow.
func NewNATSBridge(nc *nats.Conn, subject string, hub *Hub, window time.Duration, logger *zap.Logger) (*NATSBridge, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &NATSBridge{
		nc:      nc,
		subject: subject,
		hub:     hub,
		seq:     NewSequencer(hub, window, logger.Named("sequencer")),
		log:     logger,
	}

	// A plain subscription delivers on one goroutine in arrival order.
	// That order is per publisher only; the sequencer handles the rest.
	sub, err := nc.Subscribe(subject, b.relay)
	if err != nil {
		b.seq.Close()
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	b.sub = sub
	return b, nil
}

// Publish encodes ev onto the bus. If the bus rejects the message, the event
// still reaches this instance's subscribers.
func (b *NATSBridge) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		b.log.Error("nats publish failed; delivering locally only",
			zap.String("event_type", string(ev.Type)),
			zap.String("organization", ev.Organization),
			zap.Error(err))
		return b.seq.Publish(ctx, ev)
	}
	return nil
}

func (b *NATSBridge) relay(msg *nats.Msg) {
	ev, err := Decode(msg.Data)
	if err != nil {
		b.log.Warn("discarding malformed event from bus",
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return
	}
	if err := b.seq.Publish(context.Background(), ev); err != nil {
		b.log.Debug("relay skipped", zap.Error(err))
	}
}

// Connected reports whether the underlying connection is usable.
func (b *NATSBridge) Connected() bool {
	return b.nc != nil && b.nc.IsConnected()
}

// Close stops relaying. It drains the subscription but leaves the connection
// to its owner.
func (b *NATSBridge) Close() error {
	defer b.seq.Close()
	if b.sub == nil {
		return nil
	}
	return b.sub.Drain()
}

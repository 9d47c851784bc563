// internal/app/system/notify/hub.go
package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dalemusser/cosign/internal/app/system/metrics"
	"go.uber.org/zap"
)

var (
	// ErrSubscriberDropped is the terminal error of a subscription whose
	// queue filled up. The subscriber must reconnect and re-list.
	ErrSubscriberDropped = errors.New("subscriber dropped: delivery queue full")
	ErrHubClosed         = errors.New("notification hub closed")
)

// DefaultQueueSize is the per-subscription buffer used when none is configured.
const DefaultQueueSize = 64

// Publisher delivers events to every live subscriber of the event's
// organization. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Subscription is one live push channel for an (organization, identity)
// pair. Events arrive on Events in publish order; the channel is closed
// when the subscription ends, after which Err reports why.
type Subscription struct {
	Organization string
	Identity     string

	id     uint64
	events chan Event
	done   chan struct{}
	once   sync.Once
	err    error
}

// Events returns the delivery queue.
func (s *Subscription) Events() <-chan Event { return s.events }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err blocks until the subscription ends. It is nil after a normal
// Unsubscribe and ErrSubscriberDropped or ErrHubClosed otherwise.
func (s *Subscription) Err() error {
	<-s.done
	return s.err
}

// end must be called with publishers excluded from this subscription.
func (s *Subscription) end(reason error) {
	s.once.Do(func() {
		s.err = reason
		close(s.done)
		close(s.events)
	})
}

type orgSubs struct {
	mu   sync.Mutex
	subs map[uint64]*Subscription
}

// Hub is the in-process subscription registry and fan-out point.
//
// Publishes for one organization are serialized so each subscriber observes
// that organization's events in the order they were published. A publish
// never blocks on a slow subscriber; a subscriber whose queue is full is
// dropped instead.
type Hub struct {
	mu     sync.RWMutex
	orgs   map[string]*orgSubs
	closed bool

	nextID    atomic.Uint64
	queueSize int
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// NewHub builds a hub. queueSize <= 0 selects DefaultQueueSize; logger and m
// may be nil.
func NewHub(queueSize int, logger *zap.Logger, m *metrics.Metrics) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		orgs:      make(map[string]*orgSubs),
		queueSize: queueSize,
		log:       logger,
		metrics:   m,
	}
}

// Subscribe registers a push channel for identity within org.
func (h *Hub) Subscribe(org, identity string) (*Subscription, error) {
	sub := &Subscription{
		Organization: org,
		Identity:     identity,
		id:           h.nextID.Add(1),
		events:       make(chan Event, h.queueSize),
		done:         make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	set, ok := h.orgs[org]
	if !ok {
		set = &orgSubs{subs: make(map[uint64]*Subscription)}
		h.orgs[org] = set
	}
	set.subs[sub.id] = sub
	h.metrics.SubscriberAdded()

	h.log.Debug("subscriber registered",
		zap.String("organization", org),
		zap.String("identity", identity),
		zap.Int("org_subscribers", len(set.subs)))
	return sub, nil
}

// Unsubscribe removes sub. Calling it more than once, or after the hub
// dropped the subscription, is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.orgs[sub.Organization]; ok {
		if _, live := set.subs[sub.id]; live {
			delete(set.subs, sub.id)
			h.metrics.SubscriberRemoved()
		}
		if len(set.subs) == 0 {
			delete(h.orgs, sub.Organization)
		}
	}
	sub.end(nil)
}

// Publish enqueues ev for every subscriber of ev.Organization. It returns
// ErrHubClosed after Close and nil otherwise; dropped subscribers are
// reported through logs and metrics.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	h.metrics.EventPublished(string(ev.Type))

	set, ok := h.orgs[ev.Organization]
	if !ok {
		h.mu.RUnlock()
		return nil
	}
	emptied := h.fanOut(set, ev)
	h.mu.RUnlock()

	if emptied {
		h.prune(ev.Organization, set)
	}
	return nil
}

// fanOut delivers ev to set and reports whether dropping slow subscribers
// left it empty. Called with h.mu read-locked.
func (h *Hub) fanOut(set *orgSubs, ev Event) bool {
	set.mu.Lock()
	defer set.mu.Unlock()
	dropped := false
	for id, sub := range set.subs {
		select {
		case sub.events <- ev:
		default:
			delete(set.subs, id)
			dropped = true
			sub.end(ErrSubscriberDropped)
			h.metrics.SubscriberRemoved()
			h.metrics.SubscriberDropped()
			h.log.Warn("dropping slow subscriber",
				zap.String("organization", sub.Organization),
				zap.String("identity", sub.Identity),
				zap.String("event_type", string(ev.Type)),
				zap.Int("queue_size", h.queueSize),
				zap.Error(ErrSubscriberDropped))
		}
	}
	return dropped && len(set.subs) == 0
}

// prune removes org's entry if it is still set and still empty; a
// Subscribe may have slipped in between.
func (h *Hub) prune(org string, set *orgSubs) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.orgs[org] != set {
		return
	}
	set.mu.Lock()
	empty := len(set.subs) == 0
	set.mu.Unlock()
	if empty {
		delete(h.orgs, org)
	}
}

// SubscriberCount reports the live subscriptions for org.
func (h *Hub) SubscriberCount(org string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set, ok := h.orgs[org]
	if !ok {
		return 0
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.subs)
}

// Close ends every subscription with ErrHubClosed and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for org, set := range h.orgs {
		for _, sub := range set.subs {
			sub.end(ErrHubClosed)
			h.metrics.SubscriberRemoved()
		}
		delete(h.orgs, org)
	}
}

// Package metrics owns the service's Prometheus registry and the counters
// the coordinator, the notification hub and the HTTP layer report into.
//
// Every method is safe on a nil *Metrics so packages can be exercised in
// tests without wiring a registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cosign"

// Metrics groups the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	organizationsCreated prometheus.Counter
	membersInvited       prometheus.Counter
	proposalsInitiated   prometheus.Counter
	approvalsRecorded    prometheus.Counter
	approvalsRejected    *prometheus.CounterVec
	proposalsConfirmed   prometheus.Counter

	eventsPublished    *prometheus.CounterVec
	subscribers        prometheus.Gauge
	subscribersDropped prometheus.Counter

	httpRequests *prometheus.HistogramVec
}

// New builds a Metrics with its own registry, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		organizationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "organizations_created_total",
			Help: "Organizations created.",
		}),
		membersInvited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "members_invited_total",
			Help: "Members appended to existing organizations.",
		}),
		proposalsInitiated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "proposals_initiated_total",
			Help: "Transfer proposals created.",
		}),
		approvalsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "approvals_recorded_total",
			Help: "Approvals added to pending proposals.",
		}),
		approvalsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "approvals_rejected_total",
			Help: "Approval submissions that were refused, by reason.",
		}, []string{"reason"}),
		proposalsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "proposals_confirmed_total",
			Help: "Proposals that reached their threshold.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hub", Name: "events_published_total",
			Help: "Events fanned out by the notification hub, by type.",
		}, []string{"type"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "hub", Name: "subscribers",
			Help: "Live push-channel subscriptions.",
		}),
		subscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hub", Name: "subscribers_dropped_total",
			Help: "Subscriptions dropped because their queue was full.",
		}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.organizationsCreated,
		m.membersInvited,
		m.proposalsInitiated,
		m.approvalsRecorded,
		m.approvalsRejected,
		m.proposalsConfirmed,
		m.eventsPublished,
		m.subscribers,
		m.subscribersDropped,
		m.httpRequests,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OrganizationCreated() {
	if m != nil {
		m.organizationsCreated.Inc()
	}
}

func (m *Metrics) MemberInvited() {
	if m != nil {
		m.membersInvited.Inc()
	}
}

func (m *Metrics) ProposalInitiated() {
	if m != nil {
		m.proposalsInitiated.Inc()
	}
}

func (m *Metrics) ApprovalRecorded() {
	if m != nil {
		m.approvalsRecorded.Inc()
	}
}

// ApprovalRejected counts a refused approval; reason is a short machine code
// such as "duplicate_approval".
func (m *Metrics) ApprovalRejected(reason string) {
	if m != nil {
		m.approvalsRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ProposalConfirmed() {
	if m != nil {
		m.proposalsConfirmed.Inc()
	}
}

func (m *Metrics) EventPublished(eventType string) {
	if m != nil {
		m.eventsPublished.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) SubscriberAdded() {
	if m != nil {
		m.subscribers.Inc()
	}
}

func (m *Metrics) SubscriberRemoved() {
	if m != nil {
		m.subscribers.Dec()
	}
}

func (m *Metrics) SubscriberDropped() {
	if m != nil {
		m.subscribersDropped.Inc()
	}
}

// Middleware records request latency labelled with the chi route pattern, so
// /transaction/{id} is one series rather than one per proposal.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

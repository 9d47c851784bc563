package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/cosign/internal/app/system/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.OrganizationCreated()
		m.ApprovalRejected("duplicate_approval")
		m.EventPublished("proposal_created")
		m.SubscriberAdded()
		m.SubscriberDropped()
	})

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCountersAreExposed(t *testing.T) {
	m := metrics.New()
	m.ProposalInitiated()
	m.ProposalInitiated()
	m.ApprovalRejected("not_a_member")
	m.EventPublished("proposal_confirmed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "cosign_proposals_initiated_total 2")
	assert.Contains(t, body, `cosign_approvals_rejected_total{reason="not_a_member"} 1`)
	assert.Contains(t, body, `cosign_hub_events_published_total{type="proposal_confirmed"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestSubscriberGauge(t *testing.T) {
	m := metrics.New()
	m.SubscriberAdded()
	m.SubscriberAdded()
	m.SubscriberRemoved()

	n, err := testutil.GatherAndCount(m.Registry(), "cosign_hub_subscribers")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	body := scrape(t, m)
	assert.Contains(t, body, "cosign_hub_subscribers 1")
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/transaction/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/transaction/"+id, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body,
		`cosign_http_request_duration_seconds_count{method="GET",route="/transaction/{id}",status="404"} 3`)
	assert.False(t, strings.Contains(body, `route="/transaction/a"`))
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncSearches()
		m.SessionOpened()
		m.SessionClosed()
		m.ObserveTask("vendorA", OutcomeFailed, time.Second)
		m.ObserveMatch(MatchNone)
		m.ObserveHumanInput("timeout")
		m.ObserveHTTPRequest(http.MethodGet, "/api/health", 200, time.Millisecond)
	})
}

func TestCollectorsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.ObserveTask("vendorA", OutcomeSucceeded, 2*time.Second)
	m.ObserveTask("vendorA", OutcomeSucceeded, 3*time.Second)
	m.ObserveMatch(MatchExact)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.TasksTotal.WithLabelValues("vendorA", OutcomeSucceeded)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MatchOutcomes.WithLabelValues(MatchExact)))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IncSearches()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "rateprobe_searches_total 1"))
}

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.Rejected("ratelimit", "RATE_LIMITED")
	m.Rejected("ratelimit", "RATE_LIMITED")
	m.Login("success")
	m.AuditFailed("database")
	m.IPLocked()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejections.WithLabelValues("ratelimit", "RATE_LIMITED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditFailures.WithLabelValues("database")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ipLockouts))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveRequest("GET", "200")
		m.Rejected("host", "INVALID_HOST")
		m.Login("failed")
		m.AuditFailed("broker")
		m.IPLocked()
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRequest("GET", "200")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `busstops_http_requests_total{method="GET",status="200"} 1`)
}

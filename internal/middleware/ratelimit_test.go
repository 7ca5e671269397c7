package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-stop-inventory/internal/metrics"
	"bus-stop-inventory/internal/ratelimit"
)

func newRateLimitHandler(store ratelimit.Store) http.Handler {
	limiter := ratelimit.New(store, ratelimit.DefaultQuotas())
	return NewPipeline(nil, NewRateLimitStage(limiter, metrics.New())).Handler(okHandler())
}

func doRequest(handler http.Handler, method string, path string, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = ip + ":40000"
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitStageHeaders(t *testing.T) {
	t.Parallel()

	handler := newRateLimitHandler(ratelimit.NewMemoryStore())

	rec := doRequest(handler, http.MethodGet, "/api/stops", "10.1.0.1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimitStageLoginFloodBlocksIP(t *testing.T) {
	t.Parallel()

	handler := newRateLimitHandler(ratelimit.NewMemoryStore())

	for i := 0; i < 5; i++ {
		rec := doRequest(handler, http.MethodPost, "/api/auth/login", "10.1.0.2")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := doRequest(handler, http.MethodPost, "/api/auth/login", "10.1.0.2")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decodeError(t, rec).Code)

	// Every path is closed to the blocked address.
	rec = doRequest(handler, http.MethodGet, "/api/stops", "10.1.0.2")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "300", rec.Header().Get("Retry-After"))

	rec = doRequest(handler, http.MethodGet, "/api/stops", "10.1.0.3")
	require.Equal(t, http.StatusOK, rec.Code)
}

type failingStore struct{}

func (failingStore) Check(context.Context, string, time.Duration, time.Time) (int, error) {
	return 0, errors.New("redis down")
}

func (failingStore) Record(context.Context, string, time.Time, time.Duration) error {
	return errors.New("redis down")
}

func (failingStore) IsBlocked(context.Context, string, time.Time) (time.Duration, bool, error) {
	return 0, false, errors.New("redis down")
}

func (failingStore) Block(context.Context, string, time.Time) error {
	return errors.New("redis down")
}

func (failingStore) Prune(context.Context, time.Time, time.Duration) error {
	return nil
}

func TestRateLimitStageFailsOpen(t *testing.T) {
	t.Parallel()

	handler := newRateLimitHandler(failingStore{})

	for i := 0; i < 10; i++ {
		rec := doRequest(handler, http.MethodPost, "/api/auth/login", "10.1.0.4")
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"bus-stop-inventory/internal/metrics"
	"bus-stop-inventory/internal/ratelimit"
)

type RateLimitStage struct {
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	warn    rate.Sometimes
}

func NewRateLimitStage(limiter *ratelimit.Limiter, m *metrics.Metrics) *RateLimitStage {
	return &RateLimitStage{
		limiter: limiter,
		metrics: m,
		warn:    rate.Sometimes{Interval: 30 * time.Second},
	}
}

func (s *RateLimitStage) Name() string { return "ratelimit" }

func (s *RateLimitStage) Process(w http.ResponseWriter, r *http.Request) (*http.Request, *Rejection) {
	decision, err := s.limiter.Allow(r.Context(), ClientIP(r), r.UserAgent(), r.URL.Path)
	if err != nil {
		// Store outages let traffic through.
		s.warn.Do(func() {
			slog.Warn("rate limit store unavailable", "error", err)
		})
		return r, nil
	}

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	h.Set("X-RateLimit-Reset", strconv.Itoa(int(decision.Window.Seconds())))

	if decision.Allowed {
		return r, nil
	}

	if decision.Escalated {
		s.metrics.IPLocked()
		slog.Warn("ip blocked after login flood", "ip", ClientIP(r), "path", r.URL.Path)
	}

	rej := reject(http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
	rej.RetryAfter = int(math.Ceil(decision.RetryAfter.Seconds()))
	if decision.Blocked {
		rej.Message = "Too many requests, address temporarily blocked"
	}
	return r, rej
}

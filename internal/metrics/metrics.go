package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters of the security pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	logins        *prometheus.CounterVec
	auditFailures *prometheus.CounterVec
	ipLockouts    prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busstops_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busstops_pipeline_rejections_total",
			Help: "Requests stopped by a security pipeline stage.",
		}, []string{"stage", "code"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busstops_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		auditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busstops_audit_write_failures_total",
			Help: "Audit entries that could not be persisted or published.",
		}, []string{"sink"}),
		ipLockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busstops_ip_lockouts_total",
			Help: "Client IPs locked by the brute-force guard or rate limiter.",
		}),
	}

	registry.MustRegister(m.requests, m.rejections, m.logins, m.auditFailures, m.ipLockouts)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method string, status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, status).Inc()
}

func (m *Metrics) Rejected(stage string, code string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(stage, code).Inc()
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AuditFailed(sink string) {
	if m == nil {
		return
	}
	m.auditFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) IPLocked() {
	if m == nil {
		return
	}
	m.ipLockouts.Inc()
}

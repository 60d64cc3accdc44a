package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "site_inspector"

// Metrics holds every collector the service exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPInFlight        prometheus.Gauge

	TokensIssuedTotal   prometheus.Counter
	RotationsTotal      *prometheus.CounterVec
	RevocationsTotal    *prometheus.CounterVec
	ExpiredCleanedTotal prometheus.Counter
	LoginAttemptsTotal  *prometheus.CounterVec
	AuthzDecisionsTotal *prometheus.CounterVec
	CleanupRunsTotal    *prometheus.CounterVec
}

// New creates the collectors and registers them, plus the Go and process
// collectors, on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latencies in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		TokensIssuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tokens_issued_total",
			Help:      "Refresh tokens issued.",
		}),
		RotationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_token_rotations_total",
				Help:      "Refresh token rotation attempts by result.",
			},
			[]string{"result"},
		),
		RevocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_token_revocations_total",
				Help:      "Refresh tokens revoked, by scope (single or all).",
			},
			[]string{"scope"},
		),
		ExpiredCleanedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tokens_expired_deleted_total",
			Help:      "Expired refresh tokens removed by the cleanup sweep.",
		}),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Login attempts by result.",
			},
			[]string{"result"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authz_decisions_total",
				Help:      "Authorization decisions by check kind and result.",
			},
			[]string{"kind", "result"},
		),
		CleanupRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_cleanup_runs_total",
				Help:      "Scheduled cleanup runs by result.",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPInFlight,
		m.TokensIssuedTotal,
		m.RotationsTotal,
		m.RevocationsTotal,
		m.ExpiredCleanedTotal,
		m.LoginAttemptsTotal,
		m.AuthzDecisionsTotal,
		m.CleanupRunsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) TokenIssued() {
	if m == nil {
		return
	}
	m.TokensIssuedTotal.Inc()
}

func (m *Metrics) Rotation(result string) {
	if m == nil {
		return
	}
	m.RotationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Revoked(scope string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RevocationsTotal.WithLabelValues(scope).Add(float64(n))
}

func (m *Metrics) ExpiredCleaned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ExpiredCleanedTotal.Add(float64(n))
}

func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) AuthzDecision(kind string, allowed bool) {
	if m == nil {
		return
	}
	result := "deny"
	if allowed {
		result = "allow"
	}
	m.AuthzDecisionsTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) CleanupRun(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CleanupRunsTotal.WithLabelValues(result).Inc()
}

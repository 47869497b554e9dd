// Package metrics exposes the identity provider's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sekaipass"

type Metrics struct {
	registry *prometheus.Registry

	logins            *prometheus.CounterVec
	sessions          *prometheus.CounterVec
	codes             *prometheus.CounterVec
	tokens            *prometheus.CounterVec
	clientAuth        *prometheus.CounterVec
	rateLimited       *prometheus.CounterVec
	housekeepingPurge *prometheus.CounterVec
}

// New registers every collector on a private registry, plus the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
		reg.MustRegister(c)
		return c
	}

	return &Metrics{
		registry:          reg,
		logins:            counter("logins_total", "Password logins by outcome.", "outcome"),
		sessions:          counter("sessions_total", "Session lifecycle events.", "event"),
		codes:             counter("authorization_codes_total", "Authorization code events.", "event"),
		tokens:            counter("tokens_issued_total", "Tokens issued by grant type.", "grant_type"),
		clientAuth:        counter("client_auth_total", "Client authentication attempts by method and result.", "method", "result"),
		rateLimited:       counter("rate_limited_total", "Requests rejected by a rate limit profile.", "profile"),
		housekeepingPurge: counter("housekeeping_deleted_total", "Rows deleted by housekeeping.", "table"),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Login(outcome string) {
	if m != nil {
		m.logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Session(event string) {
	if m != nil {
		m.sessions.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) Code(event string) {
	if m != nil {
		m.codes.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) TokenIssued(grantType string) {
	if m != nil {
		m.tokens.WithLabelValues(grantType).Inc()
	}
}

// ClientAuth records one client authentication. result is "ok" or the
// rejection reason, e.g. an assertion error kind.
func (m *Metrics) ClientAuth(method, result string) {
	if m != nil {
		m.clientAuth.WithLabelValues(method, result).Inc()
	}
}

// RateLimited matches httpx.RateLimitConfig.OnLimit.
func (m *Metrics) RateLimited(profile string) {
	if m != nil {
		m.rateLimited.WithLabelValues(profile).Inc()
	}
}

func (m *Metrics) Purged(table string, n int64) {
	if m != nil && n > 0 {
		m.housekeepingPurge.WithLabelValues(table).Add(float64(n))
	}
}

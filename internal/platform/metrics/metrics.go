package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP-level Prometheus metrics for the application.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	RateLimited     *prometheus.CounterVec
}

// New creates and registers the HTTP metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates and registers the HTTP metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mountpass_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mountpass_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mountpass_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"scope"}),
	}
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	m.RequestDuration.WithLabelValues(method, route).Observe(seconds)
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// IncrementRateLimited counts one rejected request for scope.
func (m *Metrics) IncrementRateLimited(scope string) {
	m.RateLimited.WithLabelValues(scope).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the metrics gathered by g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the health of the rate limit stores. Rejections are counted
// by the HTTP metrics.
type Metrics struct {
	StoreErrors       prometheus.Counter
	FallbackDecisions prometheus.Counter
	CircuitOpen       prometheus.Gauge
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "mountpass_ratelimit_store_errors_total",
			Help: "Total number of failed checks against the primary rate limit store",
		}),
		FallbackDecisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "mountpass_ratelimit_fallback_decisions_total",
			Help: "Total number of rate limit checks answered by the in-memory fallback",
		}),
		CircuitOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mountpass_ratelimit_circuit_open",
			Help: "1 while the primary rate limit store is bypassed",
		}),
	}
}

func (m *Metrics) IncrementStoreErrors() {
	m.StoreErrors.Inc()
}

func (m *Metrics) IncrementFallbackDecisions() {
	m.FallbackDecisions.Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}

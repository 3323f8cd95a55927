package apifootball

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// UpstreamRequestsTotal counts network attempts by endpoint and outcome kind.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "touchline_upstream_requests_total",
			Help: "Total number of network attempts against the fixtures provider",
		},
		[]string{"endpoint", "outcome"},
	)

	// UpstreamShortCircuitsTotal counts requests rejected before any network call.
	UpstreamShortCircuitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "touchline_upstream_short_circuits_total",
			Help: "Requests rejected by the rate window or the circuit breaker",
		},
		[]string{"reason"},
	)

	// UpstreamRequestSeconds tracks attempt latency.
	UpstreamRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "touchline_upstream_request_seconds",
			Help:    "Latency of single network attempts against the fixtures provider",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// CircuitStateGauge is 0 closed, 1 open, 2 half-open.
	CircuitStateGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "touchline_circuit_state",
			Help: "Upstream circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
	)
)

func init() {
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamShortCircuitsTotal)
	prometheus.MustRegister(UpstreamRequestSeconds)
	prometheus.MustRegister(CircuitStateGauge)
}

package biz

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ServedTotal counts resolved requests by category and the tier that answered.
	ServedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "touchline_served_total",
			Help: "Requests resolved by category and serving tier",
		},
		[]string{"category", "source"},
	)

	// ResolveSeconds tracks end-to-end waterfall latency.
	ResolveSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "touchline_resolve_seconds",
			Help:    "Waterfall latency by category and serving tier",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category", "source"},
	)
)

func init() {
	prometheus.MustRegister(ServedTotal)
	prometheus.MustRegister(ResolveSeconds)
}

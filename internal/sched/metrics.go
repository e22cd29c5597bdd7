package sched

import "github.com/prometheus/client_golang/prometheus"

// Prometheus poll metrics.
var (
	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naspulse_polls_total",
			Help: "Total number of source polls by outcome.",
		},
		[]string{"source", "outcome"},
	)
	pollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "naspulse_poll_duration_seconds",
			Help:    "Source poll duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	schedInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "naspulse_polls_in_flight",
			Help: "Number of polls currently running.",
		},
	)
	intervalGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "naspulse_poll_interval_seconds",
			Help: "Current adaptive poll interval per source.",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(pollsTotal)
	prometheus.MustRegister(pollDuration)
	prometheus.MustRegister(schedInFlight)
	prometheus.MustRegister(intervalGauge)
}

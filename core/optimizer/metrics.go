package optimizer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	optimizeLatency *prometheus.HistogramVec
	attemptsTotal   *prometheus.CounterVec
	decisionsTotal  *prometheus.CounterVec
	inFlight        prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Gauge) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "railopt_optimizer_latency_seconds",
			Help:    "Wall time of a conflict resolution from normalisation to decision",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method"},
	)
	att := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railopt_optimizer_attempts_total",
			Help: "Strategy runs by outcome",
		},
		[]string{"strategy", "status"},
	)
	dec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railopt_optimizer_decisions_total",
			Help: "Resolutions by outcome",
		},
		[]string{"outcome"},
	)
	inf := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "railopt_optimizer_in_flight",
			Help: "Conflicts currently being solved",
		},
	)
	return lat, att, dec, inf
}

func init() {
	optimizeLatency, attemptsTotal, decisionsTotal, inFlight = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers optimizer metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(optimizeLatency, attemptsTotal, decisionsTotal, inFlight)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	optimizeLatency, attemptsTotal, decisionsTotal, inFlight = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/railopt/core/metrics"
)

// PromSink exports decisions, attempts and executions as Prometheus metrics.
type PromSink struct {
	decisions  *prometheus.CounterVec
	score      *prometheus.HistogramVec
	confidence *prometheus.HistogramVec
	latency    prometheus.Histogram
	attempts   *prometheus.CounterVec
	executions *prometheus.CounterVec
	ackLatency *prometheus.HistogramVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.decisions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railopt_sink_decisions_total",
		Help: "Decisions recorded by outcome and strategy",
	}, []string{"strategy", "outcome"})); err != nil {
		return nil, err
	}
	if s.score, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "railopt_decision_score",
		Help:    "Normalised score of selected solutions",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	}, []string{"strategy"})); err != nil {
		return nil, err
	}
	if s.confidence, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "railopt_decision_confidence",
		Help:    "Confidence of selected solutions",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"strategy"})); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "railopt_sink_decision_latency_seconds",
		Help:    "End to end resolution latency",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if s.attempts, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railopt_sink_attempts_total",
		Help: "Strategy attempts by status",
	}, []string{"strategy", "status"})); err != nil {
		return nil, err
	}
	if s.executions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railopt_executions_total",
		Help: "Commands sent to trains by action and acknowledgment",
	}, []string{"action", "acknowledged"})); err != nil {
		return nil, err
	}
	if s.ackLatency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "railopt_execution_ack_latency_seconds",
		Help:    "Time between command send and acknowledgment",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Outcome classifies a decision for labelling.
func Outcome(m coremetrics.DecisionMetric) string {
	switch {
	case m.NoSolution:
		return "no_solution"
	case m.AutoApply:
		return "auto_apply"
	case m.RequiresReview:
		return "review"
	}
	return "recommend"
}

// RecordDecision implements coremetrics.MetricsSink.
func (s *PromSink) RecordDecision(m coremetrics.DecisionMetric) error {
	s.decisions.WithLabelValues(m.Strategy, Outcome(m)).Inc()
	if !m.NoSolution {
		s.score.WithLabelValues(m.Strategy).Observe(m.Score)
		s.confidence.WithLabelValues(m.Strategy).Observe(m.Confidence)
	}
	s.latency.Observe(m.Latency.Seconds())
	return nil
}

// RecordAttempt implements coremetrics.AttemptRecorder.
func (s *PromSink) RecordAttempt(m coremetrics.AttemptMetric) error {
	s.attempts.WithLabelValues(string(m.Strategy), string(m.Status)).Inc()
	return nil
}

// RecordExecution implements coremetrics.ExecutionRecorder.
func (s *PromSink) RecordExecution(m coremetrics.ExecutionMetric) error {
	s.executions.WithLabelValues(string(m.Action), strconv.FormatBool(m.Acknowledged)).Inc()
	s.ackLatency.WithLabelValues(string(m.Action)).Observe(m.Latency.Seconds())
	return nil
}

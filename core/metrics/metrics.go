package metrics

import (
	"time"

	"github.com/kilianp07/railopt/core/model"
)

// DecisionMetric summarises one completed resolution.
type DecisionMetric struct {
	DecisionID     string
	ConflictID     string
	Strategy       string
	Score          float64
	Confidence     float64
	NoSolution     bool
	RequiresReview bool
	AutoApply      bool
	Actions        int
	Attempts       []model.Attempt
	Latency        time.Duration
	Time           time.Time
}

// NewDecisionMetric builds the metric recorded for d.
func NewDecisionMetric(d model.Decision, elapsed time.Duration) DecisionMetric {
	ts := d.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return DecisionMetric{
		DecisionID:     d.ID,
		ConflictID:     d.ConflictID,
		Strategy:       d.Method(),
		Score:          d.Score,
		Confidence:     d.Confidence,
		NoSolution:     d.NoSolution(),
		RequiresReview: d.RequiresHumanReview,
		AutoApply:      d.AutoApply,
		Actions:        len(d.Actions.Actions),
		Attempts:       append([]model.Attempt(nil), d.Attempts...),
		Latency:        elapsed,
		Time:           ts,
	}
}

// MetricsSink records decisions for observability purposes.
type MetricsSink interface {
	RecordDecision(m DecisionMetric) error
}

// AttemptMetric is the outcome of one strategy run.
type AttemptMetric struct {
	ConflictID string
	Strategy   model.StrategyName
	Status     model.AttemptStatus
	Candidates int
	Elapsed    time.Duration
	Time       time.Time
}

// AttemptRecorder records per-strategy outcomes.
type AttemptRecorder interface {
	RecordAttempt(m AttemptMetric) error
}

// ExecutionMetric captures the acknowledgment of an action sent to a train.
type ExecutionMetric struct {
	CommandID    string
	ConflictID   string
	TrainID      string
	Action       model.ActionType
	Acknowledged bool
	Latency      time.Duration
	Error        string
	Time         time.Time
}

// ExecutionRecorder records execution acknowledgments.
type ExecutionRecorder interface {
	RecordExecution(m ExecutionMetric) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDecision(DecisionMetric) error   { return nil }
func (NopSink) RecordAttempt(AttemptMetric) error     { return nil }
func (NopSink) RecordExecution(ExecutionMetric) error { return nil }

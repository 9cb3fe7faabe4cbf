package metrics

import (
	"sync"
	"time"

	"github.com/kilianp07/railopt/core/model"
)

// Snapshot is a consistent view of the aggregated statistics.
type Snapshot struct {
	Count             int                         `json:"count"`
	AvgScore          float64                     `json:"avg_score"`
	AvgConfidence     float64                     `json:"avg_confidence"`
	AvgLatency        time.Duration               `json:"avg_latency"`
	MaxLatency        time.Duration               `json:"max_latency"`
	PerStrategyCounts map[string]int              `json:"per_strategy_counts"`
	AttemptStatuses   map[model.AttemptStatus]int `json:"attempt_statuses"`
	NoSolution        int                         `json:"no_solution"`
	AutoApply         int                         `json:"auto_apply"`
}

// Aggregator accumulates decision statistics for the lifetime of the
// process. It is safe for concurrent use; every update happens under a
// single lock so no record is lost.
type Aggregator struct {
	mu         sync.Mutex
	count      int
	sumScore   float64
	sumConf    float64
	sumLatency time.Duration
	maxLatency time.Duration
	strategies map[string]int
	statuses   map[model.AttemptStatus]int
	noSolution int
	autoApply  int
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		strategies: make(map[string]int),
		statuses:   make(map[model.AttemptStatus]int),
	}
}

// Record adds a decision and the time taken to produce it.
func (a *Aggregator) Record(d model.Decision, elapsed time.Duration) {
	_ = a.RecordDecision(NewDecisionMetric(d, elapsed))
}

// RecordDecision implements MetricsSink.
func (a *Aggregator) RecordDecision(m DecisionMetric) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.strategies == nil {
		a.strategies = make(map[string]int)
		a.statuses = make(map[model.AttemptStatus]int)
	}
	a.count++
	a.sumScore += m.Score
	a.sumConf += m.Confidence
	a.sumLatency += m.Latency
	if m.Latency > a.maxLatency {
		a.maxLatency = m.Latency
	}
	a.strategies[m.Strategy]++
	for _, at := range m.Attempts {
		a.statuses[at.Status]++
	}
	if m.NoSolution {
		a.noSolution++
	}
	if m.AutoApply {
		a.autoApply++
	}
	return nil
}

// Snapshot returns the current statistics. Averages are zero before the
// first record.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Snapshot{
		Count:             a.count,
		MaxLatency:        a.maxLatency,
		PerStrategyCounts: make(map[string]int, len(a.strategies)),
		AttemptStatuses:   make(map[model.AttemptStatus]int, len(a.statuses)),
		NoSolution:        a.noSolution,
		AutoApply:         a.autoApply,
	}
	for k, v := range a.strategies {
		s.PerStrategyCounts[k] = v
	}
	for k, v := range a.statuses {
		s.AttemptStatuses[k] = v
	}
	if a.count > 0 {
		n := float64(a.count)
		s.AvgScore = a.sumScore / n
		s.AvgConfidence = a.sumConf / n
		s.AvgLatency = a.sumLatency / time.Duration(a.count)
	}
	return s
}

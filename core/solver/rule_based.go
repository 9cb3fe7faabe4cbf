package solver

import (
	"context"
	"time"

	"github.com/kilianp07/railopt/core/model"
)

// RuleBasedSolver is the deterministic greedy fallback. Trains are served by
// priority then scheduled time and each one takes its earliest feasible slot,
// so lower priority trains absorb the delay or the reroute.
type RuleBasedSolver struct {
	Calibration Calibration
}

// NewRuleBasedSolver returns a rule-based solver using the given calibration.
func NewRuleBasedSolver(c Calibration) *RuleBasedSolver {
	c.SetDefaults()
	return &RuleBasedSolver{Calibration: c}
}

func (s *RuleBasedSolver) Name() model.StrategyName { return model.StrategyRuleBased }

// Bounds returns the weighted delay range; lower is better.
func (s *RuleBasedSolver) Bounds() ScoreBounds {
	return ScoreBounds{Min: 0, Max: s.Calibration.MaxWeightedDelay}
}

// Solve always returns exactly one candidate.
func (s *RuleBasedSolver) Solve(_ context.Context, p *Problem, _ time.Duration) ([]model.CandidateSolution, error) {
	start := time.Now()
	pl := newPlacer(p, 1)
	for _, i := range priorityOrder(p) {
		r, d := pl.bestRoute(i)
		pl.push(i, r, d)
	}
	plan := pl.snapshot()
	return []model.CandidateSolution{{
		Strategy:   model.StrategyRuleBased,
		Actions:    planActions(p, plan),
		RawScore:   planCost(p, plan),
		Confidence: s.Calibration.ConfidenceFor(p.Severity),
		Elapsed:    time.Since(start),
	}}, nil
}

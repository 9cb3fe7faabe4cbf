// Package selector turns the outcomes of the solving strategies into a single
// decision.
package selector

import (
	"math"
	"time"

	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/core/solver"
)

// StrategyResult is the outcome of running one strategy.
type StrategyResult struct {
	Strategy   model.StrategyName
	Candidates []model.CandidateSolution
	Err        error
	Elapsed    time.Duration
}

// Bounds maps a strategy to its declared raw score range.
type Bounds map[model.StrategyName]solver.ScoreBounds

type scored struct {
	sol   model.CandidateSolution
	score float64
	rank  float64
}

// Select picks the best candidate across all results. Results are recorded
// as attempts in the order given. When no usable candidate remains the
// returned decision is the no-solution sentinel and requires human review.
func Select(conflictID string, results []StrategyResult, bounds Bounds) model.Decision {
	d := model.Decision{
		ConflictID: conflictID,
		Attempts:   make([]model.Attempt, 0, len(results)),
	}

	var best *scored
	for _, r := range results {
		att := model.Attempt{Strategy: r.Strategy, Elapsed: r.Elapsed, Candidates: len(r.Candidates)}
		switch {
		case r.Err != nil:
			att.Status = solver.StatusOf(r.Err)
			att.Error = r.Err.Error()
		case len(r.Candidates) == 0:
			att.Status = model.AttemptEmpty
		default:
			att.Status = model.AttemptRejected
			b, ok := bounds[r.Strategy]
			if !ok {
				att.Error = "no score bounds declared"
				break
			}
			for _, c := range r.Candidates {
				if !valid(c) {
					continue
				}
				att.Status = model.AttemptSucceeded
				s := b.Normalize(c.RawScore)
				cand := &scored{sol: c, score: s, rank: c.Confidence * s}
				if cand.sol.Strategy == "" {
					cand.sol.Strategy = r.Strategy
				}
				if better(cand, best) {
					best = cand
				}
			}
			if att.Status == model.AttemptRejected {
				att.Error = "all candidates out of range"
			}
		}
		d.Attempts = append(d.Attempts, att)
	}

	if best == nil {
		d.RequiresHumanReview = true
		d.Actions = model.DomainActionSet{ConflictID: conflictID}
		d.ID = model.DecisionID(conflictID, nil)
		return d
	}

	sol := best.sol
	sol.Actions = append([]model.Action(nil), best.sol.Actions...)
	d.Solution = &sol
	d.Score = best.score
	d.Confidence = sol.Confidence
	d.Actions = model.DomainActionSet{ConflictID: conflictID, Actions: sol.Actions}
	d.ID = model.DecisionID(conflictID, &sol)
	return d
}

func valid(c model.CandidateSolution) bool {
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return false
	}
	return !math.IsNaN(c.RawScore) && !math.IsInf(c.RawScore, 0)
}

// better orders candidates by rank, then confidence, then fewer actions,
// then strategy priority.
func better(a, b *scored) bool {
	if b == nil {
		return true
	}
	if a.rank != b.rank {
		return a.rank > b.rank
	}
	if a.sol.Confidence != b.sol.Confidence {
		return a.sol.Confidence > b.sol.Confidence
	}
	if len(a.sol.Actions) != len(b.sol.Actions) {
		return len(a.sol.Actions) < len(b.sol.Actions)
	}
	return a.sol.Strategy.Priority() > b.sol.Strategy.Priority()
}

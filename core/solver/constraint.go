package solver

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/kilianp07/railopt/core/model"
)

// ConstraintSolver searches insertion orders and route choices with depth
// first branch and bound. Constraints are section capacity, headway, route
// validity and the maximum delay; the objective is the priority weighted
// delay including reroute penalties.
type ConstraintSolver struct {
	Calibration Calibration
}

// NewConstraintSolver returns a constraint solver using the given calibration.
func NewConstraintSolver(c Calibration) *ConstraintSolver {
	c.SetDefaults()
	return &ConstraintSolver{Calibration: c}
}

func (s *ConstraintSolver) Name() model.StrategyName { return model.StrategyConstraint }

// Bounds returns the weighted delay range; lower is better.
func (s *ConstraintSolver) Bounds() ScoreBounds {
	return ScoreBounds{Min: 0, Max: s.Calibration.MaxWeightedDelay}
}

type branchAndBound struct {
	p         *Problem
	cal       Calibration
	pl        *placer
	ctx       context.Context
	deadline  time.Time
	nodes     int
	best      float64
	bestPlan  []placement
	openLB    float64
	truncated bool
}

// Solve returns the optimal plan, or the best plan found when the budget runs
// out with its confidence scaled by the optimality gap.
func (s *ConstraintSolver) Solve(ctx context.Context, p *Problem, budget time.Duration) ([]model.CandidateSolution, error) {
	start := time.Now()
	if budget <= 0 {
		budget = DefaultBudget
	}
	// stop early enough for the incumbent to reach the caller before its
	// own deadline fires
	margin := budget / 10
	deadline := start.Add(budget - margin)
	if dl, ok := ctx.Deadline(); ok && dl.Add(-margin).Before(deadline) {
		deadline = dl.Add(-margin)
	}
	bb := &branchAndBound{
		p:        p,
		cal:      s.Calibration,
		pl:       newPlacer(p, 0),
		ctx:      ctx,
		deadline: deadline,
		best:     math.Inf(1),
		openLB:   math.Inf(1),
	}
	bb.search(priorityOrder(p), 0)

	if bb.bestPlan == nil {
		if bb.truncated {
			return nil, newError(s.Name(), KindTimeout, errors.New("no incumbent within budget"))
		}
		return nil, newError(s.Name(), KindInfeasible, errors.New("no assignment satisfies capacity and delay limits"))
	}

	gap := 0.0
	if bb.truncated && bb.best > 0 {
		lb := math.Min(bb.openLB, bb.best)
		gap = (bb.best - lb) / bb.best
	}
	actions := append(planActions(p, bb.bestPlan), reorderActions(p, bb.bestPlan)...)
	return []model.CandidateSolution{{
		Strategy:   model.StrategyConstraint,
		Actions:    actions,
		RawScore:   bb.best,
		Confidence: s.Calibration.ConstraintConfidence * (1 - gap),
		Elapsed:    time.Since(start),
	}}, nil
}

func (bb *branchAndBound) stop() bool {
	if bb.cal.NodeLimit > 0 && bb.nodes >= bb.cal.NodeLimit {
		return true
	}
	if bb.ctx.Err() != nil {
		return true
	}
	return time.Now().After(bb.deadline)
}

// search extends the partial plan with every remaining train. Subtrees whose
// bound cannot beat the incumbent are skipped; when the search is cut short
// the bound of every unexplored node feeds the optimality gap.
func (bb *branchAndBound) search(remaining []int, cost float64) {
	if bb.truncated || bb.stop() {
		bb.truncated = true
		if lb := bb.bound(remaining, cost); lb < bb.openLB {
			bb.openLB = lb
		}
		return
	}
	bb.nodes++
	if len(remaining) == 0 {
		if cost < bb.best {
			bb.best = cost
			bb.bestPlan = bb.pl.snapshot()
		}
		return
	}
	if bb.bound(remaining, cost) >= bb.best-1e-9 {
		return
	}
	for k, i := range remaining {
		t := bb.p.Trains[i]
		for r := -1; r < len(t.Alternatives); r++ {
			d := bb.pl.earliestDelay(i, r)
			if math.IsInf(d, 1) || d > bb.cal.MaxDelayMinutes {
				continue
			}
			c := cost + weight(t)*(d+bb.pl.routeExtra(i, r))
			if c >= bb.best-1e-9 {
				continue
			}
			rest := make([]int, 0, len(remaining)-1)
			rest = append(rest, remaining[:k]...)
			rest = append(rest, remaining[k+1:]...)
			bb.pl.push(i, r, d)
			bb.search(rest, c)
			bb.pl.pop()
		}
	}
}

// bound is a lower bound on any completion of the partial plan. Placing more
// trains only removes feasible start times, so every remaining train costs at
// least its cheapest option against the current plan. A train with no option
// left makes the subtree infeasible and the bound +Inf.
func (bb *branchAndBound) bound(remaining []int, cost float64) float64 {
	lb := cost
	for _, i := range remaining {
		t := bb.p.Trains[i]
		cheapest := math.Inf(1)
		for r := -1; r < len(t.Alternatives); r++ {
			d := bb.pl.earliestDelay(i, r)
			if math.IsInf(d, 1) || d > bb.cal.MaxDelayMinutes {
				continue
			}
			if c := weight(t) * (d + bb.pl.routeExtra(i, r)); c < cheapest {
				cheapest = c
			}
		}
		lb += cheapest
	}
	return lb
}

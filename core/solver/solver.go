package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/railopt/core/model"
)

// DefaultBudget is used when a strategy is run without a budget.
const DefaultBudget = 250 * time.Millisecond

// ScoreBounds is the theoretical range of a solver's raw score.
type ScoreBounds struct {
	Min            float64
	Max            float64
	HigherIsBetter bool
}

// Normalize maps raw onto [0,100], 100 being the best possible outcome.
func (b ScoreBounds) Normalize(raw float64) float64 {
	span := b.Max - b.Min
	if span <= 0 {
		return 0
	}
	n := (raw - b.Min) / span
	if n < 0 {
		n = 0
	}
	if n > 1 {
		n = 1
	}
	if !b.HigherIsBetter {
		n = 1 - n
	}
	return n * 100
}

// Solver proposes candidate solutions for a normalised conflict.
type Solver interface {
	Name() model.StrategyName
	Bounds() ScoreBounds
	Solve(ctx context.Context, p *Problem, budget time.Duration) ([]model.CandidateSolution, error)
}

// Run invokes s under a hard budget. When the budget elapses first a Timeout
// error is returned immediately; the solver goroutine is left to observe its
// own deadline and finish on its own.
func Run(ctx context.Context, s Solver, p *Problem, budget time.Duration) ([]model.CandidateSolution, error) {
	if budget <= 0 {
		budget = DefaultBudget
	}
	sctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type outcome struct {
		sols []model.CandidateSolution
		err  error
	}
	ch := make(chan outcome, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: newError(s.Name(), KindFailed, fmt.Errorf("panic: %v", r))}
			}
		}()
		sols, err := s.Solve(sctx, p, budget)
		ch <- outcome{sols: sols, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			return nil, asSolverError(s.Name(), o.err)
		}
		elapsed := time.Since(start)
		for i := range o.sols {
			o.sols[i].Strategy = s.Name()
			if o.sols[i].Elapsed == 0 {
				o.sols[i].Elapsed = elapsed
			}
		}
		return o.sols, nil
	case <-sctx.Done():
		if ctx.Err() != nil {
			return nil, newError(s.Name(), KindFailed, ctx.Err())
		}
		return nil, newError(s.Name(), KindTimeout, fmt.Errorf("budget %s exceeded", budget))
	}
}

func asSolverError(name model.StrategyName, err error) *SolverError {
	if se, ok := err.(*SolverError); ok {
		if se.Strategy == "" {
			return newError(name, se.Kind, se.Err)
		}
		return se
	}
	return newError(name, KindFailed, err)
}

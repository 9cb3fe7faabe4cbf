package plugins

import (
	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/core/solver"
)

func init() {
	RegisterSolver(model.StrategyRuleBased, func(cal solver.Calibration, _ solver.PolicyBackend) (solver.Solver, error) {
		return solver.NewRuleBasedSolver(cal), nil
	})
	RegisterSolver(model.StrategyConstraint, func(cal solver.Calibration, _ solver.PolicyBackend) (solver.Solver, error) {
		return solver.NewConstraintSolver(cal), nil
	})
	// Without a backend the learned strategy still runs and reports itself
	// unavailable on every attempt.
	RegisterSolver(model.StrategyLearned, func(cal solver.Calibration, backend solver.PolicyBackend) (solver.Solver, error) {
		return solver.NewLearnedPolicySolver(backend, cal), nil
	})
}

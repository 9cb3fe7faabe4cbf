package plugins

import (
	"fmt"
	"sort"

	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/core/solver"
)

// SolverFactory builds a strategy from the shared calibration and the
// configured policy backend, which may be nil.
type SolverFactory func(cal solver.Calibration, backend solver.PolicyBackend) (solver.Solver, error)

var Solvers = map[model.StrategyName]SolverFactory{}

func RegisterSolver(name model.StrategyName, f SolverFactory) { Solvers[name] = f }

// Names lists the registered strategies in lexical order.
func Names() []model.StrategyName {
	names := make([]model.StrategyName, 0, len(Solvers))
	for n := range Solvers {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// BuildSolvers instantiates the named strategies in order.
func BuildSolvers(names []model.StrategyName, cal solver.Calibration, backend solver.PolicyBackend) ([]solver.Solver, error) {
	out := make([]solver.Solver, 0, len(names))
	for _, n := range names {
		f, ok := Solvers[n]
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q", n)
		}
		s, err := f(cal, backend)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", n, err)
		}
		out = append(out, s)
	}
	return out, nil
}

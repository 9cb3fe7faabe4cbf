package scenarios

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/railopt/core/metrics"
	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/core/optimizer"
	"github.com/kilianp07/railopt/core/solver"
	"github.com/kilianp07/railopt/infra/logger"
	"github.com/kilianp07/railopt/infra/policy"
)

// Solvers returns the three built-in strategies backed by the in-process
// linear policy.
func Solvers(t *testing.T) []solver.Solver {
	t.Helper()
	cal := solver.DefaultCalibration()
	pol, err := policy.NewLinearPolicy(policy.DefaultLinearConfig())
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	return []solver.Solver{
		solver.NewRuleBasedSolver(cal),
		solver.NewConstraintSolver(cal),
		solver.NewLearnedPolicySolver(pol, cal),
	}
}

// RunScenario resolves every conflict of sc and checks the expectations.
func RunScenario(t *testing.T, sc *Scenario) {
	optimizer.ResetMetrics(prometheus.NewRegistry())
	agg := metrics.NewAggregator()
	opt, err := optimizer.New(Solvers(t), optimizer.DefaultOptions(),
		optimizer.WithMetricsSink(agg),
		optimizer.WithLogger(logger.NopLogger{}),
	)
	if err != nil {
		t.Fatalf("optimizer: %v", err)
	}

	conflicts, err := sc.ConflictList()
	if err != nil {
		t.Fatalf("conflicts: %v", err)
	}
	results := opt.BatchOptimize(context.Background(), conflicts, sc.Snapshot())
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("scenario %s: conflict %s: %v", sc.Name, r.ConflictID, r.Err)
			continue
		}
		exp, ok := sc.Expected[r.ConflictID]
		if !ok {
			continue
		}
		checkDecision(t, sc.Name, r.Decision, exp)
	}
	if got := agg.Snapshot().Count; got != len(conflicts) {
		t.Errorf("scenario %s expected %d recorded decisions, got %d", sc.Name, len(conflicts), got)
	}
}

func checkDecision(t *testing.T, name string, d model.Decision, exp Expected) {
	t.Helper()
	if exp.Method != "" && d.Method() != exp.Method {
		t.Errorf("scenario %s: conflict %s solved by %s, want %s", name, d.ConflictID, d.Method(), exp.Method)
	}
	if exp.Review != nil && d.RequiresHumanReview != *exp.Review {
		t.Errorf("scenario %s: conflict %s review=%v, want %v", name, d.ConflictID, d.RequiresHumanReview, *exp.Review)
	}
	if d.Confidence < exp.MinConfidence {
		t.Errorf("scenario %s: conflict %s confidence %.2f below %.2f", name, d.ConflictID, d.Confidence, exp.MinConfidence)
	}
	if exp.DelayedTrain != "" && !delays(d, exp.DelayedTrain) {
		t.Errorf("scenario %s: conflict %s does not hold back %s: %+v", name, d.ConflictID, exp.DelayedTrain, d.Actions.Actions)
	}
}

// delays reports whether the decision slows down or holds the train.
func delays(d model.Decision, train string) bool {
	for _, a := range d.Actions.Actions {
		if a.TrainID != train {
			continue
		}
		switch a.Type {
		case model.ActionDelay:
			if a.DelayMinutes > 0 {
				return true
			}
		case model.ActionSpeedAdjust, model.ActionReroute:
			return true
		}
	}
	return false
}

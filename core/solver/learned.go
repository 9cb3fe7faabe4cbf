package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/railopt/core/model"
)

// PolicyRequest is the input of a pre-trained decision policy.
type PolicyRequest struct {
	ConflictID   string
	Severity     model.Severity
	TrainIDs     []string
	FeatureNames []string
	Features     *mat.Dense
}

// PolicyResponse is the output of the policy. Rank and Preferred have one
// entry per train of the request. Probability is the policy's calibrated
// confidence and Value its estimate of the outcome quality in [0,1].
type PolicyResponse struct {
	Rank        []float64          `json:"rank"`
	Preferred   []model.ActionType `json:"preferred"`
	Probability float64            `json:"probability"`
	Value       float64            `json:"value"`
}

// PolicyBackend is an opaque inference call. Implementations must honour
// the context deadline.
type PolicyBackend interface {
	Infer(ctx context.Context, req PolicyRequest) (PolicyResponse, error)
}

// ErrNoBackend is returned when the learned solver has no backend.
var ErrNoBackend = errors.New("no policy backend configured")

// LearnedPolicySolver turns a policy's ranking and action preferences into a
// feasible action set.
type LearnedPolicySolver struct {
	Backend     PolicyBackend
	Calibration Calibration
}

// NewLearnedPolicySolver returns a solver querying backend.
func NewLearnedPolicySolver(backend PolicyBackend, c Calibration) *LearnedPolicySolver {
	c.SetDefaults()
	return &LearnedPolicySolver{Backend: backend, Calibration: c}
}

func (s *LearnedPolicySolver) Name() model.StrategyName { return model.StrategyLearned }

// Bounds returns the policy value range; higher is better.
func (s *LearnedPolicySolver) Bounds() ScoreBounds {
	return ScoreBounds{Min: 0, Max: 1, HigherIsBetter: true}
}

// Solve queries the policy and builds one candidate from its output.
func (s *LearnedPolicySolver) Solve(ctx context.Context, p *Problem, _ time.Duration) ([]model.CandidateSolution, error) {
	start := time.Now()
	if s.Backend == nil {
		return nil, newError(s.Name(), KindUnavailable, ErrNoBackend)
	}
	if len(p.Trains) == 0 {
		return nil, nil
	}
	ids := make([]string, len(p.Trains))
	for i, t := range p.Trains {
		ids[i] = t.ID
	}
	resp, err := s.Backend.Infer(ctx, PolicyRequest{
		ConflictID:   p.ConflictID,
		Severity:     p.Severity,
		TrainIDs:     ids,
		FeatureNames: FeatureNames,
		Features:     Features(p),
	})
	if err != nil {
		return nil, newError(s.Name(), KindUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(s.Name(), KindUnavailable, err)
	}
	if len(resp.Rank) != len(ids) || len(resp.Preferred) != len(ids) {
		return nil, newError(s.Name(), KindFailed, fmt.Errorf("policy returned %d ranks and %d actions for %d trains", len(resp.Rank), len(resp.Preferred), len(ids)))
	}

	order := priorityOrder(p)
	pos := make(map[int]int, len(order))
	for k, i := range order {
		pos[i] = k
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := resp.Rank[order[a]], resp.Rank[order[b]]
		if ra != rb {
			return ra > rb
		}
		return pos[order[a]] < pos[order[b]]
	})

	pl := newPlacer(p, 1)
	for _, i := range order {
		r, d := -1, pl.earliestDelay(i, -1)
		if resp.Preferred[i] == model.ActionReroute {
			r, d = pl.bestRoute(i)
		}
		pl.push(i, r, d)
	}
	return []model.CandidateSolution{{
		Strategy:   model.StrategyLearned,
		Actions:    s.policyActions(p, pl.snapshot(), resp.Preferred),
		RawScore:   clamp01(resp.Value),
		Confidence: resp.Probability,
		Elapsed:    time.Since(start),
	}}, nil
}

// policyActions is planActions except that small delays of trains the policy
// prefers to slow down become speed adjustments.
func (s *LearnedPolicySolver) policyActions(p *Problem, plan []placement, pref []model.ActionType) []model.Action {
	var acts []model.Action
	for _, pl := range plan {
		t := p.Trains[pl.train]
		if pl.route >= 0 {
			acts = append(acts, model.Action{Type: model.ActionReroute, TrainID: t.ID, RouteID: t.Alternatives[pl.route].ID})
		}
		if pl.delay <= minDelay {
			continue
		}
		start, end := p.window(pl.train)
		run := end - start
		if pref[pl.train] == model.ActionSpeedAdjust && pl.delay <= s.Calibration.SpeedAdjustMaxMinutes && t.SpeedKmh > 0 && run > 0 {
			speed := math.Round(t.SpeedKmh*run/(run+pl.delay)*10) / 10
			acts = append(acts, model.Action{Type: model.ActionSpeedAdjust, TrainID: t.ID, SpeedKmh: speed})
			continue
		}
		acts = append(acts, model.Action{Type: model.ActionDelay, TrainID: t.ID, DelayMinutes: math.Max(round2(pl.delay), 0.01)})
	}
	return acts
}

// Package policy provides PolicyBackend implementations for the learned
// strategy: an in-process linear scorer and an HTTP inference client.
package policy

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/core/solver"
)

// LinearConfig holds the parameters of a LinearPolicy. Weights are keyed by
// feature name; missing features weigh zero.
type LinearConfig struct {
	Weights map[string]float64 `json:"weights"`
	Bias    float64            `json:"bias"`
	// Sharpness scales the score margin before it is turned into a
	// probability.
	Sharpness float64 `json:"sharpness"`
	// SingleTrainProbability is reported when there is nothing to rank.
	SingleTrainProbability float64 `json:"single_train_probability"`
	// SpeedAdjustOverlap is the overlap share under which slowing down is
	// preferred over a plain delay.
	SpeedAdjustOverlap float64 `json:"speed_adjust_overlap"`
}

// DefaultLinearConfig favours high priority and early trains.
func DefaultLinearConfig() LinearConfig {
	return LinearConfig{
		Weights: map[string]float64{
			"priority":        1.0,
			"lead_time":       -0.5,
			"occupation":      -0.2,
			"speed_ratio":     0.1,
			"has_alternative": -0.3,
			"overlap":         0,
		},
		Sharpness:              4,
		SingleTrainProbability: 0.9,
		SpeedAdjustOverlap:     0.1,
	}
}

// LinearPolicy scores each train with a weighted sum of its features.
type LinearPolicy struct {
	cfg LinearConfig
}

// NewLinearPolicy validates cfg and returns the policy.
func NewLinearPolicy(cfg LinearConfig) (*LinearPolicy, error) {
	def := DefaultLinearConfig()
	if cfg.Weights == nil {
		cfg.Weights = def.Weights
	}
	if cfg.Sharpness <= 0 {
		cfg.Sharpness = def.Sharpness
	}
	if cfg.SingleTrainProbability == 0 {
		cfg.SingleTrainProbability = def.SingleTrainProbability
	}
	if cfg.SingleTrainProbability < 0 || cfg.SingleTrainProbability > 1 {
		return nil, fmt.Errorf("single_train_probability %v out of [0,1]", cfg.SingleTrainProbability)
	}
	if cfg.SpeedAdjustOverlap == 0 {
		cfg.SpeedAdjustOverlap = def.SpeedAdjustOverlap
	}
	return &LinearPolicy{cfg: cfg}, nil
}

func (p *LinearPolicy) weights(names []string) *mat.VecDense {
	w := mat.NewVecDense(len(names), nil)
	for j, n := range names {
		w.SetVec(j, p.cfg.Weights[n])
	}
	return w
}

func column(names []string, name string) int {
	for j, n := range names {
		if n == name {
			return j
		}
	}
	return -1
}

// Infer implements solver.PolicyBackend.
func (p *LinearPolicy) Infer(ctx context.Context, req solver.PolicyRequest) (solver.PolicyResponse, error) {
	if err := ctx.Err(); err != nil {
		return solver.PolicyResponse{}, err
	}
	if req.Features == nil {
		return solver.PolicyResponse{}, fmt.Errorf("empty feature matrix")
	}
	rows, cols := req.Features.Dims()
	if cols != len(req.FeatureNames) {
		return solver.PolicyResponse{}, fmt.Errorf("feature matrix has %d columns, %d names", cols, len(req.FeatureNames))
	}

	scores := mat.NewVecDense(rows, nil)
	scores.MulVec(req.Features, p.weights(req.FeatureNames))
	resp := solver.PolicyResponse{
		Rank:      make([]float64, rows),
		Preferred: make([]model.ActionType, rows),
	}
	for i := 0; i < rows; i++ {
		resp.Rank[i] = scores.AtVec(i) + p.cfg.Bias
		resp.Preferred[i] = p.prefer(req, i)
	}
	resp.Probability = p.probability(resp.Rank)

	if j := column(req.FeatureNames, "overlap"); j >= 0 {
		resp.Value = 1 - mat.Sum(req.Features.ColView(j))/float64(rows)
	} else {
		resp.Value = 0.5
	}
	resp.Value = math.Max(0, math.Min(1, resp.Value))
	return resp, nil
}

func (p *LinearPolicy) prefer(req solver.PolicyRequest, i int) model.ActionType {
	at := func(name string) float64 {
		if j := column(req.FeatureNames, name); j >= 0 {
			return req.Features.At(i, j)
		}
		return 0
	}
	switch {
	case at("has_alternative") > 0 && at("priority") < 0.5:
		return model.ActionReroute
	case at("speed_ratio") > 0 && at("overlap") < p.cfg.SpeedAdjustOverlap:
		return model.ActionSpeedAdjust
	}
	return model.ActionDelay
}

// probability maps the margin between the two best scores onto [0.5, 1).
func (p *LinearPolicy) probability(rank []float64) float64 {
	if len(rank) < 2 {
		return p.cfg.SingleTrainProbability
	}
	first, second := math.Inf(-1), math.Inf(-1)
	for _, r := range rank {
		switch {
		case r > first:
			first, second = r, first
		case r > second:
			second = r
		}
	}
	return 1 / (1 + math.Exp(-p.cfg.Sharpness*(first-second)))
}

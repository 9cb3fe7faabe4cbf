package optimizer

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kilianp07/railopt/core/model"
)

// DuplicatePolicy controls what happens when a conflict is submitted while
// an optimisation for the same id is still running.
type DuplicatePolicy string

const (
	// DuplicateReject fails the second request with ErrAlreadyInProgress.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateJoin makes the second request wait for the running one and
	// share its decision.
	DuplicateJoin DuplicatePolicy = "join"
)

const (
	DefaultSolverBudget           = 250 * time.Millisecond
	DefaultAutoApplyThreshold     = 0.85
	DefaultMaxConcurrentConflicts = 4
)

// Options configures the orchestrator.
type Options struct {
	SolverBudget           time.Duration        `json:"solver_budget" validate:"gt=0"`
	EnabledStrategies      []model.StrategyName `json:"enabled_strategies" validate:"min=1,dive,required"`
	AutoApplyThreshold     float64              `json:"auto_apply_threshold" validate:"gte=0,lte=1"`
	MaxConcurrentConflicts int                  `json:"max_concurrent_conflicts" validate:"gte=1"`
	OnDuplicate            DuplicatePolicy      `json:"on_duplicate" validate:"oneof=reject join"`
}

var validate = validator.New()

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	o := Options{}
	o.SetDefaults()
	return o
}

// SetDefaults fills unset fields.
func (o *Options) SetDefaults() {
	if o.SolverBudget == 0 {
		o.SolverBudget = DefaultSolverBudget
	}
	if len(o.EnabledStrategies) == 0 {
		o.EnabledStrategies = append([]model.StrategyName(nil), model.AllStrategies...)
	}
	if o.AutoApplyThreshold == 0 {
		o.AutoApplyThreshold = DefaultAutoApplyThreshold
	}
	if o.MaxConcurrentConflicts == 0 {
		o.MaxConcurrentConflicts = DefaultMaxConcurrentConflicts
	}
	if o.OnDuplicate == "" {
		o.OnDuplicate = DuplicateReject
	}
}

// Validate checks value ranges and rejects strategies listed twice.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("optimizer options: %w", err)
	}
	seen := make(map[model.StrategyName]bool, len(o.EnabledStrategies))
	for _, s := range o.EnabledStrategies {
		if seen[s] {
			return fmt.Errorf("optimizer options: strategy %q enabled twice", s)
		}
		seen[s] = true
	}
	return nil
}

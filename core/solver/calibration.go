package solver

import (
	"fmt"

	"github.com/kilianp07/railopt/core/model"
)

// Calibration holds the tunable constants shared by the built-in solvers.
type Calibration struct {
	// SeverityConfidence maps a severity name to the fixed confidence of the
	// rule-based solver.
	SeverityConfidence map[string]float64 `json:"severity_confidence"`
	// ConstraintConfidence is the confidence of a proven optimal constraint
	// solution. It is scaled down by the optimality gap otherwise.
	ConstraintConfidence float64 `json:"constraint_confidence"`
	// MaxWeightedDelay is the worst raw score of the delay based solvers.
	MaxWeightedDelay float64 `json:"max_weighted_delay"`
	// MaxDelayMinutes bounds the delay the constraint solver may impose.
	MaxDelayMinutes float64 `json:"max_delay_minutes"`
	// NodeLimit caps the branch and bound search tree size.
	NodeLimit int `json:"node_limit"`
	// SpeedAdjustMaxMinutes is the largest delay absorbed by slowing down
	// instead of holding the train.
	SpeedAdjustMaxMinutes float64 `json:"speed_adjust_max_minutes"`
}

// DefaultCalibration returns placeholder constants. They are meant to be
// overridden from configuration.
func DefaultCalibration() Calibration {
	c := Calibration{}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset fields.
func (c *Calibration) SetDefaults() {
	if c.SeverityConfidence == nil {
		c.SeverityConfidence = map[string]float64{}
	}
	defaults := map[string]float64{"low": 0.85, "medium": 0.80, "high": 0.70, "critical": 0.60}
	for k, v := range defaults {
		if _, ok := c.SeverityConfidence[k]; !ok {
			c.SeverityConfidence[k] = v
		}
	}
	if c.ConstraintConfidence == 0 {
		c.ConstraintConfidence = 0.95
	}
	if c.MaxWeightedDelay == 0 {
		c.MaxWeightedDelay = 2000
	}
	if c.MaxDelayMinutes == 0 {
		c.MaxDelayMinutes = 120
	}
	if c.NodeLimit == 0 {
		c.NodeLimit = 200000
	}
	if c.SpeedAdjustMaxMinutes == 0 {
		c.SpeedAdjustMaxMinutes = 3
	}
}

// Validate checks value ranges.
func (c Calibration) Validate() error {
	for k, v := range c.SeverityConfidence {
		if _, err := model.ParseSeverity(k); err != nil {
			return fmt.Errorf("calibration: %w", err)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("calibration: confidence for %s must be in [0,1], got %v", k, v)
		}
	}
	if c.ConstraintConfidence < 0 || c.ConstraintConfidence > 1 {
		return fmt.Errorf("calibration: constraint_confidence must be in [0,1]")
	}
	if c.MaxWeightedDelay <= 0 {
		return fmt.Errorf("calibration: max_weighted_delay must be positive")
	}
	if c.MaxDelayMinutes <= 0 {
		return fmt.Errorf("calibration: max_delay_minutes must be positive")
	}
	if c.NodeLimit < 0 {
		return fmt.Errorf("calibration: node_limit must not be negative")
	}
	return nil
}

// ConfidenceFor returns the rule-based confidence for a severity.
func (c Calibration) ConfidenceFor(s model.Severity) float64 {
	if v, ok := c.SeverityConfidence[s.String()]; ok {
		return v
	}
	return 0.5
}

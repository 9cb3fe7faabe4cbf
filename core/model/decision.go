package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// StrategyName identifies a solving strategy.
type StrategyName string

const (
	StrategyRuleBased  StrategyName = "rule_based"
	StrategyConstraint StrategyName = "constraint_programming"
	StrategyLearned    StrategyName = "reinforcement_learning"
)

// AllStrategies lists the built-in strategies in tie-break order, best first.
var AllStrategies = []StrategyName{StrategyConstraint, StrategyLearned, StrategyRuleBased}

// Priority is used as the last tie-break between equally ranked candidates.
// Higher wins.
func (s StrategyName) Priority() int {
	switch s {
	case StrategyConstraint:
		return 3
	case StrategyLearned:
		return 2
	case StrategyRuleBased:
		return 1
	}
	return 0
}

// CandidateSolution is one strategy's proposal. RawScore is expressed on the
// strategy's own scale.
type CandidateSolution struct {
	Strategy   StrategyName  `json:"strategy"`
	Actions    []Action      `json:"actions"`
	RawScore   float64       `json:"raw_score"`
	Confidence float64       `json:"confidence"`
	Elapsed    time.Duration `json:"elapsed"`
}

// AttemptStatus is the outcome of running one strategy.
type AttemptStatus string

const (
	AttemptSucceeded   AttemptStatus = "succeeded"
	AttemptEmpty       AttemptStatus = "empty"
	AttemptInfeasible  AttemptStatus = "infeasible"
	AttemptTimeout     AttemptStatus = "timeout"
	AttemptUnavailable AttemptStatus = "unavailable"
	AttemptFailed      AttemptStatus = "failed"
	AttemptRejected    AttemptStatus = "rejected"
)

// Attempt records how a strategy fared for one resolution.
type Attempt struct {
	Strategy   StrategyName  `json:"strategy"`
	Status     AttemptStatus `json:"status"`
	Candidates int           `json:"candidates"`
	Elapsed    time.Duration `json:"elapsed"`
	Error      string        `json:"error,omitempty"`
}

// NoSolutionMessage is shown to operators when every strategy failed.
const NoSolutionMessage = "no automated solution found - review manually"

// Decision is the engine's final answer for a conflict. A nil Solution is the
// no-solution sentinel: Actions is then empty and RequiresHumanReview is set.
type Decision struct {
	ID                  string             `json:"id"`
	ConflictID          string             `json:"conflict_id"`
	Solution            *CandidateSolution `json:"solution,omitempty"`
	Actions             DomainActionSet    `json:"actions"`
	Attempts            []Attempt          `json:"attempts"`
	Score               float64            `json:"score"`
	Confidence          float64            `json:"confidence"`
	RequiresHumanReview bool               `json:"requires_human_review"`
	AutoApply           bool               `json:"auto_apply"`
	CreatedAt           time.Time          `json:"created_at"`
}

// ErrInvalidDecision is returned by Validate.
var ErrInvalidDecision = errors.New("invalid decision")

// NoSolution reports whether the decision carries the no-solution sentinel.
func (d Decision) NoSolution() bool { return d.Solution == nil }

// Method returns the name of the strategy that produced the decision, or
// "none".
func (d Decision) Method() string {
	if d.Solution == nil {
		return "none"
	}
	return string(d.Solution.Strategy)
}

// Summary returns a human readable recommendation.
func (d Decision) Summary() string {
	if d.NoSolution() {
		return NoSolutionMessage
	}
	return fmt.Sprintf("%d action(s) from %s, confidence %.2f", len(d.Actions.Actions), d.Method(), d.Confidence)
}

// Validate checks the invariants a decision must hold before leaving the
// engine.
func (d Decision) Validate() error {
	if len(d.Attempts) == 0 {
		return fmt.Errorf("%w: no strategy attempted", ErrInvalidDecision)
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalidDecision, d.Confidence)
	}
	if math.IsNaN(d.Score) || d.Score < 0 || d.Score > 100 {
		return fmt.Errorf("%w: score %v out of range", ErrInvalidDecision, d.Score)
	}
	if d.Solution == nil {
		if len(d.Actions.Actions) > 0 {
			return fmt.Errorf("%w: no-solution decision carries actions", ErrInvalidDecision)
		}
		if !d.RequiresHumanReview {
			return fmt.Errorf("%w: no-solution decision must require review", ErrInvalidDecision)
		}
	}
	return nil
}

var decisionNamespace = uuid.MustParse("8f0c5d0e-3a57-4d43-9a8f-5b4f3e2c1a90")

// DecisionID derives a stable identifier from the conflict and the selected
// solution so that resolving the same conflict to the same answer twice
// produces the same id.
func DecisionID(conflictID string, sol *CandidateSolution) string {
	fp := []byte(conflictID + "|none")
	if sol != nil {
		acts, err := json.Marshal(sol.Actions)
		if err != nil {
			acts = []byte(fmt.Sprintf("%v", sol.Actions))
		}
		fp = append([]byte(conflictID+"|"+string(sol.Strategy)+"|"), acts...)
	}
	return uuid.NewSHA1(decisionNamespace, fp).String()
}

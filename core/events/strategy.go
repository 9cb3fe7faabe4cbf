package events

import (
	"time"

	"github.com/kilianp07/railopt/core/model"
)

// Event is implemented by every engine event.
type Event interface {
	event()
}

// StrategyEvent is emitted once per strategy attempt.
type StrategyEvent struct {
	ConflictID string
	Attempt    model.Attempt
	Time       time.Time
}

// DecisionEvent is emitted once per completed resolution.
type DecisionEvent struct {
	Decision model.Decision
	Latency  time.Duration
}

// ExecutionEvent is emitted for each action acknowledgment or error.
type ExecutionEvent struct {
	CommandID    string
	ConflictID   string
	TrainID      string
	Action       model.ActionType
	Acknowledged bool
	Err          error
	Latency      time.Duration
}

func (StrategyEvent) event()  {}
func (DecisionEvent) event()  {}
func (ExecutionEvent) event() {}

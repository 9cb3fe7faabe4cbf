// Package execution defines the collaborator that carries approved actions
// out on the network.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kilianp07/railopt/core/model"
)

var (
	// ErrAckTimeout is returned when no acknowledgment is received in time.
	ErrAckTimeout = errors.New("timeout waiting for ack")
	// ErrRejected is returned when a train refuses a command.
	ErrRejected = errors.New("command rejected")
)

// Executor applies an action set. Implementations must either apply every
// action or report which one failed.
type Executor interface {
	Apply(ctx context.Context, set model.DomainActionSet) error
}

// ActionError wraps the failure of a single action.
type ActionError struct {
	Index  int
	Action model.Action
	Err    error
}

func (e *ActionError) Error() string {
	target := e.Action.TrainID
	if target == "" {
		target = e.Action.SectionID
	}
	return fmt.Sprintf("action %d (%s %s): %v", e.Index, e.Action.Type, target, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// NopExecutor accepts everything and does nothing.
type NopExecutor struct{}

func (NopExecutor) Apply(context.Context, model.DomainActionSet) error { return nil }

// RecordingExecutor keeps every applied set in memory.
type RecordingExecutor struct {
	mu      sync.Mutex
	applied []model.DomainActionSet
	// Fail, when set, is returned for every call.
	Fail error
}

func (r *RecordingExecutor) Apply(ctx context.Context, set model.DomainActionSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.Fail != nil {
		return r.Fail
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, set)
	return nil
}

// Applied returns a copy of the applied sets in call order.
func (r *RecordingExecutor) Applied() []model.DomainActionSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.DomainActionSet(nil), r.applied...)
}

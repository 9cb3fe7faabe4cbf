package solver

import (
	"errors"
	"fmt"

	"github.com/kilianp07/railopt/core/model"
)

// ErrorKind classifies solver failures. All kinds are local to the strategy
// and never abort a resolution.
type ErrorKind string

const (
	KindInfeasible  ErrorKind = "infeasible"
	KindTimeout     ErrorKind = "timeout"
	KindUnavailable ErrorKind = "unavailable"
	KindFailed      ErrorKind = "failed"
)

// SolverError is returned by strategies and by Run.
type SolverError struct {
	Strategy model.StrategyName
	Kind     ErrorKind
	Err      error
}

func (e *SolverError) Error() string {
	msg := fmt.Sprintf("solver %s: %s", e.Strategy, e.Kind)
	if e.Strategy == "" {
		msg = fmt.Sprintf("solver: %s", e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SolverError) Unwrap() error { return e.Err }

// Is matches another SolverError of the same kind, so that
// errors.Is(err, solver.ErrTimeout) works for any strategy.
func (e *SolverError) Is(target error) bool {
	t, ok := target.(*SolverError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Strategy == "" || t.Strategy == e.Strategy)
}

// Sentinels usable with errors.Is.
var (
	ErrInfeasible  = &SolverError{Kind: KindInfeasible}
	ErrTimeout     = &SolverError{Kind: KindTimeout}
	ErrUnavailable = &SolverError{Kind: KindUnavailable}
	ErrFailed      = &SolverError{Kind: KindFailed}
)

func newError(s model.StrategyName, k ErrorKind, err error) *SolverError {
	return &SolverError{Strategy: s, Kind: k, Err: err}
}

// StatusOf maps a solver error to the attempt status recorded in decisions.
func StatusOf(err error) model.AttemptStatus {
	var se *SolverError
	if !errors.As(err, &se) {
		return model.AttemptFailed
	}
	switch se.Kind {
	case KindInfeasible:
		return model.AttemptInfeasible
	case KindTimeout:
		return model.AttemptTimeout
	case KindUnavailable:
		return model.AttemptUnavailable
	}
	return model.AttemptFailed
}

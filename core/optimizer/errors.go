package optimizer

import "fmt"

// ErrorKind classifies orchestrator failures surfaced to the caller.
type ErrorKind string

const (
	KindAlreadyInProgress ErrorKind = "already_in_progress"
	KindCanceled          ErrorKind = "canceled"
)

// OrchestratorError is returned when a request could not be served at all.
// Solver failures never produce one.
type OrchestratorError struct {
	Kind       ErrorKind
	ConflictID string
	Err        error
}

func (e *OrchestratorError) Error() string {
	msg := fmt.Sprintf("optimizer: %s", e.Kind)
	if e.ConflictID != "" {
		msg += fmt.Sprintf(" conflict %q", e.ConflictID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OrchestratorError) Unwrap() error { return e.Err }

// Is matches any OrchestratorError of the same kind.
func (e *OrchestratorError) Is(target error) bool {
	t, ok := target.(*OrchestratorError)
	return ok && t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrAlreadyInProgress = &OrchestratorError{Kind: KindAlreadyInProgress}
	ErrCanceled          = &OrchestratorError{Kind: KindCanceled}
)

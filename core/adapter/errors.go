package adapter

import "fmt"

// ErrorKind classifies adapter failures. Both kinds are fatal for the
// resolution and are never retried automatically.
type ErrorKind string

const (
	KindMissingEntity ErrorKind = "missing_entity"
	KindInvalidAction ErrorKind = "invalid_action"
	KindInvalidInput  ErrorKind = "invalid_input"
)

// AdapterError reports a contract violation between the caller and the
// engine.
type AdapterError struct {
	Kind   ErrorKind
	Entity string // "train", "section" or "conflict"
	ID     string
	Err    error
}

func (e *AdapterError) Error() string {
	msg := fmt.Sprintf("adapter: %s", e.Kind)
	if e.Entity != "" {
		msg += fmt.Sprintf(" %s %q", e.Entity, e.ID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Is matches any AdapterError of the same kind.
func (e *AdapterError) Is(target error) bool {
	t, ok := target.(*AdapterError)
	return ok && t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrMissingEntity = &AdapterError{Kind: KindMissingEntity}
	ErrInvalidAction = &AdapterError{Kind: KindInvalidAction}
	ErrInvalidInput  = &AdapterError{Kind: KindInvalidInput}
)

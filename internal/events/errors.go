package events

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input the caller must fix.
	ErrValidation = errors.New("validation error")
	// ErrNotFound means no event has the requested id.
	ErrNotFound = errors.New("event not found")
	// ErrInvalidState means the event is not in a state that allows the operation.
	ErrInvalidState = errors.New("invalid event state")
	// ErrStorageUnavailable marks a read that could not reach the backend.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// UnavailableError is the typed outcome of a read the backend could not serve.
// Callers decide whether to degrade or propagate it.
type UnavailableError struct {
	Op  string
	Err error
}

// Error names the operation and the backend cause.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: storage unavailable: %v", e.Op, e.Err)
}

// Unwrap exposes the backend error to errors.Is/As.
func (e *UnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorageUnavailable) match.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

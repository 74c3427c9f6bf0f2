package session

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors signalled by a ControlPlane implementation.
var (
	// ErrAlreadyExists is wrapped by Create if the workload exists.
	ErrAlreadyExists = errors.New("workload already exists")
	// ErrNotFound is wrapped by Delete if the workload does not exist.
	ErrNotFound = errors.New("workload not found")
)

// Kinds of session failures. A StageError matches its kind with
// errors.Is.
var (
	ErrCreationConflict = errors.New("creation conflict")
	ErrCreationFailure  = errors.New("creation failed")
	ErrReadinessTimeout = errors.New("readiness timed out")
	ErrReadinessFailure = errors.New("readiness failed")
	ErrAttachFailure    = errors.New("attach failed")
	ErrPipeFailure      = errors.New("pipe failed")
	ErrInterrupted      = errors.New("session interrupted")
	ErrCleanupFailure   = errors.New("cleanup failed")
)

// StageError is a session failure annotated with the state the
// session was in when it occurred.
type StageError struct {
	Stage State
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap allows matching both the kind and the cause.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

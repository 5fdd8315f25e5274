package core

import (
	"errors"
	"fmt"
)

var (
	// ErrExtractionDegraded marks a context extraction that fell back to defaults.
	ErrExtractionDegraded = errors.New("extraction degraded")
	// ErrSpecialistDegraded marks a specialist fragment replaced by an error marker.
	ErrSpecialistDegraded = errors.New("specialist degraded")
	// ErrProviderUnavailable means no usable credentials or client for a provider.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrSynthesisFailed is the only failure that aborts a comparison run.
	ErrSynthesisFailed = errors.New("synthesis failed")
	// ErrPersistenceFailed marks a storage collaborator failure; never fatal.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrBudgetExceeded means the run crossed a configured limit; later
	// provider calls are skipped.
	ErrBudgetExceeded = errors.New("budget exceeded")
	// ErrRunInFlight rejects a run id that is already being processed.
	ErrRunInFlight = errors.New("run already in flight")
	// ErrEmptyQuery rejects blank input before any provider call.
	ErrEmptyQuery = errors.New("query is empty")
)

// DegradedError attaches the stage and reason to one of the sentinels above.
type DegradedError struct {
	Stage  string
	Reason string
	Kind   error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Stage, e.Reason)
}

func (e *DegradedError) Unwrap() error { return e.Kind }

func degraded(kind error, stage, reason string) *DegradedError {
	return &DegradedError{Stage: stage, Reason: reason, Kind: kind}
}

package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks caller mistakes: empty utterances, missing fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyUtterance is returned when the trimmed utterance is empty.
	ErrEmptyUtterance = fmt.Errorf("%w: utterance text is empty", ErrInvalidInput)
	// ErrUnauthenticated is returned when an operation needs a user id and none resolves.
	ErrUnauthenticated = errors.New("user not authenticated")
	// ErrConsistency marks a cached value that no longer validates.
	ErrConsistency = errors.New("inconsistent cached value")
)

// Dependency names used in DegradedError.
const (
	DependencyEmbedding   = "embedding"
	DependencyRetrieval   = "remote_retrieval"
	DependencyTelemetry   = "telemetry"
	DependencyGoalContext = "goal_context"
	DependencyPersistence = "persistence"
	DependencyPicture     = "operating_picture"
)

// DegradedError reports a non-critical collaborator failure. Callers pick
// a documented fallback instead of failing the request.
type DegradedError struct {
	Dependency string
	Err        error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("%s degraded: %v", e.Dependency, e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// Degraded wraps err as a DegradedError; nil stays nil.
func Degraded(dependency string, err error) error {
	if err == nil {
		return nil
	}
	return &DegradedError{Dependency: dependency, Err: err}
}

// IsDegraded reports whether err carries a DegradedError.
func IsDegraded(err error) bool {
	var d *DegradedError
	return errors.As(err, &d)
}

// InvalidInput builds an ErrInvalidInput with a message.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

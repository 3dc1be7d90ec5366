package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable marks a static-collection failure that survived
	// all retry attempts. It is fatal for the run.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrCredentialExpired is returned by authenticated source calls when
	// the upstream signals token expiry. The pipeline refreshes once and
	// retries within the same attempt.
	ErrCredentialExpired = errors.New("credential expired")

	// ErrInvalidConfiguration marks run options that fail validation
	// (e.g. batch size below 1).
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNoData marks a business-level empty result from a source: the call
	// succeeded but the upstream has nothing for this entity. Callers
	// degrade to placeholder values rather than fail.
	ErrNoData = errors.New("no data")
)

// TransientError wraps a retryable failure from a source or the sink.
type TransientError struct {
	Source string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError attributed to source.
func Transient(source string, err error) error {
	return &TransientError{Source: source, Err: err}
}

// IsTransient reports whether err is retryable under the backoff policy.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// DataShapeError marks malformed source output. It is never retried; the
// affected work item settles as failed immediately.
type DataShapeError struct {
	Source string
	Reason string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("%s: malformed output: %s", e.Source, e.Reason)
}

// IsDataShape reports whether err is a DataShapeError.
func IsDataShape(err error) bool {
	var de *DataShapeError
	return errors.As(err, &de)
}

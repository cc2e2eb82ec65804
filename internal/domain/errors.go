package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCaseNotFound indicates the case or daily challenge could not be found in the catalog.
	ErrCaseNotFound = errors.New("case not found")
	// ErrUserNotFound indicates the backend does not know the account.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCase is returned when strict validation rejects a loaded case.
	ErrInvalidCase = errors.New("invalid case definition")
	// ErrOptionNotFound indicates a selected test, diagnosis or treatment id is not part of the case.
	ErrOptionNotFound = errors.New("option not found")
	// ErrSessionNotFound is returned when a user has no active case session.
	ErrSessionNotFound = errors.New("case session not found")
	// ErrSessionNotActive is returned when a mutation arrives outside the in-progress phase.
	ErrSessionNotActive = errors.New("case session is not in progress")
	// ErrMissingUser rejects a submission without a user id.
	ErrMissingUser = errors.New("missing user id")
	// ErrMissingCaseRef rejects a submission without a case or daily-challenge reference.
	ErrMissingCaseRef = errors.New("missing case reference")
	// ErrMissingCaseDefinition rejects a submission without a loaded case.
	ErrMissingCaseDefinition = errors.New("missing case definition")
	// ErrAlreadySubmitted is returned for a second submission of the same gameplay.
	ErrAlreadySubmitted = errors.New("gameplay already submitted")
	// ErrSubmissionInFlight is returned while a submission for the session is still pending.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrNoHearts blocks entry into a case for a non-premium account without hearts.
	ErrNoHearts = errors.New("no hearts left")
)

// RetryableError wraps a transient failure (network, backend 5xx). Local state is
// untouched when one is returned.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err as a RetryableError unless it is nil or already one.
func Retryable(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RetryableError
	if errors.As(err, &re) {
		return err
	}
	return &RetryableError{Op: op, Err: err}
}

// IsRetryable reports whether err carries a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

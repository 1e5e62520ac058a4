package errors

import "errors"

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrBatchNotFound = errors.New("batch not found")
	ErrValidation    = errors.New("validation failed")

	// State machine denials, surfaced to the caller as-is.
	ErrInvalidState       = errors.New("invalid state")
	ErrRetryLimitExceeded = errors.New("retry limit exceeded")
	ErrNoRetryableTasks   = errors.New("no retryable tasks")

	// CDN boundary. Read paths absorb these into "no result"; they are
	// exported so the client can log and classify what it absorbed.
	ErrCDNUnavailable   = errors.New("cdn unavailable")
	ErrCDNNotFound      = errors.New("cdn object not found")
	ErrTokenMintFailure = errors.New("token mint failure")

	ErrConcurrentUpdate = errors.New("concurrent update conflict")
)

// IsStateDenial reports whether err is one of the state machine denials.
func IsStateDenial(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrRetryLimitExceeded) ||
		errors.Is(err, ErrNoRetryableTasks)
}

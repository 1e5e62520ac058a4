package domain

import (
	"fmt"

	errpkg "github.com/veranemoloko/tgdl-core/internal/errors"
)

// MaxRetries bounds retries for tasks and batches alike.
const MaxRetries = 3

// RetryDecision is the outcome of EvaluateRetry. Reason is nil when Allowed.
type RetryDecision struct {
	Allowed bool
	Reason  error
}

// EvaluateRetry decides whether an item in status with retryCount previous
// retries may be retried again. The limit is checked before the status so a
// task that used up its retries is always denied with ErrRetryLimitExceeded.
func EvaluateRetry(status TaskStatus, retryCount, maxRetries int) RetryDecision {
	if retryCount >= maxRetries {
		return RetryDecision{
			Reason: fmt.Errorf("%w: %d of %d retries used", errpkg.ErrRetryLimitExceeded, retryCount, maxRetries),
		}
	}

	if status != TaskStatusFailed && status != TaskStatusCancelled {
		return RetryDecision{
			Reason: fmt.Errorf("%w: only failed or cancelled tasks can be retried, status is %s", errpkg.ErrInvalidState, status),
		}
	}

	return RetryDecision{Allowed: true}
}

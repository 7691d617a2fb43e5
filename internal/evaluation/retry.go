package evaluation

import (
	"context"
	"errors"
	"time"
)

// #region constants
const defaultMaxAttempts = 5
// #endregion constants

// #region policy
// RetryPolicy bounds how often version allocation is retried after a conflict.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // base delay, doubled per attempt
}

// DefaultRetryPolicy returns the allocation retry budget used by the service.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultMaxAttempts, Backoff: 10 * time.Millisecond}
}
// #endregion policy

// #region do
// Do calls fn until it succeeds, returns a non-retryable error, the budget is
// spent, or ctx ends. retryable decides which errors are worth another try.
// The last error is returned when attempts run out.
func (p RetryPolicy) Do(ctx context.Context, retryable func(error) bool, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if p.Backoff > 0 {
			delay := p.Backoff << (attempt - 1)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(err, ctx.Err())
			case <-timer.C:
			}
		}
	}
	return err
}
// #endregion do

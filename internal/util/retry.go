package util

import (
	"context"
	"time"
)

// Retry calls fn up to maxAttempts times, doubling the wait between attempts
// starting from baseDelay. It returns nil on the first success, the context
// error if ctx is cancelled while waiting, or the last fn error once the
// attempts are exhausted. Used for startup-time terminal connection, where a
// terminal that is still launching answers after a few seconds; per-signal
// execution never retries.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		// No wait after the final attempt.
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return err
}

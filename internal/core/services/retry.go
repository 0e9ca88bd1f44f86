package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/docrag/internal/logger"
)

// ErrInvalidMaxAttempts is returned when fewer than one attempt is requested.
var ErrInvalidMaxAttempts = errors.New("max attempts must be greater than zero")

// DefaultRetryBaseDelay is the wait before the second attempt.
const DefaultRetryBaseDelay = 500 * time.Millisecond

// retryWithBackoff runs op up to maxAttempts times, waiting
// baseDelay * 2^(attempt-1) between attempts.
// Returns the error of the last attempt when all attempts fail.
func retryWithBackoff(ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(attempt int) error) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = op(attempt)
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("succeeded on attempt %d", attempt)
			}
			return nil
		}

		logger.Debug("attempt %d/%d failed: %v", attempt, maxAttempts, lastErr)
		if attempt == maxAttempts {
			break
		}

		delay := baseDelay << (attempt - 1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}

// Package retry provides a reusable exponential-backoff combinator.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Spec configures a retry sequence. It is a value object: share it freely,
// never mutate it mid-sequence. The backoff multiplier is fixed at 2.
type Spec struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultSpec matches the fetcher defaults: three attempts, 500ms base delay.
func DefaultSpec() Spec {
	return Spec{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
	}
}

// Backoff returns the wait duration after the given zero-based attempt.
func (s Spec) Backoff(attempt int) time.Duration {
	delay := s.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// Do invokes op until it succeeds, the attempt budget is spent, or the
// context ends. The last error is returned once the budget is exhausted.
func Do(ctx context.Context, spec Spec, op func(ctx context.Context) error) error {
	attempts := spec.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry canceled: %w", err)
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(spec.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

package shared

import (
	"context"
	"log/slog"
	"time"
)

// RetryOnConflict runs op up to maxRetries times, backing off exponentially
// from baseDelay while op fails with a conflict error. Other errors and
// context cancellation end the loop immediately.
func RetryOnConflict(ctx context.Context, name string, maxRetries int, baseDelay time.Duration, op func() error) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var err error
	for i := 0; i < maxRetries; i++ {
		err = op()
		if err == nil {
			return nil
		}
		if !IsConflictError(err) || i == maxRetries-1 {
			return err
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("Database conflict, retrying",
			"operation", name,
			"attempt", i+1,
			"delay", delay,
			"error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

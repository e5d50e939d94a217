package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tbourn/go-kala-backend/internal/repo"
)

// DefaultTimeout bounds every storage and auth call when a service has no
// explicit Timeout.
const DefaultTimeout = 5 * time.Second

// withTimeout derives the per-operation context.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// classify maps a raw dependency error into the taxonomy. Errors that
// already belong to it are returned unchanged.
func classify(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case isKnown(err):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
	}
}

// clock returns now() from fn, or the wall clock in UTC.
func clock(fn func() time.Time) time.Time {
	if fn != nil {
		return fn().UTC()
	}
	return time.Now().UTC()
}

// isDuplicate reports a unique-index hit from the repository layer.
func isDuplicate(err error) bool {
	return errors.Is(err, repo.ErrDuplicate)
}

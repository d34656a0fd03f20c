package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/errs"
)

type RetryPolicy struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
}

var DefaultRetry = RetryPolicy{Attempts: 3, Backoff: time.Second}

// Retry calls fn until it succeeds, fails with a non-transient error, or the
// attempts run out. The wait before attempt n+1 is n*Backoff.
func Retry[T any](ctx context.Context, policy RetryPolicy, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(policy.Attempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !errs.Is(err, errs.TransientToolFailure) {
			return zero, err
		}
		if attempt == attempts {
			break
		}
		wait := time.Duration(attempt) * policy.Backoff
		log.Debug().Str("op", op).Err(err).Msgf("attempt %d/%d failed, retrying in %s", attempt, attempts, wait)
		select {
		case <-ctx.Done():
			return zero, errs.E(errs.TransientToolFailure, op, ctx.Err())
		case <-time.After(wait):
		}
	}
	return zero, errs.E(errs.TransientToolFailure, op, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr))
}

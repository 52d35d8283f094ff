package geo

import (
	"context"
	"errors"
	"time"

	"driverlink/internal/apperr"
	"driverlink/internal/domain"
	"driverlink/internal/logx"
)

// Estimator returns travel distance and duration for a coordinate pair.
type Estimator interface {
	Estimate(ctx context.Context, origin, dest domain.Location) (Estimate, error)
}

type counter interface {
	Inc()
}

// RetryConfig describes the retry behavior of RetryingEstimator.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingEstimator retries provider failures a small bounded number of
// times before giving up on a candidate. Non-provider errors pass through
// untouched.
type RetryingEstimator struct {
	next    Estimator
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
}

// NewRetryingEstimator wraps next with bounded retries. Returns nil if next is nil.
func NewRetryingEstimator(next Estimator, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingEstimator {
	if next == nil {
		return nil
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &RetryingEstimator{next: next, logger: logger, retries: retries, cfg: cfg}
}

// Estimate calls the wrapped estimator, retrying unavailability with
// exponential backoff.
func (r *RetryingEstimator) Estimate(ctx context.Context, origin, dest domain.Location) (Estimate, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		est, err := r.next.Estimate(ctx, origin, dest)
		if err == nil {
			return est, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == r.cfg.MaxAttempts || !errors.Is(err, apperr.ErrDistanceUnavailable) {
			break
		}

		delay := backoff(r.cfg.BaseDelay, r.cfg.MaxDelay, attempt)
		if r.retries != nil {
			r.retries.Inc()
		}
		r.logger.Warn("distance provider retry",
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return Estimate{}, lastErr
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if max > 0 && d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"spot-perps-arb/internal/config"
)

// retrier applies exponential backoff around a fetch attempt. Callers absorb
// the final error and fall back to empty values; an empty result is a valid
// "temporarily unavailable" signal downstream, not an error.
type retrier struct {
	initial  time.Duration
	mult     float64
	attempts int
	logger   zerolog.Logger
}

func newRetrier(cfg config.RetryConfig, logger zerolog.Logger) retrier {
	r := retrier{
		initial:  cfg.InitialDelay,
		mult:     cfg.Multiplier,
		attempts: cfg.MaxAttempts,
		logger:   logger,
	}
	if r.initial <= 0 {
		r.initial = 500 * time.Millisecond
	}
	if r.mult < 1 {
		r.mult = 2.0
	}
	if r.attempts <= 0 {
		r.attempts = 10
	}
	return r
}

// do runs fn until it succeeds, attempts are exhausted, or ctx is cancelled.
func (r retrier) do(ctx context.Context, operation string, fn func() error) error {
	delay := r.initial
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == r.attempts {
			break
		}
		r.logger.Debug().
			Err(lastErr).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("next_delay", delay).
			Msg("fetch failed, backing off")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * r.mult)
	}
	r.logger.Warn().
		Err(lastErr).
		Str("operation", operation).
		Int("attempts", r.attempts).
		Msg("fetch failed after retries, returning empty result")
	return lastErr
}

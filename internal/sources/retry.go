package sources

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"trendboard/internal/metrics"
)

// RetryPolicy bounds how long a single fetch may take: MaxAttempts attempts,
// each cancelled after Timeout, separated by a delay that starts at BaseDelay
// and doubles per attempt up to MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	Timeout     time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Timeout:     10 * time.Second,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0
	return b
}

// withRetry runs op until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The last error is returned unchanged.
func withRetry[T any](ctx context.Context, source string, p RetryPolicy, log *slog.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	attempt := 0

	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()

		v, err := op(attemptCtx)
		if err == nil {
			metrics.RecordSourceRequest(source, metrics.SourceOK)
			return v, nil
		}
		if !retryable(err) || attempt >= p.MaxAttempts {
			metrics.RecordSourceRequest(source, metrics.SourceError)
			return v, backoff.Permanent(err)
		}
		metrics.RecordSourceRequest(source, metrics.SourceRetry)
		log.Warn("source request failed, retrying", "source", source, "attempt", attempt, "error", err)
		return v, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
	)
}

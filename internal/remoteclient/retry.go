package remoteclient

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the retry budget for one class of remote call.
type RetryPolicy struct {
	MaxAttempts int
	Timeout     time.Duration
}

// DataQueryPolicy governs issue search, count, and metadata fetches.
var DataQueryPolicy = RetryPolicy{MaxAttempts: 3, Timeout: 60 * time.Second}

// ConnectionProbePolicy governs cheap reachability checks.
var ConnectionProbePolicy = RetryPolicy{MaxAttempts: 2, Timeout: 30 * time.Second}

// initialBackoffInterval is the base of the 2^attempt second schedule.
var initialBackoffInterval = 2 * time.Second

// backoffFor builds an exponential backoff sequence (2^attempt seconds)
// capped at policy.MaxAttempts attempts in total (the first attempt plus
// MaxAttempts-1 retries).
func backoffFor(policy RetryPolicy) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = initialBackoffInterval
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0

	return backoff.WithMaxRetries(eb, retriesFor(policy))
}

// retriesFor converts policy.MaxAttempts into the retry count that
// backoff.WithMaxRetries expects.
func retriesFor(policy RetryPolicy) uint64 {
	if policy.MaxAttempts <= 1 {
		return 0
	}
	return uint64(policy.MaxAttempts - 1)
}

// retry runs op under the given policy, bounding each attempt by
// policy.Timeout and retrying transport/timeout failures with exponential
// backoff before surfacing the final error.
func retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	bo := backoff.WithContext(backoffFor(policy), ctx)
	return retryWithBackoff(ctx, bo, func(attemptCtx context.Context) error {
		boundedCtx, cancel := context.WithTimeout(attemptCtx, policy.Timeout)
		defer cancel()
		return op(boundedCtx)
	})
}

// retryWithBackoff drives op through bo; op receives ctx unmodified, so
// callers that need a per-attempt deadline apply it themselves.
func retryWithBackoff(ctx context.Context, bo backoff.BackOff, op func(ctx context.Context) error) error {
	return backoff.Retry(func() error {
		return op(ctx)
	}, bo)
}

// fastBackoffFor returns the same retry budget as policy but with a
// near-zero interval, for tests that exercise the retry count without
// waiting through the real exponential schedule.
func fastBackoffFor(policy RetryPolicy) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = time.Millisecond
	eb.Multiplier = 1
	eb.MaxElapsedTime = 0
	return backoff.WithMaxRetries(eb, retriesFor(policy))
}

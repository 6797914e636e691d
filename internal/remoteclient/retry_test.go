package remoteclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Timeout: time.Second}

	attempts := 0
	err := retryWithInterval(t, policy, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 1, Timeout: time.Second}

	attempts := 0
	err := retryWithInterval(t, policy, func(ctx context.Context) error {
		attempts++
		return errors.New("permanent")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts) // MaxAttempts counts the initial attempt
}

// retryWithInterval runs retry with a near-zero backoff so the test doesn't
// sleep through the real exponential schedule.
func retryWithInterval(t *testing.T, policy RetryPolicy, op func(ctx context.Context) error) error {
	t.Helper()
	eb := fastBackoffFor(policy)
	return retryWithBackoff(context.Background(), eb, op)
}

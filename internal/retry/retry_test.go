package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	attempts := 0
	spec := Spec{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond}

	start := time.Now()
	err := Do(context.Background(), spec, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	// Two backoffs happened: base + base*2.
	require.GreaterOrEqual(t, elapsed, 15*time.Millisecond)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	t.Parallel()

	attempts := 0
	spec := Spec{MaxAttempts: 3, BaseDelay: time.Millisecond}
	boom := errors.New("boom")

	err := Do(context.Background(), spec, func(context.Context) error {
		attempts++
		return boom
	})

	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, attempts)
}

func TestDo_ContextCancelStopsRetrying(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	spec := Spec{MaxAttempts: 5, BaseDelay: time.Hour}

	err := Do(ctx, spec, func(context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	})

	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), Spec{}, func(context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 1, attempts)
}

func TestBackoffDoubles(t *testing.T) {
	t.Parallel()

	spec := Spec{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond}
	require.Equal(t, 100*time.Millisecond, spec.Backoff(0))
	require.Equal(t, 200*time.Millisecond, spec.Backoff(1))
	require.Equal(t, 400*time.Millisecond, spec.Backoff(2))
}

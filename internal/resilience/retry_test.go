package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tamreport/internal/common"
)

type recordedSleep struct {
	delays []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func transient() error {
	return &common.Error{Kind: common.KindSourceUnavailable, Retryable: true, Err: errors.New("timeout")}
}

func TestPolicyDelay_ExponentialWithCap(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
	assert.Equal(t, 30*time.Second, p.Delay(6), "delay should be capped at MaxDelay")
}

func TestDo_TwoTransientFailuresThenSuccess(t *testing.T) {
	rec := &recordedSleep{}
	p := DefaultPolicy()
	p.Sleep = rec.sleep

	calls := 0
	v, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, transient()
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	rec := &recordedSleep{}
	p := DefaultPolicy()
	p.Sleep = rec.sleep

	calls := 0
	_, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		return "", common.Errorf(common.KindSourceAuth, "rhcase", "token expired")
	})

	require.Error(t, err)
	assert.Equal(t, common.KindSourceAuth, common.KindOf(err))
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestDo_ExhaustedReturnsLastError(t *testing.T) {
	rec := &recordedSleep{}
	p := DefaultPolicy()
	p.Sleep = rec.sleep

	calls := 0
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, transient()
	})

	require.Error(t, err)
	assert.True(t, common.IsRetryable(err))
	assert.Equal(t, 3, calls)
	assert.Len(t, rec.delays, 2)
}

func TestDo_OnRetryObservesEachBackoff(t *testing.T) {
	p := DefaultPolicy()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	var attempts []int
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		attempts = append(attempts, attempt)
	}

	_, _ = Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 0, transient()
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_CancelledContextStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := DefaultPolicy()
	calls := 0
	_, err := Do(ctx, p, func(ctx context.Context) (int, error) {
		calls++
		return 0, transient()
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(common.RetryPolicyConfig{MaxAttempts: 5, BaseDelay: "1s", Factor: 3, MaxDelay: "10s"})
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 3*time.Second, p.Delay(2))
	assert.Equal(t, 9*time.Second, p.Delay(3))
	assert.Equal(t, 10*time.Second, p.Delay(4))
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearBackOff(t *testing.T) {
	b := Linear(time.Second)

	assert.Equal(t, 1*time.Second, b.NextBackOff())
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, 3*time.Second, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 1*time.Second, b.NextBackOff())
}

func TestPolicyDoSucceedsAfterRetry(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Interval: time.Millisecond}

	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicyDoExhaustsAttempts(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Interval: time.Millisecond}

	err := p.Do(context.Background(), func() error {
		calls++
		return errors.New("always fails")
	})

	require.Error(t, err)
	assert.EqualError(t, err, "always fails")
	assert.Equal(t, 3, calls)
}

func TestPolicyDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	p := Policy{}

	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicyDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	p := Policy{MaxAttempts: 5, Interval: time.Hour}

	err := p.Do(ctx, func() error {
		calls++
		return errors.New("fail")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

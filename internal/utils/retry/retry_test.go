package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qslv/transaction-engine/internal/utils/retry"
)

var errTransient = errors.New("transient")
var errPermanent = errors.New("permanent")

func isTransient(err error) bool {
	return errors.Is(err, errTransient)
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	p := retry.Policy{MaxAttempts: 3, BaseBackoff: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	}, isTransient)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientToSuccess(t *testing.T) {
	p := retry.Policy{MaxAttempts: 5, BaseBackoff: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, isTransient)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	p := retry.Policy{MaxAttempts: 5, BaseBackoff: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errPermanent
	}, isTransient)

	require.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
}

func TestDo_AttemptsExhausted(t *testing.T) {
	p := retry.Policy{MaxAttempts: 3, BaseBackoff: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errTransient
	}, isTransient)

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDo_ZeroAttemptsMeansOne(t *testing.T) {
	p := retry.Policy{}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errTransient
	}, isTransient)

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	p := retry.Policy{MaxAttempts: 10, BaseBackoff: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func() error {
		calls++
		return errTransient
	}, isTransient)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPoller(query QueryFunc) *Poller {
	p := New(query)
	p.Interval = time.Millisecond
	return p
}

func TestRunSuccess(t *testing.T) {
	calls := 0
	p := fastPoller(func(ctx context.Context, id string) (string, error) {
		calls++
		if calls < 3 {
			return "", nil
		}
		return "0", nil
	})

	state, err := p.Run(context.Background(), "ws_CO_1")
	assert.NoError(t, err)
	assert.Equal(t, StateSuccess, state)
	assert.Equal(t, 3, calls)
}

func TestRunCancelled(t *testing.T) {
	p := fastPoller(func(ctx context.Context, id string) (string, error) {
		return "1032", nil
	})

	state, err := p.Run(context.Background(), "ws_CO_1")
	assert.NoError(t, err)
	assert.Equal(t, StateCancelled, state)
}

func TestRunTimeoutAfterMaxAttempts(t *testing.T) {
	calls := 0
	p := fastPoller(func(ctx context.Context, id string) (string, error) {
		calls++
		return "", nil
	})

	state, err := p.Run(context.Background(), "ws_CO_1")
	assert.NoError(t, err)
	assert.Equal(t, StateTimeout, state)
	assert.Equal(t, DefaultMaxAttempts, calls)
}

func TestRunErrorWhenFinalAttemptFails(t *testing.T) {
	transportErr := errors.New("connection refused")
	p := fastPoller(func(ctx context.Context, id string) (string, error) {
		return "", transportErr
	})

	state, err := p.Run(context.Background(), "ws_CO_1")
	assert.ErrorIs(t, err, transportErr)
	assert.Equal(t, StateError, state)
}

func TestRunTimeoutWhenErrorRecovers(t *testing.T) {
	calls := 0
	p := fastPoller(func(ctx context.Context, id string) (string, error) {
		calls++
		if calls < DefaultMaxAttempts {
			return "", errors.New("connection refused")
		}
		// Last attempt answers but the transaction is still pending.
		return "", nil
	})

	state, err := p.Run(context.Background(), "ws_CO_1")
	assert.NoError(t, err)
	assert.Equal(t, StateTimeout, state)
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := New(func(ctx context.Context, id string) (string, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return "", nil
	})
	p.Interval = time.Millisecond

	state, err := p.Run(ctx, "ws_CO_1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateError, state)
}

func TestTerminal(t *testing.T) {
	assert.False(t, StateIdle.Terminal())
	assert.False(t, StatePolling.Terminal())
	assert.True(t, StateSuccess.Terminal())
	assert.True(t, StateCancelled.Terminal())
	assert.True(t, StateTimeout.Terminal())
	assert.True(t, StateError.Terminal())
}

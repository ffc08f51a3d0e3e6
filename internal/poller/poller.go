// Package poller drives client-side STK status polling: a bounded,
// cancellable loop that runs independently of the server-pushed
// callback and reports the first terminal signal it sees.
package poller

import (
	"context"
	"time"
)

// State is the poller's lifecycle state. idle -> polling -> terminal.
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateSuccess   State = "success"
	StateCancelled State = "cancelled"
	StateTimeout   State = "timeout"
	StateError     State = "error"
)

// Terminal reports whether the state ends the polling loop.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateCancelled, StateTimeout, StateError:
		return true
	}
	return false
}

// Result codes mirrored from the provider's status query.
const (
	resultCodeSuccess   = "0"
	resultCodeCancelled = "1032"
)

// QueryFunc fetches the current ResultCode for a checkout handle. An
// empty code means the transaction is still being processed; an error is
// a transport failure, not a payment outcome.
type QueryFunc func(ctx context.Context, checkoutRequestId string) (resultCode string, err error)

// Poller polls a checkout handle until a terminal outcome, attempt
// exhaustion, or context cancellation. The zero value is not usable;
// construct with New.
type Poller struct {
	Query       QueryFunc
	Interval    time.Duration
	MaxAttempts int
}

const (
	// DefaultInterval and DefaultMaxAttempts give the 60-second UX
	// ceiling: 5s x 12.
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 12
)

func New(query QueryFunc) *Poller {
	return &Poller{
		Query:       query,
		Interval:    DefaultInterval,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Run polls until terminal. Transport errors are swallowed and counted
// as attempts; if the final attempt also errors the state is StateError,
// while exhaustion on a non-terminal code is StateTimeout. Cancelling
// ctx stops the loop and returns ctx's error with StateError.
func (p *Poller) Run(ctx context.Context, checkoutRequestId string) (State, error) {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		code, err := p.Query(ctx, checkoutRequestId)
		if err != nil {
			if ctx.Err() != nil {
				return StateError, ctx.Err()
			}
			lastErr = err
		} else {
			lastErr = nil
			switch code {
			case resultCodeSuccess:
				return StateSuccess, nil
			case resultCodeCancelled:
				return StateCancelled, nil
			}
			// Any other code, including empty, is still pending.
		}

		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return StateError, ctx.Err()
		case <-time.After(p.Interval):
		}
	}

	if lastErr != nil {
		return StateError, lastErr
	}
	return StateTimeout, nil
}

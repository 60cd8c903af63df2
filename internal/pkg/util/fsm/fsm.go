package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// WrapEvent adapts an error-returning callback to fsm.Callback.
// A returned error is stored on the event and surfaces from FSM.Event.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// IsRejected reports whether err means the machine refused the event
// (wrong source state, canceled by a guard, or no state change).
func IsRejected(err error) bool {
	var (
		invalid  fsm.InvalidEventError
		canceled fsm.CanceledError
		noop     fsm.NoTransitionError
		unknown  fsm.UnknownEventError
	)
	return errors.As(err, &invalid) ||
		errors.As(err, &canceled) ||
		errors.As(err, &noop) ||
		errors.As(err, &unknown)
}

package actuator

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oshokin/garden-controller/internal/driver/output"
)

// ErrDeadlinePassed is returned by Waiter.Until when the wake instant is
// already in the past, so no wait happened.
var ErrDeadlinePassed = errors.New("wake deadline already passed")

var (
	// errDriverRequired is returned when no output driver is supplied.
	errDriverRequired = errors.New("output driver must be provided")
	// errClockRequired is returned when no wall clock is supplied.
	errClockRequired = errors.New("wall clock must be provided")
	// errPeriodRequired is returned for a non-positive period.
	errPeriodRequired = errors.New("period must be positive")
	// errActiveRequired is returned for a non-positive active duration.
	errActiveRequired = errors.New("active duration must be positive")
	// errIdleNegative is returned for a negative idle duration.
	errIdleNegative = errors.New("idle duration must not be negative")
)

// Setter sets output levels.
type Setter interface {
	SetLevel(ctx context.Context, line output.Line, level output.Level)
}

// Reader reads the current wall-clock time.
type Reader interface {
	Now() time.Time
}

// Waiter sleeps until absolute instants of a clock.
type Waiter struct {
	clock clockwork.Clock
}

// NewWaiter creates a waiter over clock. A nil clock uses the real clock.
func NewWaiter(clock clockwork.Clock) Waiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return Waiter{clock: clock}
}

// Now returns the waiter's clock reading.
func (w Waiter) Now() time.Time {
	return w.clock.Now()
}

// Until blocks until deadline. It returns ErrDeadlinePassed without waiting
// if deadline is not in the future, or ctx.Err() if ctx ends first.
func (w Waiter) Until(ctx context.Context, deadline time.Time) error {
	d := deadline.Sub(w.clock.Now())
	if d <= 0 {
		return ErrDeadlinePassed
	}

	return sleep(ctx, w.clock, d)
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}

package station

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	domain "github.com/oshokin/garden-controller/internal/domain/station"
	"github.com/oshokin/garden-controller/internal/logger"
)

// Radio is the station-mode driver boundary the machine depends on.
type Radio interface {
	// Start brings the radio up in station mode. Notifications are delivered
	// through notify from any goroutine.
	Start(ctx context.Context, notify func(domain.Event)) error
	// Connect issues one association attempt and returns without waiting for it.
	Connect(ctx context.Context) error
}

// eventQueueSize bounds the notifications buffered between the radio and Run.
const eventQueueSize = 32

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("station already started")
	// ErrWaitConsumed is returned when a second caller tries to wait.
	ErrWaitConsumed = errors.New("station resolution already awaited")
	// errRadioRequired is returned when no radio is supplied.
	errRadioRequired = errors.New("radio must be provided")
)

// Option configures a Machine.
type Option func(*Machine)

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(n int) Option {
	return func(m *Machine) {
		if n >= 0 {
			m.maxRetries = n
		}
	}
}

// WithObserver registers a callback invoked from Run after every status change.
// The callback must not block.
func WithObserver(observer func(domain.Status)) Option {
	return func(m *Machine) {
		m.observer = observer
	}
}

// Machine owns the station connection lifecycle.
type Machine struct {
	// radio is the external driver.
	radio Radio
	// maxRetries is the reconnect budget.
	maxRetries int
	// observer is notified of status changes.
	observer func(domain.Status)

	// events carries notifications from the radio to Run.
	events chan domain.Event
	// status is the live status snapshot, written by Run only.
	status atomic.Pointer[domain.Status]

	// started guards Start.
	started atomic.Bool
	// waited guards Wait.
	waited atomic.Bool

	// resolved is closed once the outcome is known.
	resolved chan struct{}
	// outcome is written once before resolved is closed.
	outcome domain.Outcome
	// resolveOnce makes resolution one-shot.
	resolveOnce sync.Once
}

// New creates a machine in the idle phase.
func New(radio Radio, opts ...Option) (*Machine, error) {
	if radio == nil {
		return nil, errRadioRequired
	}

	m := &Machine{
		radio:      radio,
		maxRetries: domain.DefaultMaxRetries,
		events:     make(chan domain.Event, eventQueueSize),
		resolved:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.status.Store(&domain.Status{Phase: domain.PhaseIdle})

	return m, nil
}

// Status returns the live connection status.
func (m *Machine) Status() domain.Status {
	return *m.status.Load()
}

// MaxRetries returns the reconnect budget.
func (m *Machine) MaxRetries() int {
	return m.maxRetries
}

// Start moves the machine to connecting and starts the radio.
func (m *Machine) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	m.publish(&domain.Status{Phase: domain.PhaseConnecting})

	logger.Info(ctx, "Starting station mode")

	if err := m.radio.Start(ctx, m.Notify); err != nil {
		return fmt.Errorf("start radio: %w", err)
	}

	return nil
}

// Notify enqueues a radio notification. It never blocks: when the queue is
// full the notification is dropped and reported.
func (m *Machine) Notify(event domain.Event) {
	select {
	case m.events <- event:
	default:
		logger.Logger().Named("station").Errorw("Station event queue is full, dropping event", "event", event.Kind)
	}
}

// Run applies notifications until the context is canceled.
func (m *Machine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-m.events:
			m.handle(ctx, event)
		}
	}
}

// Wait blocks until the connection resolves and returns the outcome.
// Only the first caller may wait; it returns early only if ctx is done.
func (m *Machine) Wait(ctx context.Context) (domain.Outcome, error) {
	if !m.waited.CompareAndSwap(false, true) {
		return domain.Outcome{}, ErrWaitConsumed
	}

	select {
	case <-m.resolved:
		return m.outcome, nil
	case <-ctx.Done():
		return domain.Outcome{Kind: domain.OutcomePending}, ctx.Err()
	}
}

// handle runs one transition and its side effects.
func (m *Machine) handle(ctx context.Context, event domain.Event) {
	current := m.Status()
	next, action := domain.Transition(current, event, m.maxRetries)

	if next == current && action == 0 {
		return
	}

	m.publish(&next)
	m.report(ctx, event, next, action)

	if action.Has(domain.ActionResolve) {
		m.resolve(domain.OutcomeOf(next))
	}

	if !action.Has(domain.ActionConnect) {
		return
	}

	if err := m.radio.Connect(ctx); err != nil {
		// A rejected attempt is a failed attempt.
		logger.ErrorKV(ctx, "Connect request rejected by radio", "error", err)
		m.handle(ctx, domain.Disconnected())
	}
}

// report emits the status line of a transition.
func (m *Machine) report(ctx context.Context, event domain.Event, next domain.Status, action domain.Action) {
	switch event.Kind {
	case domain.EventStationStarted:
		logger.Info(ctx, "Station started, connecting to the AP")
	case domain.EventDisconnected:
		logger.InfoKV(ctx, "Connect attempt to the AP failed", "retries", next.Retries, "max_retries", m.maxRetries)

		if action.Has(domain.ActionConnect) {
			logger.Info(ctx, "Retrying to connect to the AP")
		}
	case domain.EventAddressAcquired:
		logger.InfoKV(ctx, "Got address", "address", next.Address.String())
	}
}

// publish stores a new status snapshot and notifies the observer.
func (m *Machine) publish(status *domain.Status) {
	m.status.Store(status)

	if m.observer != nil {
		m.observer(*status)
	}
}

// resolve records the outcome once.
func (m *Machine) resolve(outcome domain.Outcome) {
	m.resolveOnce.Do(func() {
		m.outcome = outcome
		close(m.resolved)
	})
}

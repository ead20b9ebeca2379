package station

import (
	"fmt"
	"net/netip"
)

// DefaultMaxRetries is the number of reconnect attempts allowed after the
// initial connect before the connection is declared failed.
const DefaultMaxRetries = 4

// Phase is the live phase of the station connection.
type Phase uint8

const (
	// PhaseIdle means the radio has not been started yet.
	PhaseIdle Phase = iota
	// PhaseConnecting means a connect attempt is in flight.
	PhaseConnecting
	// PhaseRetrying means a reconnect attempt is in flight after a disconnection.
	PhaseRetrying
	// PhaseConnected means the station holds a usable address.
	PhaseConnected
	// PhaseFailed means the retry budget is exhausted.
	PhaseFailed
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseRetrying:
		return "retrying"
	case PhaseConnected:
		return "connected"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Terminal reports whether the phase resolves a pending wait.
func (p Phase) Terminal() bool {
	return p == PhaseConnected || p == PhaseFailed
}

// EventKind identifies a radio notification.
type EventKind uint8

const (
	// EventStationStarted is delivered once the radio runs in station mode.
	EventStationStarted EventKind = iota + 1
	// EventDisconnected is delivered when an attempt fails or the link drops.
	EventDisconnected
	// EventAddressAcquired is delivered when the station obtained an address.
	EventAddressAcquired
)

// String returns a human-readable event name.
func (k EventKind) String() string {
	switch k {
	case EventStationStarted:
		return "station-started"
	case EventDisconnected:
		return "disconnected"
	case EventAddressAcquired:
		return "address-acquired"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event is a typed notification from the radio driver.
type Event struct {
	// Kind is the notification type.
	Kind EventKind
	// Address is set for EventAddressAcquired only.
	Address netip.Addr
}

// StationStarted builds a station-started notification.
func StationStarted() Event {
	return Event{Kind: EventStationStarted}
}

// Disconnected builds a disconnected notification.
func Disconnected() Event {
	return Event{Kind: EventDisconnected}
}

// AddressAcquired builds an address-acquired notification.
func AddressAcquired(addr netip.Addr) Event {
	return Event{Kind: EventAddressAcquired, Address: addr}
}

// Status is the live state of the connection.
type Status struct {
	// Phase is the current lifecycle phase.
	Phase Phase
	// Retries is the retry counter compared against the maximum.
	Retries int
	// Attempts counts every connect attempt issued, the initial one included.
	Attempts int
	// Address is the last acquired address, zero until the first one.
	Address netip.Addr
}

// Action is a set of side effects the owner of a Status must perform
// after a transition.
type Action uint8

const (
	// ActionConnect asks the radio for a new connect attempt.
	ActionConnect Action = 1 << iota
	// ActionResolve signals the terminal outcome to the waiter.
	ActionResolve
)

// Has reports whether a contains every bit of other.
func (a Action) Has(other Action) bool {
	return a&other == other
}

// Transition applies one event to the status.
//
// Events are ignored while idle. The retry policy does not distinguish a
// station that never connected from one that lost a previous link: every
// disconnection counts against the same budget until an address is acquired.
func Transition(status Status, event Event, maxRetries int) (Status, Action) {
	if status.Phase == PhaseIdle {
		return status, 0
	}

	switch event.Kind {
	case EventStationStarted:
		status.Phase = PhaseConnecting
		status.Attempts++

		return status, ActionConnect
	case EventDisconnected:
		if status.Retries < maxRetries {
			status.Retries++
			status.Attempts++
			status.Phase = PhaseRetrying

			return status, ActionConnect
		}

		status.Phase = PhaseFailed

		return status, ActionResolve
	case EventAddressAcquired:
		status.Retries = 0
		status.Phase = PhaseConnected
		status.Address = event.Address

		return status, ActionResolve
	default:
		return status, 0
	}
}

// OutcomeKind is the resolution of the connection start.
type OutcomeKind uint8

const (
	// OutcomePending means the connection has not resolved yet.
	OutcomePending OutcomeKind = iota
	// OutcomeConnected means an address was acquired.
	OutcomeConnected
	// OutcomeFailed means the retry budget ran out first.
	OutcomeFailed
)

// String returns a human-readable outcome name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomePending:
		return "pending"
	case OutcomeConnected:
		return "connected"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(k))
	}
}

// Outcome is the terminal result observed by the waiter.
type Outcome struct {
	// Kind is the resolution.
	Kind OutcomeKind
	// Address is set when Kind is OutcomeConnected.
	Address netip.Addr
}

// OutcomeOf maps a terminal status to its outcome.
// Non-terminal statuses map to OutcomePending.
func OutcomeOf(status Status) Outcome {
	switch status.Phase {
	case PhaseConnected:
		return Outcome{Kind: OutcomeConnected, Address: status.Address}
	case PhaseFailed:
		return Outcome{Kind: OutcomeFailed}
	default:
		return Outcome{Kind: OutcomePending}
	}
}

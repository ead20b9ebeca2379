package radio

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oshokin/garden-controller/internal/config"
	domain "github.com/oshokin/garden-controller/internal/domain/station"
)

// Simulated is an in-process radio: the first Failures attempts fail, the
// rest acquire Address. Each attempt takes Delay.
type Simulated struct {
	failures int
	delay    time.Duration
	address  netip.Addr
	clock    clockwork.Clock

	mu       sync.Mutex
	notify   func(domain.Event)
	attempts int
}

// NewSimulated creates a simulated radio. A nil clock uses the real clock.
func NewSimulated(cfg config.SimulatedConfig, clock clockwork.Clock) (*Simulated, error) {
	addr := netip.MustParseAddr(config.DefaultSimulatedAddress)

	if cfg.Address != "" {
		parsed, err := netip.ParseAddr(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("parse simulated address: %w", err)
		}

		addr = parsed
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Simulated{
		failures: cfg.Failures,
		delay:    cfg.Delay,
		address:  addr,
		clock:    clock,
	}, nil
}

// Start announces the station from a background goroutine.
func (s *Simulated) Start(_ context.Context, notify func(domain.Event)) error {
	s.mu.Lock()
	s.notify = notify
	s.mu.Unlock()

	go notify(domain.StationStarted())

	return nil
}

// Connect schedules one attempt.
func (s *Simulated) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	notify := s.notify
	s.mu.Unlock()

	if notify == nil {
		return errNotStarted
	}

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.delay):
		}

		if attempt <= s.failures {
			notify(domain.Disconnected())
			return
		}

		notify(domain.AddressAcquired(s.address))
	}()

	return nil
}

// Attempts returns the number of Connect calls.
func (s *Simulated) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.attempts
}

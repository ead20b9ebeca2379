package actuator

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oshokin/garden-controller/internal/driver/output"
	"github.com/oshokin/garden-controller/internal/logger"
)

// PulseConfig is the schedule of a fixed-period loop.
type PulseConfig struct {
	// Name is used in status lines ("pump").
	Name string
	// Line is the driven output.
	Line output.Line
	// Active is how long the output stays high per cycle.
	Active time.Duration
	// Idle is how long the output stays low per cycle.
	Idle time.Duration
}

// Pulse drives one output high for Active and low for Idle, forever.
type Pulse struct {
	cfg    PulseConfig
	driver Setter
	clock  clockwork.Clock
}

// NewPulse creates a fixed-period loop. A nil clock uses the real clock.
func NewPulse(cfg PulseConfig, driver Setter, clock clockwork.Clock) (*Pulse, error) {
	if driver == nil {
		return nil, errDriverRequired
	}

	if cfg.Active <= 0 {
		return nil, errActiveRequired
	}

	if cfg.Idle < 0 {
		return nil, errIdleNegative
	}

	if cfg.Name == "" {
		cfg.Name = "pulse"
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Pulse{
		cfg:    cfg,
		driver: driver,
		clock:  clock,
	}, nil
}

// Config returns the schedule.
func (p *Pulse) Config() PulseConfig {
	return p.cfg
}

// Run cycles the output until ctx is done. The output is left low on return.
func (p *Pulse) Run(ctx context.Context) {
	logger.InfoKV(ctx, "Pulse loop started",
		"task", p.cfg.Name, "line", p.cfg.Line, "active", p.cfg.Active, "idle", p.cfg.Idle)

	defer p.driver.SetLevel(context.WithoutCancel(ctx), p.cfg.Line, output.Low)

	for {
		p.set(ctx, output.High)

		if sleep(ctx, p.clock, p.cfg.Active) != nil {
			return
		}

		p.set(ctx, output.Low)

		if sleep(ctx, p.clock, p.cfg.Idle) != nil {
			return
		}
	}
}

// set drives the output and reports it.
func (p *Pulse) set(ctx context.Context, level output.Level) {
	p.driver.SetLevel(ctx, p.cfg.Line, level)
	logger.Infof(ctx, "%s %d %s", p.cfg.Name, p.cfg.Line, level)
}

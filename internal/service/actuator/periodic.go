package actuator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/garden-controller/internal/driver/output"
	"github.com/oshokin/garden-controller/internal/logger"
)

// Decide maps a wall-clock reading to an output level. It must be pure.
type Decide func(time.Time) output.Level

// Format maps a wall-clock reading to a report line. It must be pure.
type Format func(time.Time) string

// PeriodicConfig is the schedule of a drift-corrected loop.
type PeriodicConfig struct {
	// Name is used in status lines ("indicator", "clock").
	Name string
	// Period is the distance between scheduled wake instants.
	Period time.Duration
	// Line is the driven output, nil for report-only loops.
	Line *output.Line
	// Decide computes the level of Line; required when Line is set.
	Decide Decide
	// Report computes the logged line; nil disables the report.
	Report Format
}

// Periodic evaluates the wall clock on a drift-corrected schedule.
type Periodic struct {
	cfg    PeriodicConfig
	driver Setter
	wall   Reader
	waiter Waiter
}

// NewPeriodic creates a drift-corrected loop. The driver may be nil for
// report-only loops.
func NewPeriodic(cfg PeriodicConfig, driver Setter, wall Reader, waiter Waiter) (*Periodic, error) {
	if wall == nil {
		return nil, errClockRequired
	}

	if cfg.Period <= 0 {
		return nil, errPeriodRequired
	}

	if cfg.Line != nil && (driver == nil || cfg.Decide == nil) {
		return nil, fmt.Errorf("periodic %q: %w", cfg.Name, errDriverRequired)
	}

	if cfg.Name == "" {
		cfg.Name = "periodic"
	}

	if waiter.clock == nil {
		waiter = NewWaiter(nil)
	}

	return &Periodic{
		cfg:    cfg,
		driver: driver,
		wall:   wall,
		waiter: waiter,
	}, nil
}

// Run evaluates once right away and then at start+P, start+2P, ... until ctx
// is done. A wake instant that already passed is logged and skipped over
// without moving later instants.
func (p *Periodic) Run(ctx context.Context) {
	logger.InfoKV(ctx, "Periodic loop started", "task", p.cfg.Name, "period", p.cfg.Period)

	next := p.waiter.Now()

	for {
		p.tick(ctx)

		next = next.Add(p.cfg.Period)

		err := p.waiter.Until(ctx, next)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return
		case errors.Is(err, ErrDeadlinePassed):
			logger.ErrorKV(ctx, "Periodic wait was unsuccessful, iteration overran its period",
				"task", p.cfg.Name, "scheduled", next, "error", err)
		default:
			logger.ErrorKV(ctx, "Periodic wait was unsuccessful", "task", p.cfg.Name, "error", err)
		}
	}
}

// tick runs one iteration body.
func (p *Periodic) tick(ctx context.Context) {
	now := p.wall.Now()

	if p.cfg.Line != nil {
		p.driver.SetLevel(ctx, *p.cfg.Line, p.cfg.Decide(now))
	}

	if p.cfg.Report != nil {
		logger.Info(ctx, p.cfg.Report(now))
	}
}

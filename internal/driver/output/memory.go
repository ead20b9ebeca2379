package output

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oshokin/garden-controller/internal/logger"
)

// Change is one recorded level change.
type Change struct {
	// Line is the line that changed.
	Line Line
	// Level is the new level.
	Level Level
	// At is the clock reading of the change.
	At time.Time
}

// MemoryDriver keeps levels in memory and records every change.
type MemoryDriver struct {
	clock clockwork.Clock

	mu         sync.Mutex
	configured map[Line]bool
	levels     map[Line]Level
	history    []Change
}

// NewMemoryDriver creates an empty in-memory driver.
// A nil clock uses the real clock.
func NewMemoryDriver(clock clockwork.Clock) *MemoryDriver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &MemoryDriver{
		clock:      clock,
		configured: make(map[Line]bool),
		levels:     make(map[Line]Level),
	}
}

// Configure marks the line as an output at low level.
func (d *MemoryDriver) Configure(ctx context.Context, line Line) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.configured[line] = true
	d.levels[line] = Low

	logger.DebugKV(ctx, "Configured output line", "line", line)

	return nil
}

// SetLevel records the new level.
func (d *MemoryDriver) SetLevel(_ context.Context, line Line, level Level) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.levels[line] = level
	d.history = append(d.history, Change{Line: line, Level: level, At: d.clock.Now()})
}

// Close does nothing.
func (d *MemoryDriver) Close() error {
	return nil
}

// Configured reports whether Configure was called for the line.
func (d *MemoryDriver) Configured(line Line) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.configured[line]
}

// Level returns the current level of a line.
func (d *MemoryDriver) Level(line Line) Level {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.levels[line]
}

// History returns the changes of one line in order.
func (d *MemoryDriver) History(line Line) []Change {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Change, 0, len(d.history))
	for _, c := range d.history {
		if c.Line == line {
			out = append(out, c)
		}
	}

	return slices.Clip(out)
}

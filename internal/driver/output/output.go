package output

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/oshokin/garden-controller/internal/config"
)

// Line identifies an output line: a GPIO number or a relay coil.
type Line uint8

// Level is the logic level of a line.
type Level bool

const (
	// Low is the idle level.
	Low Level = false
	// High is the active level.
	High Level = true
)

// String renders the level the way status lines print it.
func (l Level) String() string {
	if l {
		return "ON"
	}

	return "OFF"
}

// Driver configures and drives output lines.
type Driver interface {
	// Configure resets the line, makes it an output and sets it low.
	Configure(ctx context.Context, line Line) error
	// SetLevel sets the logic level of a configured line.
	SetLevel(ctx context.Context, line Line, level Level)
	// Close releases the backend.
	Close() error
}

// New builds the driver selected by cfg.
//
//nolint:ireturn // Callers pick the backend at runtime.
func New(cfg config.OutputConfig, clock clockwork.Clock) (Driver, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemoryDriver(clock), nil
	case config.BackendGPIO:
		return NewGPIODriver()
	case config.BackendModbus:
		return NewModbusDriver(cfg.Modbus)
	default:
		return nil, fmt.Errorf("unsupported output backend %q", cfg.Backend)
	}
}

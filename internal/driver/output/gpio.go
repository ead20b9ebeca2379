package output

import (
	"context"
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/oshokin/garden-controller/internal/logger"
)

// GPIODriver drives the Raspberry Pi GPIO header through /dev/gpiomem.
type GPIODriver struct{}

// NewGPIODriver maps the GPIO registers.
func NewGPIODriver() (*GPIODriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	return new(GPIODriver), nil
}

// Configure resets the pin, makes it an output and drives it low.
func (d *GPIODriver) Configure(ctx context.Context, line Line) error {
	pin := rpio.Pin(line)
	pin.Input()
	pin.PullOff()
	pin.Output()
	pin.Low()

	logger.InfoKV(ctx, "Configured GPIO output", "pin", line)

	return nil
}

// SetLevel writes the pin level.
func (d *GPIODriver) SetLevel(_ context.Context, line Line, level Level) {
	if level {
		rpio.Pin(line).High()
		return
	}

	rpio.Pin(line).Low()
}

// Close unmaps the GPIO registers.
func (d *GPIODriver) Close() error {
	return rpio.Close()
}

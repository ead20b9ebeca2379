package output

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goburrow/modbus"

	"github.com/oshokin/garden-controller/internal/config"
	"github.com/oshokin/garden-controller/internal/logger"
)

const (
	// coilOn is the Modbus single-coil value for on.
	coilOn uint16 = 0xFF00
	// coilOff is the Modbus single-coil value for off.
	coilOff uint16 = 0x0000
)

// errModbusEndpointRequired is returned when no endpoint is configured.
var errModbusEndpointRequired = errors.New("modbus endpoint must be provided")

// coilWriter is the part of modbus.Client the driver uses.
type coilWriter interface {
	WriteSingleCoil(address, value uint16) ([]byte, error)
}

// ModbusDriver drives the coils of a Modbus TCP relay module, one coil per line.
// Requests are serialized over a single connection.
type ModbusDriver struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  coilWriter
	offset  uint16
}

// NewModbusDriver connects to the relay module.
func NewModbusDriver(cfg config.ModbusConfig) (*ModbusDriver, error) {
	if cfg.Endpoint == "" {
		return nil, errModbusEndpointRequired
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("connect modbus %s: %w", cfg.Endpoint, err)
	}

	return &ModbusDriver{
		handler: h,
		client:  modbus.NewClient(h),
		offset:  cfg.CoilOffset,
	}, nil
}

// Configure switches the coil off, which also proves the module answers.
func (d *ModbusDriver) Configure(ctx context.Context, line Line) error {
	if err := d.write(line, Low); err != nil {
		return fmt.Errorf("configure coil %d: %w", d.address(line), err)
	}

	logger.InfoKV(ctx, "Configured relay coil", "line", line, "coil", d.address(line))

	return nil
}

// SetLevel writes the coil. Failures are logged.
func (d *ModbusDriver) SetLevel(ctx context.Context, line Line, level Level) {
	if err := d.write(line, level); err != nil {
		logger.ErrorKV(ctx, "Relay coil write failed", "line", line, "level", level, "error", err)
	}
}

// Close drops the connection.
func (d *ModbusDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handler == nil {
		return nil
	}

	return d.handler.Close()
}

// write sends one single-coil request.
func (d *ModbusDriver) write(line Line, level Level) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	value := coilOff
	if level {
		value = coilOn
	}

	_, err := d.client.WriteSingleCoil(d.address(line), value)

	return err
}

// address maps a line to its coil address.
func (d *ModbusDriver) address(line Line) uint16 {
	return d.offset + uint16(line)
}

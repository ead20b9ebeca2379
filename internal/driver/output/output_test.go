package output

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/garden-controller/internal/config"
)

var errTestCoil = errors.New("test: coil write failed")

// fakeCoils records single-coil writes.
type fakeCoils struct {
	writes [][2]uint16
	err    error
}

// WriteSingleCoil records the request.
func (f *fakeCoils) WriteSingleCoil(address, value uint16) ([]byte, error) {
	f.writes = append(f.writes, [2]uint16{address, value})

	return nil, f.err
}

// TestNew_SelectsBackend checks the factory.
func TestNew_SelectsBackend(t *testing.T) {
	t.Parallel()

	d, err := New(config.OutputConfig{Backend: config.BackendMemory}, nil)
	require.NoError(t, err)
	require.IsType(t, new(MemoryDriver), d)

	_, err = New(config.OutputConfig{Backend: "i2c"}, nil)
	require.Error(t, err)

	_, err = New(config.OutputConfig{Backend: config.BackendModbus}, nil)
	require.Error(t, err)
}

// TestMemoryDriver_RecordsChanges verifies configure and history.
func TestMemoryDriver_RecordsChanges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	d := NewMemoryDriver(fc)

	require.False(t, d.Configured(5))
	require.NoError(t, d.Configure(ctx, 5))
	require.True(t, d.Configured(5))
	require.Equal(t, Low, d.Level(5))

	d.SetLevel(ctx, 5, High)
	fc.Advance(time.Second)
	d.SetLevel(ctx, 2, High)
	d.SetLevel(ctx, 5, Low)

	history := d.History(5)
	require.Len(t, history, 2)
	require.Equal(t, High, history[0].Level)
	require.Equal(t, Low, history[1].Level)
	require.Equal(t, time.Second, history[1].At.Sub(history[0].At))
	require.Equal(t, High, d.Level(2))
	require.NoError(t, d.Close())
}

// TestModbusDriver_WritesCoils maps lines and levels onto coil requests.
func TestModbusDriver_WritesCoils(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	coils := new(fakeCoils)
	d := &ModbusDriver{client: coils, offset: 100}

	require.NoError(t, d.Configure(ctx, 5))
	d.SetLevel(ctx, 5, High)
	d.SetLevel(ctx, 5, Low)

	require.Equal(t, [][2]uint16{
		{105, coilOff},
		{105, coilOn},
		{105, coilOff},
	}, coils.writes)
	require.NoError(t, d.Close())
}

// TestModbusDriver_ErrorsStayInside ensures SetLevel swallows failures while Configure reports them.
func TestModbusDriver_ErrorsStayInside(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := &ModbusDriver{client: &fakeCoils{err: errTestCoil}}

	require.ErrorIs(t, d.Configure(ctx, 1), errTestCoil)
	require.NotPanics(t, func() { d.SetLevel(ctx, 1, High) })
}

// TestLevelString renders status words.
func TestLevelString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "ON", High.String())
	require.Equal(t, "OFF", Low.String())
}

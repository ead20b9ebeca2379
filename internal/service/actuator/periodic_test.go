package actuator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oshokin/garden-controller/internal/driver/output"
	"github.com/oshokin/garden-controller/internal/logger"
)

// busyDriver records the clock at every write and then burns clock time to
// stand in for work done inside the loop body.
type busyDriver struct {
	clock *clockwork.FakeClock
	work  func(call int) time.Duration

	mu    sync.Mutex
	wakes []time.Time
}

// SetLevel records the wake and advances the clock by the simulated work.
func (d *busyDriver) SetLevel(context.Context, output.Line, output.Level) {
	d.mu.Lock()
	call := len(d.wakes)
	d.wakes = append(d.wakes, d.clock.Now())
	d.mu.Unlock()

	if w := d.work(call); w > 0 {
		d.clock.Advance(w)
	}
}

// offsets returns the wakes relative to start.
func (d *busyDriver) offsets(start time.Time) []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]time.Duration, 0, len(d.wakes))
	for _, w := range d.wakes {
		out = append(out, w.Sub(start))
	}

	return out
}

// runPeriodic starts p and returns a stop function that waits for it to exit.
func runPeriodic(ctx context.Context, p *Periodic) func() {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		p.Run(runCtx)
	}()

	return func() {
		cancel()
		<-done
	}
}

// TestNewPeriodic_Validates rejects unusable schedules.
func TestNewPeriodic_Validates(t *testing.T) {
	t.Parallel()

	fc := clockwork.NewFakeClock()
	line := output.Line(2)

	_, err := NewPeriodic(PeriodicConfig{Period: time.Second}, nil, nil, NewWaiter(fc))
	require.Error(t, err)

	_, err = NewPeriodic(PeriodicConfig{}, nil, fc, NewWaiter(fc))
	require.Error(t, err)

	_, err = NewPeriodic(PeriodicConfig{Period: time.Second, Line: &line}, nil, fc, NewWaiter(fc))
	require.Error(t, err)

	_, err = NewPeriodic(PeriodicConfig{Period: time.Second, Report: FormatReport}, nil, fc, Waiter{})
	require.NoError(t, err)
}

// TestPeriodic_NoCumulativeDrift checks wakes land on start+kP even though
// every iteration spends three seconds of clock time in its body.
func TestPeriodic_NoCumulativeDrift(t *testing.T) {
	t.Parallel()

	const (
		period     = 10 * time.Second
		work       = 3 * time.Second
		iterations = 8
	)

	fc := clockwork.NewFakeClock()
	start := fc.Now()
	line := output.Line(2)
	driver := &busyDriver{clock: fc, work: func(int) time.Duration { return work }}

	decide, err := ParityOf("second")
	require.NoError(t, err)

	p, err := NewPeriodic(PeriodicConfig{Name: "indicator", Period: period, Line: &line, Decide: decide}, driver, fc, NewWaiter(fc))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stop := runPeriodic(ctx, p)

	for k := 1; k <= iterations; k++ {
		require.NoError(t, fc.BlockUntilContext(ctx, 1))
		fc.Advance(start.Add(time.Duration(k) * period).Sub(fc.Now()))
	}

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	stop()

	want := make([]time.Duration, 0, iterations+1)
	for k := 0; k <= iterations; k++ {
		want = append(want, time.Duration(k)*period)
	}

	require.Equal(t, want, driver.offsets(start))
}

// TestPeriodic_OverrunIsLoggedAndScheduleHolds lets the first iteration take
// two and a half periods.
func TestPeriodic_OverrunIsLoggedAndScheduleHolds(t *testing.T) {
	t.Parallel()

	const period = 10 * time.Second

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core).Sugar())

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fc := clockwork.NewFakeClock()
	start := fc.Now()
	line := output.Line(2)
	driver := &busyDriver{clock: fc, work: func(call int) time.Duration {
		if call == 0 {
			return 25 * time.Second
		}

		return 0
	}}

	p, err := NewPeriodic(PeriodicConfig{
		Period: period,
		Line:   &line,
		Decide: func(time.Time) output.Level { return output.High },
	}, driver, fc, NewWaiter(fc))
	require.NoError(t, err)

	stop := runPeriodic(ctx, p)

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	require.Equal(t, []time.Duration{0, 25 * time.Second, 25 * time.Second}, driver.offsets(start))

	fc.Advance(5 * time.Second)
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(period)
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	stop()

	require.Equal(t, []time.Duration{0, 25 * time.Second, 25 * time.Second, 30 * time.Second, 40 * time.Second},
		driver.offsets(start))
	require.Equal(t, 2, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

// TestPeriodic_ReportsWallClock logs the report line for the wall reading.
func TestPeriodic_ReportsWallClock(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core).Sugar())

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fc := clockwork.NewFakeClockAt(time.Date(2026, time.January, 10, 12, 0, 5, 0, time.UTC))

	p, err := NewPeriodic(PeriodicConfig{Name: "clock", Period: time.Minute, Report: FormatReport}, nil, fc, NewWaiter(fc))
	require.NoError(t, err)

	stop := runPeriodic(ctx, p)

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	stop()

	reports := logs.FilterMessage("Current time is: Sat Jan 10 12:00:05 2026 UTC")
	require.Equal(t, 1, reports.Len())
}

// TestParityOf maps odd components to high.
func TestParityOf(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, time.March, 3, 13, 24, 7, 0, time.UTC)

	cases := map[string]output.Level{
		"second": output.High,
		"minute": output.Low,
		"hour":   output.High,
	}

	for component, want := range cases {
		decide, err := ParityOf(component)
		require.NoError(t, err)
		require.Equal(t, want, decide(ts), component)
		require.Equal(t, !want, decide(ts.Add(-1*time.Second).Add(-1*time.Minute).Add(-1*time.Hour)), component)
	}

	_, err := ParityOf("fortnight")
	require.Error(t, err)
}

// TestFormatReport_Golden pins the report layout across zones and the unsynced epoch default.
func TestFormatReport_Golden(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("PST8PDT")
	require.NoError(t, err)

	var out []byte

	for _, ts := range []time.Time{
		time.Date(2026, time.January, 10, 20, 0, 5, 0, time.UTC),
		time.Date(2026, time.July, 4, 16, 30, 0, 0, time.UTC),
		time.Unix(0, 0),
	} {
		out = append(out, FormatReport(ts.In(loc))...)
		out = append(out, '\n')
	}

	g := goldie.New(t)
	g.Assert(t, "report", out)
}

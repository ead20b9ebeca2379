package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/garden-controller/internal/api/grpc/health"
	"github.com/oshokin/garden-controller/internal/config"
	domain "github.com/oshokin/garden-controller/internal/domain/station"
	"github.com/oshokin/garden-controller/internal/driver/output"
	"github.com/oshokin/garden-controller/internal/driver/radio"
	"github.com/oshokin/garden-controller/internal/logger"
	"github.com/oshokin/garden-controller/internal/repository/settings"
	"github.com/oshokin/garden-controller/internal/repository/status"
	"github.com/oshokin/garden-controller/internal/service/actuator"
	"github.com/oshokin/garden-controller/internal/service/clock"
	"github.com/oshokin/garden-controller/internal/service/discovery"
	"github.com/oshokin/garden-controller/internal/service/instance"
	"github.com/oshokin/garden-controller/internal/service/station"
	"github.com/oshokin/garden-controller/internal/version"
)

// Options controls the controller process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level when set.
	LogLevel string
}

var (
	// errConfigRequired is returned when no configuration is supplied.
	errConfigRequired = errors.New("configuration must be provided")
	// errUnknownLogLevel is returned for unsupported log level names.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Run loads the configuration and runs the controller until ctx is done.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "supervisor")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	levelName := cfg.LogLevel
	if opts.LogLevel != "" {
		levelName = opts.LogLevel
	}

	level, ok := logger.ParseLogLevel(levelName)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, levelName)
	}

	logger.SetLevel(level)

	guard, err := instance.NewGuard()
	if err != nil {
		return err
	}

	if err = guard.Check(); err != nil {
		return err
	}

	ctrl, err := New(cfg)
	if err != nil {
		return err
	}

	return ctrl.Run(ctx)
}

// Controller runs the garden controller.
type Controller struct {
	cfg *config.Config

	clock      clockwork.Clock
	radio      station.Radio
	driver     output.Driver
	source     clock.Source
	advertiser Advertiser
}

// New creates a controller for a validated configuration.
func New(cfg *config.Config, opts ...Option) (*Controller, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}

	c := &Controller{cfg: cfg}

	for _, opt := range opts {
		opt(c)
	}

	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}

	if c.source == nil {
		c.source = clock.NTPSource{Timeout: cfg.Time.Timeout}
	}

	if c.advertiser == nil {
		c.advertiser = discovery.NewAdvertiser()
	}

	return c, nil
}

// Run initializes the controller, starts the connection, then runs every
// loop until ctx is done. Only initialization failures are returned.
//
//nolint:funlen // Startup order is easier to follow in one place.
func (c *Controller) Run(ctx context.Context) error {
	store, err := settings.Open(ctx, c.cfg.SettingsFile)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}

	defer func() { _ = store.Close() }()

	boot, err := store.RecordBoot(ctx, c.clock.Now())
	if err != nil {
		return fmt.Errorf("record boot: %w", err)
	}

	logger.InfoKV(ctx, "Garden controller starting",
		"version", version.Short(), "boot_id", boot.ID.String(), "boot_count", boot.Count)

	if last, found, lastErr := store.LastSync(ctx); lastErr == nil && found {
		logger.DebugKV(ctx, "Previous time sync", "at", last.At, "offset", last.Offset)
	}

	driver, err := c.openDriver(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = driver.Close() }()

	loc, err := clock.LoadZone(c.cfg.Time.Zone)
	if err != nil {
		return err
	}

	wall := clock.NewWallClock(c.clock, loc)

	loops, err := c.buildLoops(driver, wall)
	if err != nil {
		return err
	}

	writer := newStatusWriter(status.NewFileRepository(c.cfg.StatusFile), c.clock, status.Snapshot{
		BootID:    boot.ID.String(),
		BootCount: boot.Count,
	})

	lis, err := c.listen(ctx)
	if err != nil {
		return err
	}

	var healthServer *health.Server
	if lis != nil {
		healthServer = health.NewServer()
	}

	machine, err := c.newMachine(writer, healthServer)
	if err != nil {
		if lis != nil {
			_ = lis.Close()
		}

		return err
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return writer.Run(logger.WithName(gctx, "status"))
	})

	if healthServer != nil {
		group.Go(func() error {
			return healthServer.Serve(logger.WithName(gctx, "status"), lis)
		})
	}

	stationCtx := logger.WithName(gctx, "station")

	group.Go(func() error {
		machine.Run(stationCtx)
		return nil
	})

	outcome := c.connect(stationCtx, machine)
	writer.Update(func(s *status.Snapshot) { s.Outcome = outcome.Kind })

	if outcome.Kind == domain.OutcomeConnected {
		c.startNetwork(gctx, group, networkDeps{
			store:   store,
			wall:    wall,
			writer:  writer,
			lis:     lis,
			boot:    boot,
			address: outcome.Address,
		})
	}

	for _, l := range loops {
		loopCtx := logger.WithName(gctx, l.logName)

		group.Go(func() error {
			l.run(loopCtx)
			return nil
		})
	}

	if healthServer != nil {
		healthServer.SetServing()
	}

	logger.InfoKV(ctx, "Garden controller running", "loops", len(loops), "outcome", outcome.Kind.String())

	err = group.Wait()

	logger.Info(ctx, "Garden controller stopped")

	return err
}

// openDriver builds the output driver and drives every used line low.
//
//nolint:ireturn // The backend is chosen by configuration.
func (c *Controller) openDriver(ctx context.Context) (output.Driver, error) {
	driver := c.driver
	if driver == nil {
		var err error

		driver, err = output.New(c.cfg.Output, c.clock)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
	}

	for _, line := range c.lines() {
		if err := driver.Configure(ctx, line); err != nil {
			_ = driver.Close()
			return nil, fmt.Errorf("configure line %d: %w", line, err)
		}

		driver.SetLevel(ctx, line, output.Low)
	}

	return driver, nil
}

// lines returns the output lines used by enabled loops.
func (c *Controller) lines() []output.Line {
	var lines []output.Line

	if !c.cfg.Pump.Disabled && c.cfg.Pump.Line != nil {
		lines = append(lines, output.Line(*c.cfg.Pump.Line))
	}

	if c.cfg.Indicator.Enabled && c.cfg.Indicator.Line != nil {
		lines = append(lines, output.Line(*c.cfg.Indicator.Line))
	}

	return lines
}

// loop is a background task with the logger name it reports under.
type loop struct {
	logName string
	run     func(context.Context)
}

// buildLoops creates every enabled loop. Schedules are fixed from here on.
func (c *Controller) buildLoops(driver output.Driver, wall *clock.WallClock) ([]loop, error) {
	var loops []loop

	waiter := actuator.NewWaiter(c.clock)

	if !c.cfg.Pump.Disabled {
		pump, err := actuator.NewPulse(actuator.PulseConfig{
			Name:   "pump",
			Line:   output.Line(*c.cfg.Pump.Line),
			Active: c.cfg.Pump.Active,
			Idle:   *c.cfg.Pump.Idle,
		}, driver, c.clock)
		if err != nil {
			return nil, fmt.Errorf("pump: %w", err)
		}

		loops = append(loops, loop{logName: "gpio", run: pump.Run})
	}

	if !c.cfg.Report.Disabled {
		report, err := actuator.NewPeriodic(actuator.PeriodicConfig{
			Name:   "clock",
			Period: c.cfg.Report.Period,
			Report: actuator.FormatReport,
		}, nil, wall, waiter)
		if err != nil {
			return nil, fmt.Errorf("report: %w", err)
		}

		loops = append(loops, loop{logName: "ntp", run: report.Run})
	}

	if c.cfg.Indicator.Enabled {
		decide, err := actuator.ParityOf(c.cfg.Indicator.Component)
		if err != nil {
			return nil, fmt.Errorf("indicator: %w", err)
		}

		line := output.Line(*c.cfg.Indicator.Line)

		indicator, err := actuator.NewPeriodic(actuator.PeriodicConfig{
			Name:   "indicator",
			Period: c.cfg.Indicator.Period,
			Line:   &line,
			Decide: decide,
		}, driver, wall, waiter)
		if err != nil {
			return nil, fmt.Errorf("indicator: %w", err)
		}

		loops = append(loops, loop{logName: "gpio", run: indicator.Run})
	}

	return loops, nil
}

// listen opens the status API listener when configured.
func (c *Controller) listen(ctx context.Context) (net.Listener, error) {
	if c.cfg.Status.ListenAddress == "" {
		return nil, nil //nolint:nilnil // No listener is a valid configuration.
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", c.cfg.Status.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", c.cfg.Status.ListenAddress, err)
	}

	return lis, nil
}

// newMachine builds the connection state machine over the configured radio.
func (c *Controller) newMachine(writer *statusWriter, healthServer *health.Server) (*station.Machine, error) {
	r := c.radio
	if r == nil {
		var err error

		r, err = radio.New(c.cfg.Station, c.clock)
		if err != nil {
			return nil, fmt.Errorf("open radio: %w", err)
		}
	}

	observer := func(st domain.Status) {
		if healthServer != nil {
			healthServer.SetStation(st)
		}

		writer.Update(func(s *status.Snapshot) { s.Station = st })
	}

	return station.New(r,
		station.WithMaxRetries(*c.cfg.Station.MaxRetries),
		station.WithObserver(observer))
}

// connect starts the station and waits for its resolution. A radio that
// cannot start and a resolve timeout are reported, never fatal.
func (c *Controller) connect(ctx context.Context, machine *station.Machine) domain.Outcome {
	if err := machine.Start(ctx); err != nil {
		logger.ErrorKV(ctx, "Station could not be started", "error", err)
		return domain.Outcome{Kind: domain.OutcomeFailed}
	}

	waitCtx := ctx

	if timeout := c.cfg.Station.ResolveTimeout; timeout > 0 {
		var cancel context.CancelFunc

		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outcome, err := machine.Wait(waitCtx)

	switch {
	case ctx.Err() != nil:
		return domain.Outcome{Kind: domain.OutcomePending}
	case err != nil:
		logger.WarnKV(ctx, "Station did not resolve in time", "timeout", c.cfg.Station.ResolveTimeout)
		return domain.Outcome{Kind: domain.OutcomePending}
	case outcome.Kind == domain.OutcomeConnected:
		logger.InfoKV(ctx, "Connected to the AP", "address", outcome.Address.String())
	default:
		logger.ErrorKV(ctx, "Failed to connect to the AP", "max_retries", machine.MaxRetries())
	}

	return outcome
}

// networkDeps are the collaborators of network services.
type networkDeps struct {
	store   *settings.Store
	wall    *clock.WallClock
	writer  *statusWriter
	lis     net.Listener
	boot    settings.Boot
	address netip.Addr
}

// startNetwork starts time sync and LAN advertisement.
func (c *Controller) startNetwork(ctx context.Context, group *errgroup.Group, deps networkDeps) {
	ntpCtx := logger.WithName(ctx, "ntp")

	syncer, err := clock.NewSyncer(clock.SyncerConfig{
		Server:         c.cfg.Time.Server,
		Timeout:        c.cfg.Time.Timeout,
		ResyncInterval: c.cfg.Time.ResyncInterval,
		OnSync: func(ctx context.Context, offset time.Duration) {
			now := deps.wall.Now()

			if err := deps.store.SaveSync(ctx, settings.Sync{Offset: offset, At: now}); err != nil {
				logger.WarnKV(ctx, "Failed to store time sync", "error", err)
			}

			deps.writer.Update(func(s *status.Snapshot) {
				s.Synced = true
				s.Offset = offset
				s.LastSync = now
			})
		},
	}, c.source, deps.wall, c.clock)
	if err != nil {
		logger.ErrorKV(ntpCtx, "Time sync disabled", "error", err)
	} else {
		group.Go(func() error {
			syncer.Run(ntpCtx)
			return nil
		})
	}

	if !c.cfg.Status.Advertise || deps.lis == nil {
		return
	}

	tcpAddr, ok := deps.lis.Addr().(*net.TCPAddr)
	if !ok {
		return
	}

	info := discovery.Info{
		Instance: c.cfg.Status.Instance,
		Port:     tcpAddr.Port,
		BootID:   deps.boot.ID.String(),
		Version:  version.Short(),
		Address:  deps.address,
	}

	if err = c.advertiser.Advertise(ctx, info); err != nil {
		logger.WarnKV(ctx, "mDNS advertisement failed", "error", err)
		return
	}

	group.Go(func() error {
		<-ctx.Done()
		c.advertiser.Stop()

		return nil
	})
}

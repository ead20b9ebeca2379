package clock

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oshokin/garden-controller/internal/logger"
)

const (
	// DefaultServer is the time source used when none is configured.
	DefaultServer = "pool.ntp.org"
	// DefaultResyncInterval is how often the time source is polled again.
	DefaultResyncInterval = time.Hour
	// DefaultTimeout bounds a single query.
	DefaultTimeout = 5 * time.Second
)

var (
	// errSourceRequired is returned when no time source is supplied.
	errSourceRequired = errors.New("time source must be provided")
	// errClockRequired is returned when no wall clock is supplied.
	errClockRequired = errors.New("wall clock must be provided")
)

// SyncerConfig configures a Syncer.
type SyncerConfig struct {
	// Server is the time source address.
	Server string
	// Timeout bounds one query.
	Timeout time.Duration
	// ResyncInterval is the polling period after the first attempt.
	ResyncInterval time.Duration
	// OnSync is called after every successful synchronization.
	OnSync func(ctx context.Context, offset time.Duration)
}

// Syncer keeps a WallClock synchronized with one time source.
type Syncer struct {
	cfg    SyncerConfig
	source Source
	wall   *WallClock
	ticker clockwork.Clock
}

// NewSyncer creates a syncer. A nil ticker clock uses the real clock.
func NewSyncer(cfg SyncerConfig, source Source, wall *WallClock, ticker clockwork.Clock) (*Syncer, error) {
	if source == nil {
		return nil, errSourceRequired
	}

	if wall == nil {
		return nil, errClockRequired
	}

	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = DefaultResyncInterval
	}

	if ticker == nil {
		ticker = clockwork.NewRealClock()
	}

	return &Syncer{
		cfg:    cfg,
		source: source,
		wall:   wall,
		ticker: ticker,
	}, nil
}

// Run synchronizes once right away and then once per resync interval until
// ctx is done. Failures are not surfaced: the wall clock keeps its last value.
func (s *Syncer) Run(ctx context.Context) {
	logger.InfoKV(ctx, "Time sync started", "server", s.cfg.Server, "zone", s.wall.Location().String())

	t := s.ticker.NewTicker(s.cfg.ResyncInterval)
	defer t.Stop()

	for {
		s.SyncOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
		}
	}
}

// SyncOnce performs one query and publishes the result.
// It reports whether the wall clock was updated.
func (s *Syncer) SyncOnce(ctx context.Context) bool {
	queryCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	offset, err := s.source.Offset(queryCtx, s.cfg.Server)
	if err != nil {
		logger.DebugKV(ctx, "Time sync attempt failed", "server", s.cfg.Server, "error", err)
		return false
	}

	first := !s.wall.Synced()
	s.wall.Set(offset)

	if first {
		logger.InfoKV(ctx, "Time synchronized", "server", s.cfg.Server, "offset", offset, "now", s.wall.Now().Format(time.RFC1123))
	} else {
		logger.DebugKV(ctx, "Time resynchronized", "offset", offset)
	}

	if s.cfg.OnSync != nil {
		s.cfg.OnSync(ctx, offset)
	}

	return true
}

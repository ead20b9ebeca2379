package supervisor

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/oshokin/garden-controller/internal/logger"
	"github.com/oshokin/garden-controller/internal/repository/status"
)

// statusWriter persists the latest snapshot off the caller's goroutine.
type statusWriter struct {
	repo  status.Repository
	clock clockwork.Clock

	mu      sync.Mutex
	current status.Snapshot
	// dirty holds at most one pending write request.
	dirty chan struct{}
}

func newStatusWriter(repo status.Repository, clock clockwork.Clock, initial status.Snapshot) *statusWriter {
	return &statusWriter{
		repo:    repo,
		clock:   clock,
		current: initial,
		dirty:   make(chan struct{}, 1),
	}
}

// Update changes the snapshot and schedules a write. It never blocks on I/O.
func (w *statusWriter) Update(change func(*status.Snapshot)) {
	w.mu.Lock()
	change(&w.current)
	w.mu.Unlock()

	select {
	case w.dirty <- struct{}{}:
	default:
	}
}

// Snapshot returns the latest snapshot.
func (w *statusWriter) Snapshot() status.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.current
}

// Run writes pending snapshots until ctx is done, then writes a final one.
func (w *statusWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx))
			return nil
		case <-w.dirty:
			w.flush(ctx)
		}
	}
}

func (w *statusWriter) flush(ctx context.Context) {
	snapshot := w.Snapshot()
	snapshot.UpdatedAt = w.clock.Now()

	if err := w.repo.Save(ctx, snapshot); err != nil {
		logger.WarnKV(ctx, "Failed to write status file", "error", err)
	}
}

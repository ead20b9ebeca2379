package clock

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	// Embedded zone database so POSIX-style zones such as PST8PDT resolve
	// on hosts without /usr/share/zoneinfo.
	_ "time/tzdata"
)

// DefaultZone is the zone used when none is configured.
const DefaultZone = "PST8PDT"

// LoadZone resolves a zone name, daylight saving rules included.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZone
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}

	return loc, nil
}

// snapshot is one published correction.
type snapshot struct {
	// offset is added to the local clock reading.
	offset time.Duration
	// syncedAt is the corrected time of the synchronization, zero if never synced.
	syncedAt time.Time
}

// WallClock exposes the current local time.
type WallClock struct {
	// base is the local clock the correction applies to.
	base clockwork.Clock
	// loc is the zone every reading is expressed in.
	loc *time.Location
	// current is the latest published snapshot.
	current atomic.Pointer[snapshot]
}

// NewWallClock creates an unsynchronized wall clock.
// A nil base uses the real clock, a nil location uses UTC.
func NewWallClock(base clockwork.Clock, loc *time.Location) *WallClock {
	if base == nil {
		base = clockwork.NewRealClock()
	}

	if loc == nil {
		loc = time.UTC
	}

	w := &WallClock{
		base: base,
		loc:  loc,
	}
	w.current.Store(new(snapshot))

	return w
}

// Now returns the corrected time in the configured zone.
func (w *WallClock) Now() time.Time {
	s := w.current.Load()

	return w.base.Now().Add(s.offset).In(w.loc)
}

// Synced reports whether at least one synchronization completed.
func (w *WallClock) Synced() bool {
	return !w.current.Load().syncedAt.IsZero()
}

// LastSync returns the corrected time of the last synchronization.
func (w *WallClock) LastSync() (time.Time, bool) {
	s := w.current.Load()

	return s.syncedAt.In(w.loc), !s.syncedAt.IsZero()
}

// Offset returns the correction currently applied.
func (w *WallClock) Offset() time.Duration {
	return w.current.Load().offset
}

// Location returns the zone readings are expressed in.
func (w *WallClock) Location() *time.Location {
	return w.loc
}

// Set publishes a new correction measured against the base clock.
func (w *WallClock) Set(offset time.Duration) {
	w.current.Store(&snapshot{
		offset:   offset,
		syncedAt: w.base.Now().Add(offset),
	})
}

package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadZone_PacificWithDaylightSaving checks that PST8PDT applies both offsets.
func TestLoadZone_PacificWithDaylightSaving(t *testing.T) {
	t.Parallel()

	loc, err := LoadZone("")
	require.NoError(t, err)
	require.Equal(t, DefaultZone, loc.String())

	_, winter := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC).In(loc).Zone()
	_, summer := time.Date(2026, time.July, 10, 12, 0, 0, 0, time.UTC).In(loc).Zone()

	require.Equal(t, -8*3600, winter)
	require.Equal(t, -7*3600, summer)

	_, err = LoadZone("Mars/Olympus_Mons")
	require.Error(t, err)
}

// TestWallClock_DefaultBeforeSync ensures an unsynced clock is well defined.
func TestWallClock_DefaultBeforeSync(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	fc := clockwork.NewFakeClockAt(start)
	w := NewWallClock(fc, nil)

	require.False(t, w.Synced())
	require.True(t, w.Now().Equal(start))
	require.Equal(t, time.UTC, w.Now().Location())
	require.Zero(t, w.Offset())

	_, ok := w.LastSync()
	require.False(t, ok)
}

// TestWallClock_SetAppliesOffset verifies published corrections.
func TestWallClock_SetAppliesOffset(t *testing.T) {
	t.Parallel()

	loc, err := LoadZone("PST8PDT")
	require.NoError(t, err)

	start := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	fc := clockwork.NewFakeClockAt(start)
	w := NewWallClock(fc, loc)

	w.Set(90 * time.Second)

	require.True(t, w.Synced())
	require.True(t, w.Now().Equal(start.Add(90*time.Second)))
	require.Equal(t, loc, w.Now().Location())

	synced, ok := w.LastSync()
	require.True(t, ok)
	require.True(t, synced.Equal(start.Add(90*time.Second)))

	fc.Advance(time.Minute)
	require.True(t, w.Now().Equal(start.Add(150*time.Second)))
}

// TestWallClock_ConcurrentReadsSeeWholeSnapshots races readers against the writer.
func TestWallClock_ConcurrentReadsSeeWholeSnapshots(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	w := NewWallClock(clockwork.NewFakeClockAt(start), nil)

	var wg sync.WaitGroup

	for range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 1000 {
				now := w.Now()
				offset := now.Sub(start)
				// Every published offset is a whole number of seconds.
				assert.Zero(t, offset%time.Second)
			}
		}()
	}

	for i := range 1000 {
		w.Set(time.Duration(i) * time.Second)
	}

	wg.Wait()
}

package settings

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.db")

	store, err := Open(context.Background(), path)
	require.NoError(t, err)

	return store, path
}

// TestRecordBoot_CountsAcrossRestarts verifies the counter survives reopening.
func TestRecordBoot_CountsAcrossRestarts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, path := openTemp(t)
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	first, err := store.RecordBoot(ctx, start)
	require.NoError(t, err)
	require.Equal(t, uint64(1), first.Count)
	require.NotEqual(t, uuid.Nil, first.ID)
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	second, err := store.RecordBoot(ctx, start.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, uint64(2), second.Count)
	require.NotEqual(t, first.ID, second.ID)
}

// TestSync_RoundTrip verifies the last sync is kept.
func TestSync_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := openTemp(t)

	t.Cleanup(func() { _ = store.Close() })

	_, found, err := store.LastSync(ctx)
	require.NoError(t, err)
	require.False(t, found)

	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveSync(ctx, Sync{Offset: -1500 * time.Millisecond, At: at}))
	require.NoError(t, store.SaveSync(ctx, Sync{Offset: 250 * time.Millisecond, At: at.Add(time.Hour)}))

	got, found, err := store.LastSync(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 250*time.Millisecond, got.Offset)
	require.True(t, got.At.Equal(at.Add(time.Hour)))
}

// TestOpen_ErasesGarbage verifies a file that is not a database is replaced.
func TestOpen_ErasesGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.db")
	garbage := make([]byte, 4096)

	for i := range garbage {
		garbage[i] = byte(i * 7)
	}

	require.NoError(t, os.WriteFile(path, garbage, 0o600))

	store, err := Open(context.Background(), path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	boot, err := store.RecordBoot(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, uint64(1), boot.Count)
}

// TestOpen_ErasesNewerSchema verifies a database from a newer build is replaced.
func TestOpen_ErasesNewerSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, path := openTemp(t)

	_, err := store.RecordBoot(ctx, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	boot, err := store.RecordBoot(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, uint64(1), boot.Count)
}

// TestOpen_UnrecoverableFails verifies a path that cannot hold a database is an error.
func TestOpen_UnrecoverableFails(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing", "settings.db"))
	require.Error(t, err)
}

// TestClosedStore verifies operations after Close are rejected.
func TestClosedStore(t *testing.T) {
	t.Parallel()

	store, _ := openTemp(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.RecordBoot(context.Background(), time.Now())
	require.ErrorIs(t, err, errClosed)
}

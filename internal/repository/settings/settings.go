package settings

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/oshokin/garden-controller/internal/logger"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is written to PRAGMA user_version.
const currentSchemaVersion = 1

var (
	// ErrNewerSchema is returned when the database was written by a newer build.
	ErrNewerSchema = errors.New("settings database has a newer schema")
	// errClosed is returned after Close.
	errClosed = errors.New("settings store closed")
)

// Boot describes one controller start.
type Boot struct {
	// ID is unique per start.
	ID uuid.UUID
	// Count is the number of starts including this one.
	Count uint64
	// StartedAt is the start time.
	StartedAt time.Time
}

// Sync is the last successful time synchronization.
type Sync struct {
	// Offset is the correction applied to the local clock.
	Offset time.Duration
	// At is the corrected time of the sync.
	At time.Time
}

// Store is the sqlite-backed settings store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at path. A file that is not a usable
// database is erased and initialized again once.
func Open(ctx context.Context, path string) (*Store, error) {
	store, err := open(ctx, path)
	if err == nil {
		return store, nil
	}

	if !recoverable(err) {
		return nil, err
	}

	logger.WarnKV(ctx, "Erasing settings database", "path", path, "error", err)

	if err = erase(path); err != nil {
		return nil, fmt.Errorf("erase settings database: %w", err)
	}

	store, err = open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open settings database after erase: %w", err)
	}

	return store, nil
}

func open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err = initialize(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func initialize(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version > currentSchemaVersion {
		return fmt.Errorf("%w: %d", ErrNewerSchema, version)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}

	return nil
}

// recoverable reports whether erasing the file can fix err.
func recoverable(err error) bool {
	if errors.Is(err, ErrNewerSchema) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrNotADB || sqliteErr.Code == sqlite3.ErrCorrupt
	}

	return false
}

// erase removes the database and its journals.
func erase(path string) error {
	for _, name := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	return err
}

// RecordBoot increments the boot counter and stores a fresh boot id.
func (s *Store) RecordBoot(ctx context.Context, now time.Time) (Boot, error) {
	if s.db == nil {
		return Boot{}, errClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Boot{}, fmt.Errorf("begin: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	var previous bootRecord
	if _, err = get(ctx, tx, keyBoot, &previous); err != nil {
		return Boot{}, err
	}

	boot := Boot{
		ID:        uuid.New(),
		Count:     previous.Count + 1,
		StartedAt: now,
	}

	record := bootRecord{Count: boot.Count, ID: boot.ID[:], StartedAt: now}
	if err = put(ctx, tx, keyBoot, record, now); err != nil {
		return Boot{}, err
	}

	if err = tx.Commit(); err != nil {
		return Boot{}, fmt.Errorf("commit: %w", err)
	}

	return boot, nil
}

// SaveSync stores the last successful sync.
func (s *Store) SaveSync(ctx context.Context, sync Sync) error {
	if s.db == nil {
		return errClosed
	}

	return put(ctx, s.db, keySync, syncRecord{Offset: int64(sync.Offset), At: sync.At}, sync.At)
}

// LastSync returns the stored sync, if any.
func (s *Store) LastSync(ctx context.Context) (Sync, bool, error) {
	if s.db == nil {
		return Sync{}, false, errClosed
	}

	var record syncRecord

	found, err := get(ctx, s.db, keySync, &record)
	if err != nil || !found {
		return Sync{}, false, err
	}

	return Sync{Offset: time.Duration(record.Offset), At: record.At}, true, nil
}

// querier is implemented by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q querier, key string, v any) (bool, error) {
	var data []byte

	err := q.QueryRowContext(ctx, "SELECT value FROM records WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}

	if err = decMode.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}

	return true, nil
}

func put(ctx context.Context, q querier, key string, v any, now time.Time) error {
	data, err := encMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, data, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	return nil
}

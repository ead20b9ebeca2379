package status

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/oshokin/garden-controller/internal/config"
	domain "github.com/oshokin/garden-controller/internal/domain/station"
)

// Snapshot is the externally visible controller status.
type Snapshot struct {
	// Station is the live connection status.
	Station domain.Status
	// Outcome is the resolution of the connection start.
	Outcome domain.OutcomeKind
	// Synced reports whether the wall clock was ever synchronized.
	Synced bool
	// Offset is the last applied clock correction.
	Offset time.Duration
	// LastSync is the corrected time of the last sync.
	LastSync time.Time
	// BootID identifies the current start.
	BootID string
	// BootCount is the number of starts.
	BootCount uint64
	// UpdatedAt is when the snapshot was written.
	UpdatedAt time.Time
}

// Repository defines persistence operations for the snapshot.
type Repository interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

// Snapshot field names.
const (
	fieldPhase     = "phase"
	fieldRetries   = "retries"
	fieldAttempts  = "attempts"
	fieldAddress   = "address"
	fieldOutcome   = "outcome"
	fieldSynced    = "synced"
	fieldOffset    = "offset_ms"
	fieldLastSync  = "last_sync"
	fieldBootID    = "boot_id"
	fieldBootCount = "boot_count"
	fieldUpdatedAt = "updated_at"
)

var (
	// ErrNotFound is returned when the status file does not exist yet.
	ErrNotFound = errors.New("status not found")
	// errUnknownValue is returned for unrecognized phase or outcome names.
	errUnknownValue = errors.New("unknown value")
)

// FileRepository persists the snapshot to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the status file.
	path string
	// mu serializes writers.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, ErrNotFound
		}

		return Snapshot{}, fmt.Errorf("read status file: %w", err)
	}

	var message structpb.Struct
	if err = protojson.Unmarshal(contents, &message); err != nil {
		return Snapshot{}, fmt.Errorf("decode status file: %w", err)
	}

	return fromProto(&message)
}

// Save writes the snapshot through a temporary file.
func (r *FileRepository) Save(_ context.Context, snapshot Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, err := toProto(snapshot)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace status file: %w", err)
	}

	return nil
}

// toProto converts the snapshot into a protobuf Struct.
func toProto(snapshot Snapshot) (*structpb.Struct, error) {
	fields := map[string]any{
		fieldPhase:     snapshot.Station.Phase.String(),
		fieldRetries:   snapshot.Station.Retries,
		fieldAttempts:  snapshot.Station.Attempts,
		fieldOutcome:   snapshot.Outcome.String(),
		fieldSynced:    snapshot.Synced,
		fieldOffset:    snapshot.Offset.Milliseconds(),
		fieldBootID:    snapshot.BootID,
		fieldBootCount: strconv.FormatUint(snapshot.BootCount, 10),
	}

	if snapshot.Station.Address.IsValid() {
		fields[fieldAddress] = snapshot.Station.Address.String()
	}

	for name, ts := range map[string]time.Time{
		fieldLastSync:  snapshot.LastSync,
		fieldUpdatedAt: snapshot.UpdatedAt,
	} {
		if ts.IsZero() {
			continue
		}

		text, err := formatTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		fields[name] = text
	}

	return structpb.NewStruct(fields)
}

// fromProto converts a protobuf Struct back into the snapshot.
func fromProto(message *structpb.Struct) (Snapshot, error) {
	fields := message.GetFields()

	var (
		snapshot Snapshot
		err      error
	)

	if snapshot.Station.Phase, err = parsePhase(fields[fieldPhase].GetStringValue()); err != nil {
		return Snapshot{}, err
	}

	if snapshot.Outcome, err = parseOutcome(fields[fieldOutcome].GetStringValue()); err != nil {
		return Snapshot{}, err
	}

	snapshot.Station.Retries = int(fields[fieldRetries].GetNumberValue())
	snapshot.Station.Attempts = int(fields[fieldAttempts].GetNumberValue())
	snapshot.Synced = fields[fieldSynced].GetBoolValue()
	snapshot.Offset = time.Duration(fields[fieldOffset].GetNumberValue()) * time.Millisecond
	snapshot.BootID = fields[fieldBootID].GetStringValue()

	if text := fields[fieldBootCount].GetStringValue(); text != "" {
		if snapshot.BootCount, err = strconv.ParseUint(text, 10, 64); err != nil {
			return Snapshot{}, fmt.Errorf("%s: %w", fieldBootCount, err)
		}
	}

	if text := fields[fieldAddress].GetStringValue(); text != "" {
		if snapshot.Station.Address, err = netip.ParseAddr(text); err != nil {
			return Snapshot{}, fmt.Errorf("%s: %w", fieldAddress, err)
		}
	}

	if snapshot.LastSync, err = parseTimestamp(fields[fieldLastSync].GetStringValue()); err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", fieldLastSync, err)
	}

	if snapshot.UpdatedAt, err = parseTimestamp(fields[fieldUpdatedAt].GetStringValue()); err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", fieldUpdatedAt, err)
	}

	return snapshot, nil
}

// formatTimestamp renders t in the protobuf JSON timestamp form.
func formatTimestamp(t time.Time) (string, error) {
	data, err := protojson.Marshal(timestamppb.New(t))
	if err != nil {
		return "", err
	}

	return strconv.Unquote(string(data))
}

// parseTimestamp reads the protobuf JSON timestamp form. Empty is zero time.
func parseTimestamp(text string) (time.Time, error) {
	if text == "" {
		return time.Time{}, nil
	}

	var ts timestamppb.Timestamp
	if err := protojson.Unmarshal([]byte(strconv.Quote(text)), &ts); err != nil {
		return time.Time{}, err
	}

	return ts.AsTime(), nil
}

func parsePhase(name string) (domain.Phase, error) {
	for _, phase := range []domain.Phase{
		domain.PhaseIdle,
		domain.PhaseConnecting,
		domain.PhaseRetrying,
		domain.PhaseConnected,
		domain.PhaseFailed,
	} {
		if phase.String() == name {
			return phase, nil
		}
	}

	return 0, fmt.Errorf("%w: phase %q", errUnknownValue, name)
}

func parseOutcome(name string) (domain.OutcomeKind, error) {
	for _, kind := range []domain.OutcomeKind{
		domain.OutcomePending,
		domain.OutcomeConnected,
		domain.OutcomeFailed,
	} {
		if kind.String() == name {
			return kind, nil
		}
	}

	return 0, fmt.Errorf("%w: outcome %q", errUnknownValue, name)
}

// Package store persists the session blob, its metadata record, and a
// rotating backup ring. It is the only package that touches the storage
// medium; everything above it works with decoded session state.
//
// Save pipeline: serialize → compress → encrypt → size-ceiling check →
// write blob → write metadata → rotate backups. Load walks the blob and
// then each backup slot, most recent first, before giving up.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"

	"github.com/diego-gutierrez10/swipephoto-sub001/events"
	"github.com/diego-gutierrez10/swipephoto-sub001/jsonutil"
	"github.com/diego-gutierrez10/swipephoto-sub001/logging"
	"github.com/diego-gutierrez10/swipephoto-sub001/session"
)

// machineID is a package-level var to allow test injection.
var machineID = func() (string, error) {
	return machineid.ProtectedID("swipephoto")
}

// Config carries the store's tunables. Zero values take defaults via
// normalize.
type Config struct {
	// MaxBlobSize is the ceiling on one serialized blob; Save rejects
	// larger states with ErrQuotaExceeded before writing anything.
	MaxBlobSize int64

	// TotalCapacity is the nominal capacity of the storage area, used for
	// storage stats. The store does not enforce it.
	TotalCapacity int64

	// BackupSlots is the size of the backup ring.
	BackupSlots int

	// MaxSessionAge is how old a saved session may be before
	// SessionAvailable stops offering it.
	MaxSessionAge time.Duration

	// Compress and Encrypt toggle the codec pipeline stages.
	Compress bool
	Encrypt  bool
}

func (c *Config) normalize() {
	if c.MaxBlobSize <= 0 {
		c.MaxBlobSize = 1 << 20 // 1 MiB
	}
	if c.TotalCapacity <= 0 {
		c.TotalCapacity = 6 << 20
	}
	if c.BackupSlots <= 0 {
		c.BackupSlots = 3
	}
	if c.MaxSessionAge <= 0 {
		c.MaxSessionAge = 24 * time.Hour
	}
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	c := Config{Compress: true, Encrypt: true}
	c.normalize()
	return c
}

// Metadata is the lightweight record stored alongside the blob. It is always
// plain JSON (never compressed or encrypted) so availability checks can read
// it without decoding the full blob.
type Metadata struct {
	SchemaVersion string    `json:"schema_version"`
	SessionID     string    `json:"session_id"`
	LastSavedAt   time.Time `json:"last_saved_at"`
	Compressed    bool      `json:"compressed"`
	Encrypted     bool      `json:"encrypted"`
}

// Snapshot is a loaded blob before migration: its schema version plus the
// raw decoded payload. Version is always in the engine's known set.
type Snapshot struct {
	Version string
	Payload json.RawMessage
}

// State strictly decodes a current-version snapshot. Older snapshots must go
// through the migration engine instead.
func (s *Snapshot) State() (*session.State, error) {
	if s.Version != session.SchemaVersion {
		return nil, fmt.Errorf("%w: snapshot is %s, want %s", ErrVersionMismatch, s.Version, session.SchemaVersion)
	}
	var state session.State
	if err := json.Unmarshal(s.Payload, &state); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &state, nil
}

// StorageStats describes the storage area occupancy.
type StorageStats struct {
	TotalCapacity  int64 `json:"total_capacity"`
	UsedBytes      int64 `json:"used_bytes"`
	AvailableBytes int64 `json:"available_bytes"`
}

// Store is the durable session store. Methods are safe for the engine's
// single-writer model; a mutex serializes backend access.
type Store struct {
	backend Backend
	cfg     Config
	codec   codec
	bus     *events.Bus
	mu      sync.Mutex
	now     func() time.Time
}

// New builds a Store over backend. When cfg.Encrypt is set but no
// machine-bound key can be derived, the store degrades to unencrypted
// storage: the downgrade is logged and published as a degraded_mode event,
// never raised as fatal.
func New(ctx context.Context, backend Backend, cfg Config, bus *events.Bus) *Store {
	cfg.normalize()
	ctx = logging.WithComponent(ctx, "store")
	c := codec{compress: cfg.Compress, encrypt: cfg.Encrypt}
	if cfg.Encrypt {
		secret, err := machineID()
		if err == nil {
			c.key, err = deriveKey(secret)
		}
		if err != nil {
			logging.Warn(ctx, "keystore unavailable, storing sessions unencrypted",
				slog.Any("error", err),
			)
			bus.Publish(events.Event{Type: events.DegradedMode, Reason: err.Error()})
			c.key = nil
		}
	}
	return &Store{
		backend: backend,
		cfg:     cfg,
		codec:   c,
		bus:     bus,
		now:     time.Now,
	}
}

// Save durably overwrites the persisted session with state. The previous
// main blob rotates into backup_0 only after the new write succeeds, and
// state.LastSavedAt is stamped with the write time.
func (s *Store) Save(ctx context.Context, state *session.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = logging.WithComponent(ctx, "store")
	start := s.now()

	state.LastSavedAt = start
	plain, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}

	env, err := s.codec.seal(plain)
	if err != nil {
		return err
	}
	blob, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if int64(len(blob)) > s.cfg.MaxBlobSize {
		return fmt.Errorf("%w: blob is %d bytes, ceiling %d", ErrQuotaExceeded, len(blob), s.cfg.MaxBlobSize)
	}

	// Hold the previous main blob aside for backup rotation.
	prev, err := s.backend.Get(ctx, keySession)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return err
	}

	if err := s.backend.Put(ctx, keySession, blob); err != nil {
		s.bus.Publish(events.Event{Type: events.StorageError, SessionID: state.SessionID, Reason: err.Error()})
		return err
	}

	meta := Metadata{
		SchemaVersion: state.SchemaVersion,
		SessionID:     state.SessionID,
		LastSavedAt:   state.LastSavedAt,
		Compressed:    env.Compressed,
		Encrypted:     env.Encrypted,
	}
	metaBytes, err := jsonutil.MarshalIndentWithNewline(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if err := s.backend.Put(ctx, keyMetadata, metaBytes); err != nil {
		s.bus.Publish(events.Event{Type: events.StorageError, SessionID: state.SessionID, Reason: err.Error()})
		return err
	}

	if prev != nil {
		s.rotateBackups(ctx, prev)
	}

	elapsed := s.now().Sub(start)
	logging.Debug(ctx, "session saved",
		slog.String("session_id", state.SessionID),
		slog.Int("bytes", len(blob)),
		slog.Duration("elapsed", elapsed),
	)
	s.bus.Publish(events.Event{
		Type:      events.SessionSaved,
		SessionID: state.SessionID,
		Bytes:     int64(len(blob)),
		Duration:  elapsed,
	})
	return nil
}

// rotateBackups shifts backup[i] into backup[i+1] from the oldest end down,
// then writes the previous main blob into backup_0. Rotation failures are
// logged and swallowed: the main write already succeeded and a stale backup
// ring must not fail the save.
func (s *Store) rotateBackups(ctx context.Context, prevMain []byte) {
	for i := s.cfg.BackupSlots - 2; i >= 0; i-- {
		data, err := s.backend.Get(ctx, backupKey(i))
		if errors.Is(err, ErrRecordNotFound) {
			continue
		}
		if err == nil {
			err = s.backend.Put(ctx, backupKey(i+1), data)
		}
		if err != nil {
			logging.Warn(ctx, "backup rotation failed", slog.Int("slot", i), slog.Any("error", err))
		}
	}
	if err := s.backend.Put(ctx, backupKey(0), prevMain); err != nil {
		logging.Warn(ctx, "backup rotation failed", slog.Int("slot", 0), slog.Any("error", err))
	}
}

// Load reads the persisted session. A missing session returns (nil, nil).
// A corrupt main blob falls back to the backup ring, most recent slot
// first. A blob whose schema version is outside the known set returns
// ErrVersionMismatch rather than silently accepting unknown data.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = logging.WithComponent(ctx, "store")

	blob, err := s.backend.Get(ctx, keySession)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap, err := s.decode(blob)
	if err == nil {
		s.bus.Publish(events.Event{Type: events.SessionLoaded, ToVersion: snap.Version, Bytes: int64(len(blob))})
		return snap, nil
	}
	if errors.Is(err, ErrVersionMismatch) {
		return nil, err
	}
	logging.Warn(ctx, "main blob unreadable, trying backups", slog.Any("error", err))

	for i := 0; i < s.cfg.BackupSlots; i++ {
		data, berr := s.backend.Get(ctx, backupKey(i))
		if berr != nil {
			continue
		}
		snap, berr := s.decode(data)
		if berr != nil {
			logging.Debug(ctx, "backup slot unreadable", slog.Int("slot", i), slog.Any("error", berr))
			continue
		}
		logging.Info(ctx, "session restored from backup", slog.Int("slot", i))
		s.bus.Publish(events.Event{Type: events.SessionLoaded, ToVersion: snap.Version, Reason: fmt.Sprintf("backup_%d", i)})
		return snap, nil
	}

	s.bus.Publish(events.Event{Type: events.StorageError, Reason: err.Error()})
	return nil, nil
}

// decode unwraps one blob envelope and validates the payload's shape.
func (s *Store) decode(blob []byte) (*Snapshot, error) {
	var env blobEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %w", ErrDataCorrupted, err)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDataCorrupted)
	}
	plain, err := s.codec.open(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataCorrupted, err)
	}

	// Required top-level fields, checked without committing to a shape.
	var head struct {
		SchemaVersion string          `json:"schema_version"`
		SessionID     string          `json:"session_id"`
		Navigation    json.RawMessage `json:"navigation"`
		Progress      json.RawMessage `json:"progress"`
	}
	if err := json.Unmarshal(plain, &head); err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrDataCorrupted, err)
	}
	if head.SessionID == "" || head.Navigation == nil || head.Progress == nil {
		return nil, fmt.Errorf("%w: missing required fields", ErrDataCorrupted)
	}
	if !session.IsKnownVersion(head.SchemaVersion) {
		return nil, fmt.Errorf("%w: unknown version %q", ErrVersionMismatch, head.SchemaVersion)
	}
	return &Snapshot{Version: head.SchemaVersion, Payload: plain}, nil
}

// SessionAvailable reports whether a usable, non-stale session exists. It
// reads only the metadata record and never deserializes the blob.
func (s *Store) SessionAvailable(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.readMetadata(ctx)
	if err != nil {
		return false
	}
	return s.now().Sub(meta.LastSavedAt) < s.cfg.MaxSessionAge
}

// ReadMetadata returns the metadata record, or ErrRecordNotFound when no
// session has been saved.
func (s *Store) ReadMetadata(ctx context.Context) (*Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMetadata(ctx)
}

func (s *Store) readMetadata(ctx context.Context) (*Metadata, error) {
	data, err := s.backend.Get(ctx, keyMetadata)
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", ErrDataCorrupted, err)
	}
	return &meta, nil
}

// Clear deletes the blob, metadata, and every backup slot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = logging.WithComponent(ctx, "store")

	var firstErr error
	keys := []string{keySession, keyMetadata}
	for i := 0; i < s.cfg.BackupSlots; i++ {
		keys = append(keys, backupKey(i))
	}
	for _, key := range keys {
		if err := s.backend.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		s.bus.Publish(events.Event{Type: events.StorageError, Reason: firstErr.Error()})
		return firstErr
	}
	logging.Info(ctx, "session storage cleared")
	s.bus.Publish(events.Event{Type: events.SessionCleared})
	return nil
}

// Stats reports storage occupancy against the configured capacity.
func (s *Store) Stats(ctx context.Context) (StorageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	used, err := s.backend.UsedBytes(ctx)
	if err != nil {
		return StorageStats{}, err
	}
	avail := s.cfg.TotalCapacity - used
	if avail < 0 {
		avail = 0
	}
	return StorageStats{
		TotalCapacity:  s.cfg.TotalCapacity,
		UsedBytes:      used,
		AvailableBytes: avail,
	}, nil
}

// BackupSlots reports which backup slots currently hold data.
func (s *Store) BackupSlots(ctx context.Context) []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	slots := make([]bool, s.cfg.BackupSlots)
	for i := range slots {
		if _, err := s.backend.Get(ctx, backupKey(i)); err == nil {
			slots[i] = true
		}
	}
	return slots
}

// Package recovery orchestrates session startup: load the persisted
// session, migrate it if its schema is old, or fall back to a fresh session
// when both fail. From the host application's point of view initialization
// cannot fail, only degrade.
package recovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/diego-gutierrez10/swipephoto-sub001/events"
	"github.com/diego-gutierrez10/swipephoto-sub001/logging"
	"github.com/diego-gutierrez10/swipephoto-sub001/migrate"
	"github.com/diego-gutierrez10/swipephoto-sub001/session"
	"github.com/diego-gutierrez10/swipephoto-sub001/store"
)

// Coordinator is the top-level startup entry point.
type Coordinator struct {
	store    *store.Store
	migrator *migrate.Engine
	bus      *events.Bus
	now      func() time.Time
}

// New wires a coordinator from its explicitly constructed collaborators.
func New(st *store.Store, migrator *migrate.Engine, bus *events.Bus) *Coordinator {
	return &Coordinator{store: st, migrator: migrator, bus: bus, now: time.Now}
}

// Initialize loads and, if necessary, migrates the persisted session. When
// no usable session exists it returns a fresh one. The boolean reports
// whether the previous session ended abnormally (the crash-detection signal
// the host may use to offer resume-or-discard).
func (c *Coordinator) Initialize(ctx context.Context) (*session.State, bool) {
	ctx = logging.WithComponent(ctx, "recovery")

	snap, err := c.store.Load(ctx)
	if err != nil {
		// Includes version-mismatch on data outside the known set; the
		// migration fallback still salvages what it can from nothing, so
		// start fresh here.
		logging.Warn(ctx, "session load failed, starting fresh", slog.Any("error", err))
		c.bus.Publish(events.Event{Type: events.RecoveryFailed, Reason: err.Error()})
		return c.fresh(), false
	}
	if snap == nil {
		logging.Info(ctx, "no persisted session")
		return c.fresh(), false
	}

	state := c.migrator.Migrate(ctx, snap.Payload, snap.Version)

	recoveryNeeded := state.Lifecycle.IsActive && state.Lifecycle.EndedAt == nil
	if recoveryNeeded {
		now := c.now()
		state.Metadata.RecoveryAttempts++
		state.Metadata.LastCrashAt = &now
		logging.Warn(ctx, "previous session did not end cleanly",
			slog.String("session_id", state.SessionID),
			slog.Int("recovery_attempts", state.Metadata.RecoveryAttempts),
		)
		c.bus.Publish(events.Event{
			Type:      events.CrashDetected,
			SessionID: state.SessionID,
			Attempt:   state.Metadata.RecoveryAttempts,
		})
	} else {
		logging.Info(ctx, "session restored", slog.String("session_id", state.SessionID))
	}
	return state, recoveryNeeded
}

// ForceRestore re-runs Initialize, discarding whatever in-memory state the
// host holds.
func (c *Coordinator) ForceRestore(ctx context.Context) (*session.State, bool) {
	return c.Initialize(ctx)
}

// StartNew clears persisted storage and returns a fresh session, carrying
// the session counter and preferences forward from the previous session
// when one is still readable.
func (c *Coordinator) StartNew(ctx context.Context) *session.State {
	ctx = logging.WithComponent(ctx, "recovery")

	var prev *session.State
	if snap, err := c.store.Load(ctx); err == nil && snap != nil {
		prev = c.migrator.Migrate(ctx, snap.Payload, snap.Version)
	}

	if err := c.store.Clear(ctx); err != nil {
		logging.Warn(ctx, "clearing old session failed", slog.Any("error", err))
	}

	state := c.fresh()
	if prev != nil {
		state.Preferences = prev.Preferences
		state.Metadata.SessionCount = prev.Metadata.SessionCount + 1
	}
	logging.Info(ctx, "new session started", slog.String("session_id", state.SessionID))
	return state
}

func (c *Coordinator) fresh() *session.State {
	return session.New(c.now())
}

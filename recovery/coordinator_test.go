package recovery

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diego-gutierrez10/swipephoto-sub001/events"
	"github.com/diego-gutierrez10/swipephoto-sub001/migrate"
	"github.com/diego-gutierrez10/swipephoto-sub001/session"
	"github.com/diego-gutierrez10/swipephoto-sub001/store"
)

func testCoordinator(t *testing.T, bus *events.Bus) (*Coordinator, *store.Store, *store.MemoryBackend) {
	t.Helper()
	backend := store.NewMemoryBackend()
	st := store.New(context.Background(), backend, store.Config{Compress: true}, bus)
	return New(st, migrate.New(bus), bus), st, backend
}

func TestInitializeFreshWhenNothingPersisted(t *testing.T) {
	c, _, _ := testCoordinator(t, nil)

	state, recoveryNeeded := c.Initialize(context.Background())
	require.NotNil(t, state)
	assert.False(t, recoveryNeeded)
	assert.Equal(t, session.SchemaVersion, state.SchemaVersion)
	assert.True(t, state.Lifecycle.IsActive)
}

func TestInitializeDetectsCrash(t *testing.T) {
	bus := events.NewBus()
	var crashes []events.Event
	bus.Subscribe(func(ev events.Event) {
		if ev.Type == events.CrashDetected {
			crashes = append(crashes, ev)
		}
	})
	c, st, _ := testCoordinator(t, bus)
	ctx := context.Background()

	// An active session saved and never cleanly ended is the crash signal.
	active := session.New(time.Now())
	require.NoError(t, st.Save(ctx, active))

	state, recoveryNeeded := c.Initialize(ctx)
	assert.True(t, recoveryNeeded)
	assert.Equal(t, active.SessionID, state.SessionID)
	assert.Equal(t, 1, state.Metadata.RecoveryAttempts)
	require.NotNil(t, state.Metadata.LastCrashAt)
	require.Len(t, crashes, 1)
	assert.Equal(t, active.SessionID, crashes[0].SessionID)
}

func TestInitializeCleanEndNeedsNoRecovery(t *testing.T) {
	c, st, _ := testCoordinator(t, nil)
	ctx := context.Background()

	ended := session.New(time.Now())
	ended.End(time.Now())
	require.NoError(t, st.Save(ctx, ended))

	state, recoveryNeeded := c.Initialize(ctx)
	assert.False(t, recoveryNeeded)
	assert.Equal(t, ended.SessionID, state.SessionID)
}

func TestInitializeMigratesOldVersions(t *testing.T) {
	bus := events.NewBus()
	var migrated int
	bus.Subscribe(func(ev events.Event) {
		if ev.Type == events.SessionMigrated {
			migrated++
		}
	})
	c, _, backend := testCoordinator(t, bus)
	ctx := context.Background()

	// Persist a raw 1.0.0 blob directly (plain envelope, no compression).
	payload := `{"schema_version":"1.0.0","session_id":"old-one","navigation":{"current_screen":"swipe"},"progress":{"categories":{"favorites":4}},"preferences":{"theme":"dark","haptics":true,"sound":true}}`
	writeRawBlob(t, backend, payload)

	state, recoveryNeeded := c.Initialize(ctx)
	assert.False(t, recoveryNeeded, "pre-lifecycle sessions never look crashed")
	assert.Equal(t, session.SchemaVersion, state.SchemaVersion)
	assert.Equal(t, "old-one", state.SessionID)
	assert.Equal(t, session.CategoryProgress{Completed: 4, Total: 4}, state.Progress.Categories["favorites"])
	assert.Equal(t, "dark", state.Preferences.Theme)
	assert.Equal(t, 1, migrated)
}

func TestInitializeFallsBackOnUnknownVersion(t *testing.T) {
	bus := events.NewBus()
	var failed int
	bus.Subscribe(func(ev events.Event) {
		if ev.Type == events.RecoveryFailed {
			failed++
		}
	})
	c, _, backend := testCoordinator(t, bus)

	writeRawBlob(t, backend, `{"schema_version":"9.0.0","session_id":"future","navigation":{},"progress":{}}`)

	state, recoveryNeeded := c.Initialize(context.Background())
	require.NotNil(t, state, "initialization cannot fail, only degrade")
	assert.False(t, recoveryNeeded)
	assert.Equal(t, session.SchemaVersion, state.SchemaVersion)
	assert.NotEqual(t, "future", state.SessionID)
	assert.Equal(t, 1, failed)
}

func TestStartNewClearsAndKeepsPreferences(t *testing.T) {
	c, st, backend := testCoordinator(t, nil)
	ctx := context.Background()

	old := session.New(time.Now())
	old.Preferences.Theme = "dark"
	old.Preferences.SoundEnabled = false
	old.Metadata.SessionCount = 7
	old.SetCategoryProgress("favorites", 3, 9)
	require.NoError(t, st.Save(ctx, old))

	state := c.StartNew(ctx)
	assert.NotEqual(t, old.SessionID, state.SessionID)
	assert.Equal(t, "dark", state.Preferences.Theme, "preferences survive session resets")
	assert.False(t, state.Preferences.SoundEnabled)
	assert.Equal(t, 8, state.Metadata.SessionCount)
	assert.Empty(t, state.Progress.Categories, "progress does not survive a reset")

	used, err := backend.UsedBytes(ctx)
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestForceRestoreDiscardsInMemoryChanges(t *testing.T) {
	c, st, _ := testCoordinator(t, nil)
	ctx := context.Background()

	saved := session.New(time.Now())
	saved.Navigation.CurrentIndex = 10
	require.NoError(t, st.Save(ctx, saved))

	state, _ := c.Initialize(ctx)
	state.Navigation.CurrentIndex = 999 // never saved

	restored, _ := c.ForceRestore(ctx)
	assert.Equal(t, 10, restored.Navigation.CurrentIndex)
}

// writeRawBlob persists payload under the main session key as an
// uncompressed, unencrypted envelope, the shape a legacy app version would
// have written.
func writeRawBlob(t *testing.T, backend store.Backend, payload string) {
	t.Helper()
	blob, err := json.Marshal(map[string]any{
		"compressed": false,
		"encrypted":  false,
		"payload":    []byte(payload),
	})
	require.NoError(t, err)
	require.NoError(t, backend.Put(context.Background(), "session", blob))
}

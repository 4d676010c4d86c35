package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diego-gutierrez10/swipephoto-sub001/events"
	"github.com/diego-gutierrez10/swipephoto-sub001/scheduler"
	"github.com/diego-gutierrez10/swipephoto-sub001/store"
)

func newTestEngine(t *testing.T, backend store.Backend) *Engine {
	t.Helper()
	e, err := New(context.Background(), Config{
		Backend: backend,
		Store:   store.Config{Compress: true},
	})
	require.NoError(t, err)
	t.Cleanup(e.Dispose)
	return e
}

func TestFreshStartWhenStorageEmpty(t *testing.T) {
	e := newTestEngine(t, store.NewMemoryBackend())

	state, recoveryNeeded := e.Initialize(context.Background())
	require.NotNil(t, state)
	assert.False(t, recoveryNeeded)
	assert.NotEmpty(t, state.SessionID)
}

func TestCrashCycleRecoversState(t *testing.T) {
	backend := store.NewMemoryBackend()

	e := newTestEngine(t, backend)
	state, _ := e.Initialize(context.Background())
	state.SetCategoryProgress("screenshots", 7, 20)
	require.NoError(t, e.ForceSave(context.Background()))
	// No EndSession: simulates the process dying here.

	e2 := newTestEngine(t, backend)
	recovered, recoveryNeeded := e2.Initialize(context.Background())
	assert.True(t, recoveryNeeded)
	assert.Equal(t, state.SessionID, recovered.SessionID)
	assert.Equal(t, 7, recovered.Progress.Categories["screenshots"].Completed)
	assert.Equal(t, 1, recovered.Metadata.RecoveryAttempts)
}

func TestCleanEndNeedsNoRecovery(t *testing.T) {
	backend := store.NewMemoryBackend()

	e := newTestEngine(t, backend)
	e.Initialize(context.Background())
	require.NoError(t, e.EndSession(context.Background()))

	e2 := newTestEngine(t, backend)
	_, recoveryNeeded := e2.Initialize(context.Background())
	assert.False(t, recoveryNeeded)
}

func TestNotifyChangeEventuallySaves(t *testing.T) {
	backend := store.NewMemoryBackend()
	e, err := New(context.Background(), Config{
		Backend:   backend,
		Store:     store.Config{Compress: true},
		Scheduler: scheduler.Config{ThrottleDelay: 1}, // effectively immediate
	})
	require.NoError(t, err)
	t.Cleanup(e.Dispose)

	state, _ := e.Initialize(context.Background())
	state.RecordNavigation("swipe", "screenshots", 3, state.LastSavedAt)
	e.NotifyChange(scheduler.DomainNavigation)

	// ForceSave waits out any in-flight scheduled save, then persists.
	require.NoError(t, e.ForceSave(context.Background()))

	st := e.Store()
	meta, err := st.ReadMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.SessionID, meta.SessionID)
}

func TestStartNewCarriesPreferences(t *testing.T) {
	backend := store.NewMemoryBackend()

	e := newTestEngine(t, backend)
	state, _ := e.Initialize(context.Background())
	state.Preferences.Theme = "dark"
	require.NoError(t, e.ForceSave(context.Background()))

	fresh := e.StartNew(context.Background())
	assert.NotEqual(t, state.SessionID, fresh.SessionID)
	assert.Equal(t, "dark", fresh.Preferences.Theme)
	assert.Equal(t, 2, fresh.Metadata.SessionCount)
}

func TestForceRestoreDiscardsUnsavedChanges(t *testing.T) {
	backend := store.NewMemoryBackend()

	e := newTestEngine(t, backend)
	state, _ := e.Initialize(context.Background())
	state.SetCategoryProgress("screenshots", 5, 10)
	require.NoError(t, e.ForceSave(context.Background()))

	state.SetCategoryProgress("screenshots", 9, 10)
	restored, _ := e.ForceRestore(context.Background())
	assert.Equal(t, 5, restored.Progress.Categories["screenshots"].Completed)
}

func TestEventsSurfaceSaves(t *testing.T) {
	e := newTestEngine(t, store.NewMemoryBackend())

	var saved int
	e.Events().Subscribe(func(ev events.Event) {
		if ev.Type == events.SessionSaved {
			saved++
		}
	})

	e.Initialize(context.Background())
	require.NoError(t, e.ForceSave(context.Background()))
	assert.Equal(t, 1, saved)
}

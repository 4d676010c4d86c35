package migrate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diego-gutierrez10/swipephoto-sub001/events"
	"github.com/diego-gutierrez10/swipephoto-sub001/session"
)

func TestNeedsMigration(t *testing.T) {
	e := New(nil)
	assert.False(t, e.NeedsMigration(session.SchemaVersion))
	assert.True(t, e.NeedsMigration("1.0.0"))
	assert.True(t, e.NeedsMigration("garbage"))
}

func TestMigrateEqualVersionIsSanitizeOnly(t *testing.T) {
	e := New(nil)
	state := session.New(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	state.SetCategoryProgress("favorites", 3, 7)
	payload, err := json.Marshal(state)
	require.NoError(t, err)

	got := e.Migrate(context.Background(), payload, session.SchemaVersion)
	assert.Equal(t, state, got, "same-version migration must be a validated no-op")
}

func TestMigrateFromV10(t *testing.T) {
	bus := events.NewBus()
	var migrated []events.Event
	bus.Subscribe(func(ev events.Event) {
		if ev.Type == events.SessionMigrated {
			migrated = append(migrated, ev)
		}
	})
	e := New(bus)

	payload := []byte(`{
		"schema_version": "1.0.0",
		"session_id": "legacy-session",
		"navigation": {"current_screen": "swipe", "current_index": 12},
		"progress": {
			"session_start": "2026-08-01T10:00:00Z",
			"items_processed": 40,
			"total_items": 120,
			"categories": {"favorites": 5, "screenshots": -2}
		},
		"preferences": {"theme": "dark", "haptics": false, "sound": true}
	}`)

	got := e.Migrate(context.Background(), payload, "1.0.0")
	assert.Equal(t, session.SchemaVersion, got.SchemaVersion)
	assert.Equal(t, "legacy-session", got.SessionID)
	assert.Equal(t, 12, got.Navigation.CurrentIndex)
	assert.Equal(t, session.CategoryProgress{Completed: 5, Total: 5}, got.Progress.Categories["favorites"])
	assert.Equal(t, session.CategoryProgress{}, got.Progress.Categories["screenshots"], "negative counts sanitized")
	assert.Equal(t, "dark", got.Preferences.Theme)
	assert.False(t, got.Preferences.HapticsEnabled)
	assert.True(t, got.Preferences.SoundEnabled)
	assert.False(t, got.Lifecycle.IsActive, "legacy sessions never trip crash detection")

	require.Len(t, migrated, 1)
	assert.Equal(t, "1.0.0", migrated[0].FromVersion)
	assert.Equal(t, session.SchemaVersion, migrated[0].ToVersion)
}

func TestMigrateFromV11(t *testing.T) {
	e := New(nil)
	payload := []byte(`{
		"schema_version": "1.1.0",
		"session_id": "mid-session",
		"navigation": {"current_screen": "category"},
		"progress": {
			"session_start": "2026-08-01T10:00:00Z",
			"categories": {"favorites": {"completed": 2, "total": 8}}
		},
		"preferences": {"theme": "light", "haptics_enabled": true, "sound_enabled": false, "sort_order": "date_desc"}
	}`)

	got := e.Migrate(context.Background(), payload, "1.1.0")
	assert.Equal(t, session.SchemaVersion, got.SchemaVersion)
	assert.Equal(t, session.CategoryProgress{Completed: 2, Total: 8}, got.Progress.Categories["favorites"])
	assert.Equal(t, "date_desc", got.Preferences.SortOrder)
	assert.Equal(t, 1, got.Metadata.SessionCount)
}

func TestMigrateMalformedNeverFails(t *testing.T) {
	bus := events.NewBus()
	var failures int
	bus.Subscribe(func(ev events.Event) {
		if ev.Type == events.RecoveryFailed {
			failures++
		}
	})
	e := New(bus)

	payloads := [][]byte{
		[]byte(`not json at all`),
		[]byte(`[]`),
		[]byte(`{"progress": "wrong type"}`),
		nil,
	}
	for _, payload := range payloads {
		got := e.Migrate(context.Background(), payload, "1.0.0")
		require.NotNil(t, got)
		assert.Equal(t, session.SchemaVersion, got.SchemaVersion)
		assert.NotEmpty(t, got.SessionID)
	}
	assert.Equal(t, len(payloads), failures)
}

func TestMigrateUnknownVersionFallsBack(t *testing.T) {
	e := New(nil)
	got := e.Migrate(context.Background(), []byte(`{"session_id":"x"}`), "0.4.0")
	assert.Equal(t, session.SchemaVersion, got.SchemaVersion)
	assert.NotEqual(t, "x", got.SessionID, "fallback starts a fresh session")
}

func TestFallbackSalvagesPreferences(t *testing.T) {
	e := New(nil)
	payload := []byte(`{
		"schema_version": "0.9.0",
		"preferences": {
			"theme": "dark",
			"haptics": false,
			"sound": true,
			"feature_toggles": {"beta_albums": true},
			"filter": 42
		}
	}`)

	got := e.Migrate(context.Background(), payload, "0.9.0")
	assert.Equal(t, "dark", got.Preferences.Theme)
	assert.False(t, got.Preferences.HapticsEnabled)
	assert.True(t, got.Preferences.SoundEnabled)
	assert.True(t, got.Preferences.FeatureToggles["beta_albums"])
	assert.Empty(t, got.Preferences.Filter, "fields that fail the type check are ignored")
}

func TestFindPathPrefersFewerSteps(t *testing.T) {
	e := New(nil)
	path := e.findPath("1.0.0", "1.2.0")
	require.Len(t, path, 1, "the combined 1.0.0 step beats two single hops")
	assert.Equal(t, "1.2.0", path[0].To)

	path = e.findPath("1.1.0", "1.2.0")
	require.Len(t, path, 1)
	assert.Equal(t, "1.1.0", path[0].From)
}

func TestFindPathPrefersExactHopOnTies(t *testing.T) {
	steps := []Step{
		{From: "1.0.0", To: "2.0.0", Apply: passThrough},
		{From: "1.0.0", To: "1.1.0", Apply: passThrough},
		{From: "1.1.0", To: "3.0.0", Apply: passThrough},
		{From: "2.0.0", To: "3.0.0", Apply: passThrough},
	}
	e := newEngine("3.0.0", steps, nil)
	path := e.findPath("1.0.0", "3.0.0")
	require.Len(t, path, 2)
	assert.Equal(t, "1.1.0", path[0].To, "the exact next-version hop wins the tie")
}

func passThrough(payload json.RawMessage) (json.RawMessage, error) {
	return payload, nil
}

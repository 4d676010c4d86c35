// Package session provides the domain model for persisted app sessions.
//
// A State is the single root object the engine persists: where the user is
// in the app (navigation), how far they have gotten (progress), their
// preferences, a bounded undo snapshot, and lifecycle/metadata blocks used
// for crash detection and diagnostics.
//
// State is mutated in memory by the host application through the methods in
// this package, which enforce the model's invariants (clamped progress,
// bounded undo stack, bounded navigation history). The store and migration
// layers treat it as a value to serialize, never reaching into it.
package session

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current on-disk schema version. Persisted states
// tagged with an older known version are migrated forward on load.
const SchemaVersion = "1.2.0"

// knownVersions lists every schema version the engine can read, oldest
// first. The last entry is always SchemaVersion.
var knownVersions = []string{"1.0.0", "1.1.0", "1.2.0"}

// KnownVersions returns the schema versions the engine can read.
func KnownVersions() []string {
	return slices.Clone(knownVersions)
}

// IsKnownVersion reports whether v is a schema version the engine can read.
func IsKnownVersion(v string) bool {
	return slices.Contains(knownVersions, v)
}

// State is the root persisted session object.
type State struct {
	// SchemaVersion tags the shape of this state on disk.
	SchemaVersion string `json:"schema_version"`

	// SessionID uniquely identifies one continuous span of app usage.
	// Regenerated whenever a new (non-restored) session begins.
	SessionID string `json:"session_id"`

	// LastSavedAt is stamped by the store on every successful save.
	LastSavedAt time.Time `json:"last_saved_at"`

	Navigation  Navigation  `json:"navigation"`
	Progress    Progress    `json:"progress"`
	Preferences Preferences `json:"preferences"`

	// Undo holds the most recent undoable-action records, newest last.
	// Entries are opaque to the engine; it stores and restores them verbatim.
	Undo []UndoEntry `json:"undo_snapshot"`

	Lifecycle Lifecycle `json:"lifecycle"`
	Metadata  Metadata  `json:"metadata"`
}

// Navigation captures where the user currently is in the app.
type Navigation struct {
	CurrentScreen      string  `json:"current_screen"`
	CurrentIndex       int     `json:"current_index"`
	SelectedCategoryID string  `json:"selected_category_id"`
	ScrollOffset       float64 `json:"scroll_offset"`
}

// Preferences holds user choices that are independent of session identity.
// They survive session resets and are the one block migration fallback tries
// to salvage from unreadable old data.
type Preferences struct {
	Theme          string          `json:"theme"`
	HapticsEnabled bool            `json:"haptics_enabled"`
	SoundEnabled   bool            `json:"sound_enabled"`
	FeatureToggles map[string]bool `json:"feature_toggles,omitempty"`
	SortOrder      string          `json:"sort_order,omitempty"`
	Filter         string          `json:"filter,omitempty"`
}

// Metadata carries session counters used for diagnostics.
type Metadata struct {
	// SessionCount is the number of fresh sessions started on this device.
	SessionCount int `json:"session_count"`

	// LastSessionDuration is how long the previous session lasted.
	LastSessionDuration time.Duration `json:"last_session_duration"`

	// RecoveryAttempts counts consecutive crash recoveries; reset on a
	// clean session end.
	RecoveryAttempts int `json:"recovery_attempts"`

	// LastCrashAt is when the last abnormal termination was detected.
	LastCrashAt *time.Time `json:"last_crash_at,omitempty"`
}

// New returns a fresh current-version State with a new session id.
func New(now time.Time) *State {
	return &State{
		SchemaVersion: SchemaVersion,
		SessionID:     uuid.NewString(),
		Navigation:    Navigation{CurrentScreen: "home"},
		Progress: Progress{
			SessionStart: now,
			Categories:   make(map[string]CategoryProgress),
		},
		Preferences: Preferences{
			Theme:          "system",
			HapticsEnabled: true,
			SoundEnabled:   true,
		},
		Lifecycle: Lifecycle{IsActive: true},
		Metadata:  Metadata{SessionCount: 1},
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	cp := *s
	cp.Progress.Categories = make(map[string]CategoryProgress, len(s.Progress.Categories))
	for k, v := range s.Progress.Categories {
		cp.Progress.Categories[k] = v
	}
	cp.Progress.History = slices.Clone(s.Progress.History)
	cp.Undo = make([]UndoEntry, len(s.Undo))
	for i, e := range s.Undo {
		cp.Undo[i] = e
		cp.Undo[i].Payload = slices.Clone(e.Payload)
	}
	if s.Preferences.FeatureToggles != nil {
		cp.Preferences.FeatureToggles = make(map[string]bool, len(s.Preferences.FeatureToggles))
		for k, v := range s.Preferences.FeatureToggles {
			cp.Preferences.FeatureToggles[k] = v
		}
	}
	if s.Lifecycle.PausedAt != nil {
		t := *s.Lifecycle.PausedAt
		cp.Lifecycle.PausedAt = &t
	}
	if s.Lifecycle.EndedAt != nil {
		t := *s.Lifecycle.EndedAt
		cp.Lifecycle.EndedAt = &t
	}
	if s.Metadata.LastCrashAt != nil {
		t := *s.Metadata.LastCrashAt
		cp.Metadata.LastCrashAt = &t
	}
	return &cp
}

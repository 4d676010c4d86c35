package migrate

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/diego-gutierrez10/swipephoto-sub001/events"
	"github.com/diego-gutierrez10/swipephoto-sub001/logging"
	"github.com/diego-gutierrez10/swipephoto-sub001/session"
)

// sanitize enforces the model invariants on a decoded state in place and
// returns it. Applied to every state the engine hands back, migrated or not.
func (e *Engine) sanitize(st *session.State) *session.State {
	st.SchemaVersion = e.target
	if st.SessionID == "" {
		st.SessionID = uuid.NewString()
	}
	if st.Progress.SessionStart.IsZero() {
		st.Progress.SessionStart = e.now()
	}
	if st.Progress.ItemsProcessed < 0 {
		st.Progress.ItemsProcessed = 0
	}
	if st.Progress.TotalItems < 0 {
		st.Progress.TotalItems = 0
	}
	if st.Progress.Categories == nil {
		st.Progress.Categories = make(map[string]session.CategoryProgress)
	}
	for id, cp := range st.Progress.Categories {
		if cp.Total < 0 {
			cp.Total = 0
		}
		if cp.Completed < 0 {
			cp.Completed = 0
		}
		if cp.Completed > cp.Total {
			cp.Completed = cp.Total
		}
		st.Progress.Categories[id] = cp
	}
	if n := len(st.Progress.History); n > session.HistoryCapacity {
		st.Progress.History = st.Progress.History[n-session.HistoryCapacity:]
	}
	if n := len(st.Undo); n > session.UndoCapacity {
		st.Undo = st.Undo[n-session.UndoCapacity:]
	}
	if st.Preferences.Theme == "" {
		st.Preferences.Theme = "system"
	}
	if st.Lifecycle.PausedFor < 0 {
		st.Lifecycle.PausedFor = 0
	}
	if st.Metadata.SessionCount < 1 {
		st.Metadata.SessionCount = 1
	}
	if st.Metadata.RecoveryAttempts < 0 {
		st.Metadata.RecoveryAttempts = 0
	}
	return st
}

// fallback builds a fresh current-version state when migration cannot
// proceed, salvaging user preferences from the old payload where the field
// types still line up. Never an error from the caller's point of view.
func (e *Engine) fallback(ctx context.Context, payload json.RawMessage, from, reason string) *session.State {
	st := session.New(e.now())
	salvagePreferences(payload, &st.Preferences)

	logging.Warn(ctx, "migration fell back to fresh state",
		slog.String("from", from),
		slog.String("reason", reason),
	)
	e.bus.Publish(events.Event{
		Type:        events.RecoveryFailed,
		FromVersion: from,
		ToVersion:   e.target,
		Reason:      reason,
	})
	return st
}

// salvagePreferences copies preference fields out of an arbitrarily-shaped
// old payload, taking only values whose types check out and ignoring the
// rest. Probes both current and historical key spellings.
func salvagePreferences(payload json.RawMessage, prefs *session.Preferences) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(payload, &root); err != nil {
		return
	}
	var rawPrefs json.RawMessage
	for _, key := range []string{"preferences", "user_preferences", "userPreferences"} {
		if p, ok := root[key]; ok {
			rawPrefs = p
			break
		}
	}
	if rawPrefs == nil {
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rawPrefs, &fields); err != nil {
		return
	}

	salvageString(fields, &prefs.Theme, "theme")
	salvageBool(fields, &prefs.HapticsEnabled, "haptics_enabled", "haptics")
	salvageBool(fields, &prefs.SoundEnabled, "sound_enabled", "sound")
	salvageString(fields, &prefs.SortOrder, "sort_order")
	salvageString(fields, &prefs.Filter, "filter")

	if raw, ok := fields["feature_toggles"]; ok {
		var toggles map[string]bool
		if err := json.Unmarshal(raw, &toggles); err == nil {
			prefs.FeatureToggles = toggles
		}
	}
}

func salvageString(fields map[string]json.RawMessage, dst *string, keys ...string) {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err == nil && v != "" {
			*dst = v
			return
		}
	}
}

func salvageBool(fields map[string]json.RawMessage, dst *bool, keys ...string) {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var v bool
		if err := json.Unmarshal(raw, &v); err == nil {
			*dst = v
			return
		}
	}
}

package migrate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/diego-gutierrez10/swipephoto-sub001/session"
)

// Legacy schema shapes. Each version the engine can read gets its own typed
// struct here; transforms go old struct -> new struct, never untyped object
// mutation.

// stateV10 is the 1.0.0 shape: per-category progress was a bare completed
// count, preferences had short key names, and there was no navigation
// history, lifecycle, or metadata block.
type stateV10 struct {
	SchemaVersion string             `json:"schema_version"`
	SessionID     string             `json:"session_id"`
	LastSavedAt   time.Time          `json:"last_saved_at"`
	Navigation    session.Navigation `json:"navigation"`
	Progress      progressV10        `json:"progress"`
	Preferences   preferencesV10     `json:"preferences"`
	Undo          []session.UndoEntry `json:"undo_snapshot"`
}

type progressV10 struct {
	SessionStart   time.Time      `json:"session_start"`
	ItemsProcessed int            `json:"items_processed"`
	TotalItems     int            `json:"total_items"`
	Categories     map[string]int `json:"categories"`
}

type preferencesV10 struct {
	Theme   string `json:"theme"`
	Haptics bool   `json:"haptics"`
	Sound   bool   `json:"sound"`
}

// stateV11 is the 1.1.0 shape: progress pairs and navigation history
// arrived, preferences keys took their current names. Still no lifecycle or
// metadata block, and no feature toggles.
type stateV11 struct {
	SchemaVersion string              `json:"schema_version"`
	SessionID     string              `json:"session_id"`
	LastSavedAt   time.Time           `json:"last_saved_at"`
	Navigation    session.Navigation  `json:"navigation"`
	Progress      session.Progress    `json:"progress"`
	Preferences   preferencesV11      `json:"preferences"`
	Undo          []session.UndoEntry `json:"undo_snapshot"`
}

type preferencesV11 struct {
	Theme          string `json:"theme"`
	HapticsEnabled bool   `json:"haptics_enabled"`
	SoundEnabled   bool   `json:"sound_enabled"`
	SortOrder      string `json:"sort_order,omitempty"`
	Filter         string `json:"filter,omitempty"`
}

func defaultSteps() []Step {
	return []Step{
		{
			From:        "1.0.0",
			To:          "1.1.0",
			Description: "category counters become completed/total pairs",
			Apply:       upV10ToV11,
		},
		{
			From:        "1.1.0",
			To:          "1.2.0",
			Description: "add lifecycle and metadata blocks, feature toggles",
			Apply:       upV11ToV12,
		},
		{
			From:        "1.0.0",
			To:          "1.2.0",
			Description: "combined upgrade from 1.0.0",
			Apply: func(payload json.RawMessage) (json.RawMessage, error) {
				mid, err := upV10ToV11(payload)
				if err != nil {
					return nil, err
				}
				return upV11ToV12(mid)
			},
		},
	}
}

func upV10ToV11(payload json.RawMessage) (json.RawMessage, error) {
	var old stateV10
	if err := json.Unmarshal(payload, &old); err != nil {
		return nil, fmt.Errorf("decode 1.0.0 state: %w", err)
	}

	categories := make(map[string]session.CategoryProgress, len(old.Progress.Categories))
	for id, completed := range old.Progress.Categories {
		if completed < 0 {
			completed = 0
		}
		// 1.0.0 never recorded a per-category total; treat the counted set
		// as fully known so later increments stay clamped.
		categories[id] = session.CategoryProgress{Completed: completed, Total: completed}
	}

	next := stateV11{
		SchemaVersion: "1.1.0",
		SessionID:     old.SessionID,
		LastSavedAt:   old.LastSavedAt,
		Navigation:    old.Navigation,
		Progress: session.Progress{
			SessionStart:   old.Progress.SessionStart,
			ItemsProcessed: old.Progress.ItemsProcessed,
			TotalItems:     old.Progress.TotalItems,
			Categories:     categories,
		},
		Preferences: preferencesV11{
			Theme:          old.Preferences.Theme,
			HapticsEnabled: old.Preferences.Haptics,
			SoundEnabled:   old.Preferences.Sound,
		},
		Undo: old.Undo,
	}
	return json.Marshal(next)
}

func upV11ToV12(payload json.RawMessage) (json.RawMessage, error) {
	var old stateV11
	if err := json.Unmarshal(payload, &old); err != nil {
		return nil, fmt.Errorf("decode 1.1.0 state: %w", err)
	}

	next := session.State{
		SchemaVersion: "1.2.0",
		SessionID:     old.SessionID,
		LastSavedAt:   old.LastSavedAt,
		Navigation:    old.Navigation,
		Progress:      old.Progress,
		Preferences: session.Preferences{
			Theme:          old.Preferences.Theme,
			HapticsEnabled: old.Preferences.HapticsEnabled,
			SoundEnabled:   old.Preferences.SoundEnabled,
			SortOrder:      old.Preferences.SortOrder,
			Filter:         old.Preferences.Filter,
		},
		Undo: old.Undo,
		// Lifecycle of a pre-1.2.0 save is unknowable; assume it ended so
		// restored legacy sessions never trip crash detection.
		Lifecycle: session.Lifecycle{},
		Metadata:  session.Metadata{SessionCount: 1},
	}
	return json.Marshal(next)
}

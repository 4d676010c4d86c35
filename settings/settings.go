// Package settings loads the engine's settings.json. Unknown keys are
// rejected so typos surface as errors instead of silently-ignored config.
// A settings.local.json next to it overrides individual fields and is
// meant to stay out of version control.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/diego-gutierrez10/swipephoto-sub001/jsonutil"
	"github.com/diego-gutierrez10/swipephoto-sub001/scheduler"
	"github.com/diego-gutierrez10/swipephoto-sub001/store"
)

const (
	settingsFile      = "settings.json"
	localSettingsFile = "settings.local.json"
)

// Settings is the on-disk configuration of the persistence engine. All
// fields are optional; zero values defer to component defaults.
type Settings struct {
	LogLevel  string `json:"log_level,omitempty"`
	Telemetry *bool  `json:"telemetry,omitempty"`

	Compression *bool `json:"compression,omitempty"`
	Encryption  *bool `json:"encryption,omitempty"`

	MaxBlobSize   int64 `json:"max_blob_size,omitempty"`
	TotalCapacity int64 `json:"total_capacity,omitempty"`
	BackupSlots   int   `json:"backup_slots,omitempty"`
	MaxAgeHours   int   `json:"max_session_age_hours,omitempty"`

	ThrottleDelayMS int `json:"throttle_delay_ms,omitempty"`
	MaxRetries      int `json:"max_retries,omitempty"`

	// Deprecated: old installs wrote sync_interval_ms; it maps onto
	// ThrottleDelayMS when that field is unset.
	SyncIntervalMS int `json:"sync_interval_ms,omitempty"`
}

// Load reads settings.json (and settings.local.json, if present) from dir.
// A missing settings.json yields defaults, not an error.
func Load(dir string) (*Settings, error) {
	s := &Settings{}

	base, err := os.ReadFile(filepath.Join(dir, settingsFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", settingsFile, err)
	default:
		if err := jsonutil.UnmarshalStrict(base, s); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", settingsFile, err)
		}
	}

	local, err := os.ReadFile(filepath.Join(dir, localSettingsFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", localSettingsFile, err)
	default:
		// Decoding the override into the already-populated struct leaves
		// unmentioned fields at their base values.
		if err := jsonutil.UnmarshalStrict(local, s); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", localSettingsFile, err)
		}
	}

	return s, nil
}

// TelemetryEnabled reports whether telemetry is on. It defaults to false:
// hosts opt in explicitly.
func (s *Settings) TelemetryEnabled() bool {
	return s.Telemetry != nil && *s.Telemetry
}

// StoreConfig translates the file settings into a store configuration.
func (s *Settings) StoreConfig() store.Config {
	cfg := store.Config{
		MaxBlobSize:   s.MaxBlobSize,
		TotalCapacity: s.TotalCapacity,
		BackupSlots:   s.BackupSlots,
		Compress:      s.Compression == nil || *s.Compression,
		Encrypt:       s.Encryption == nil || *s.Encryption,
	}
	if s.MaxAgeHours > 0 {
		cfg.MaxSessionAge = time.Duration(s.MaxAgeHours) * time.Hour
	}
	return cfg
}

// SchedulerConfig translates the file settings into a scheduler
// configuration.
func (s *Settings) SchedulerConfig() scheduler.Config {
	cfg := scheduler.Config{MaxRetries: s.MaxRetries}
	delay := s.ThrottleDelayMS
	if delay == 0 {
		delay = s.SyncIntervalMS
	}
	if delay > 0 {
		cfg.ThrottleDelay = time.Duration(delay) * time.Millisecond
	}
	return cfg
}

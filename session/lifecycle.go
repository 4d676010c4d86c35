package session

import "time"

// Lifecycle tracks whether a session is running, paused, or cleanly ended.
// A persisted state that is still active with no end marker is the crash
// signal the recovery path looks for.
type Lifecycle struct {
	IsActive bool `json:"is_active"`
	IsPaused bool `json:"is_paused"`

	// PausedFor accumulates total time spent paused across the session.
	PausedFor  time.Duration `json:"paused_for"`
	PauseCount int           `json:"pause_count"`

	PausedAt *time.Time `json:"paused_at,omitempty"`
	EndedAt  *time.Time `json:"ended_at,omitempty"`
}

// Pause marks the session paused. Calling Pause while already paused is a
// no-op.
func (s *State) Pause(now time.Time) {
	if s.Lifecycle.IsPaused {
		return
	}
	s.Lifecycle.IsPaused = true
	s.Lifecycle.PauseCount++
	t := now
	s.Lifecycle.PausedAt = &t
}

// Resume ends a pause and folds the paused interval into PausedFor.
func (s *State) Resume(now time.Time) {
	if !s.Lifecycle.IsPaused {
		return
	}
	s.Lifecycle.IsPaused = false
	if s.Lifecycle.PausedAt != nil {
		if d := now.Sub(*s.Lifecycle.PausedAt); d > 0 {
			s.Lifecycle.PausedFor += d
		}
		s.Lifecycle.PausedAt = nil
	}
}

// End marks the session cleanly ended and records its duration. The caller
// is expected to force a save afterwards so the marker reaches disk.
func (s *State) End(now time.Time) {
	s.Lifecycle.IsActive = false
	s.Lifecycle.IsPaused = false
	t := now
	s.Lifecycle.EndedAt = &t
	s.Metadata.LastSessionDuration = now.Sub(s.Progress.SessionStart)
	s.Metadata.RecoveryAttempts = 0
}

// EndedCleanly reports whether the previous run of this session was marked
// as ended. A restored state where this is false crashed or was killed.
func (s *State) EndedCleanly() bool {
	return !s.Lifecycle.IsActive && s.Lifecycle.EndedAt != nil
}

package session

import "time"

// HistoryCapacity bounds the navigation history; the oldest entry is
// evicted first when the cap is reached.
const HistoryCapacity = 50

// Progress tracks how far the user has gotten in the current session.
type Progress struct {
	SessionStart   time.Time                   `json:"session_start"`
	ItemsProcessed int                         `json:"items_processed"`
	TotalItems     int                         `json:"total_items"`
	Categories     map[string]CategoryProgress `json:"categories"`

	// History is the recent navigation trail, oldest first.
	History []HistoryEntry `json:"history,omitempty"`
}

// CategoryProgress is the per-category completion counter pair.
// Completed never exceeds Total; writes through SetCategoryProgress and
// IncrementCategory clamp it.
type CategoryProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// HistoryEntry records one navigation hop.
type HistoryEntry struct {
	Screen     string    `json:"screen"`
	CategoryID string    `json:"category_id,omitempty"`
	Index      int       `json:"index"`
	At         time.Time `json:"at"`
}

// SetCategoryProgress records completion counters for a category, clamping
// completed into [0, total].
func (s *State) SetCategoryProgress(categoryID string, completed, total int) {
	if total < 0 {
		total = 0
	}
	if completed < 0 {
		completed = 0
	}
	if completed > total {
		completed = total
	}
	if s.Progress.Categories == nil {
		s.Progress.Categories = make(map[string]CategoryProgress)
	}
	s.Progress.Categories[categoryID] = CategoryProgress{Completed: completed, Total: total}
}

// IncrementCategory advances a category's completed counter by one, clamped
// at the category's total. Unknown categories are a no-op.
func (s *State) IncrementCategory(categoryID string) {
	cp, ok := s.Progress.Categories[categoryID]
	if !ok {
		return
	}
	if cp.Completed < cp.Total {
		cp.Completed++
		s.Progress.Categories[categoryID] = cp
	}
}

// RecordNavigation updates the navigation position and appends to the
// bounded history trail.
func (s *State) RecordNavigation(screen, categoryID string, index int, now time.Time) {
	s.Navigation.CurrentScreen = screen
	s.Navigation.SelectedCategoryID = categoryID
	s.Navigation.CurrentIndex = index
	s.Progress.History = append(s.Progress.History, HistoryEntry{
		Screen:     screen,
		CategoryID: categoryID,
		Index:      index,
		At:         now,
	})
	if n := len(s.Progress.History); n > HistoryCapacity {
		s.Progress.History = s.Progress.History[n-HistoryCapacity:]
	}
}

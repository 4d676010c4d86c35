package session

import (
	"encoding/json"
	"time"
)

// UndoCapacity bounds the persisted undo stack. Pushing onto a full stack
// evicts the oldest entry.
const UndoCapacity = 3

// UndoEntry is one undoable-action record. The payload belongs to the undo
// engine; this engine stores and restores it verbatim.
type UndoEntry struct {
	Action  string          `json:"action"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PushUndo appends an entry to the undo stack, evicting the oldest entry
// when the stack is at capacity. Entries remain in insertion order,
// oldest first.
func (s *State) PushUndo(entry UndoEntry) {
	s.Undo = append(s.Undo, entry)
	if n := len(s.Undo); n > UndoCapacity {
		s.Undo = s.Undo[n-UndoCapacity:]
	}
}

// PopUndo removes and returns the newest undo entry, or false when the
// stack is empty.
func (s *State) PopUndo() (UndoEntry, bool) {
	n := len(s.Undo)
	if n == 0 {
		return UndoEntry{}, false
	}
	entry := s.Undo[n-1]
	s.Undo = s.Undo[:n-1]
	return entry, true
}

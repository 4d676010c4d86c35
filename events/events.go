// Package events provides the engine's lifecycle event bus.
//
// Components publish named events (session_saved, storage_error, ...) and the
// host application subscribes for diagnostics and telemetry. Events never
// drive persistence logic; they are strictly observational.
package events

import (
	"sync"
	"time"
)

// Type names a lifecycle event.
type Type string

const (
	SessionSaved    Type = "session_saved"
	SessionLoaded   Type = "session_loaded"
	SessionMigrated Type = "session_migrated"
	SessionCleared  Type = "session_cleared"
	StorageError    Type = "storage_error"
	RecoveryFailed  Type = "session_recovery_failed"
	CrashDetected   Type = "crash_detected"
	SaveRetried     Type = "save_retried"
	SaveAbandoned   Type = "save_abandoned"
	DegradedMode    Type = "degraded_mode"
)

// Event is the structured payload delivered to subscribers. Fields that do
// not apply to a given event type are zero.
type Event struct {
	Type        Type
	At          time.Time
	SessionID   string
	Bytes       int64
	Duration    time.Duration
	FromVersion string
	ToVersion   string
	Attempt     int
	Reason      string
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Subscription is the unsubscribe handle returned by Subscribe.
type Subscription struct {
	bus *Bus
	id  int
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	s.bus = nil
}

// Bus is a typed publish/subscribe channel for engine events.
// The zero value is not usable; call NewBus. A nil *Bus is a valid no-op
// publisher, so components may treat the bus as optional.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]Handler)}
}

// Subscribe registers a handler for all events and returns its handle.
func (b *Bus) Subscribe(h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[id] = h
	return &Subscription{bus: b, id: id}
}

// Publish delivers ev to all current subscribers. Publishing on a nil bus is
// a no-op. If ev.At is zero it is stamped with the current time.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

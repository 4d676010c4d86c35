// Package engine composes the session persistence components into the
// surface the host application consumes: initialize, notify, force-save,
// start-new, and the diagnostic event stream.
//
// Nothing in here is a singleton. The host constructs one Engine at its
// composition root and passes it down; every collaborator is reachable for
// hosts that prefer to wire the pieces themselves.
package engine

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/diego-gutierrez10/swipephoto-sub001/events"
	"github.com/diego-gutierrez10/swipephoto-sub001/migrate"
	"github.com/diego-gutierrez10/swipephoto-sub001/recovery"
	"github.com/diego-gutierrez10/swipephoto-sub001/scheduler"
	"github.com/diego-gutierrez10/swipephoto-sub001/session"
	"github.com/diego-gutierrez10/swipephoto-sub001/store"
)

// Config aggregates the tunables of every component.
type Config struct {
	// Root is the directory for the default file backend. Ignored when an
	// explicit Backend is supplied.
	Root string

	// Backend overrides the storage backend.
	Backend store.Backend

	Store     store.Config
	Scheduler scheduler.Config
}

// Engine owns the composed persistence stack and the current in-memory
// session state.
type Engine struct {
	bus   *events.Bus
	store *store.Store
	sched *scheduler.Scheduler
	coord *recovery.Coordinator

	mu    sync.Mutex
	state *session.State
}

// New builds an engine. The default backend stores records under
// <Root>/session; hosts embedding the engine elsewhere supply cfg.Backend.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	backend := cfg.Backend
	if backend == nil {
		root := cfg.Root
		if root == "" {
			root = "."
		}
		fb, err := store.NewFileBackend(filepath.Join(root, "session"))
		if err != nil {
			return nil, err
		}
		backend = fb
	}

	bus := events.NewBus()
	st := store.New(ctx, backend, cfg.Store, bus)
	e := &Engine{
		bus:   bus,
		store: st,
		coord: recovery.New(st, migrate.New(bus), bus),
	}
	e.sched = scheduler.New(st, e.snapshot, cfg.Scheduler, bus)
	return e, nil
}

// Initialize loads (and migrates if needed) the persisted session, arming
// the scheduler against the result. The boolean is the crash-recovery
// signal for the host.
func (e *Engine) Initialize(ctx context.Context) (*session.State, bool) {
	state, recoveryNeeded := e.coord.Initialize(ctx)
	e.setState(state)
	return state, recoveryNeeded
}

// ForceRestore reloads from storage, discarding unsaved in-memory changes.
func (e *Engine) ForceRestore(ctx context.Context) (*session.State, bool) {
	state, recoveryNeeded := e.coord.ForceRestore(ctx)
	e.setState(state)
	return state, recoveryNeeded
}

// StartNew clears storage and begins a fresh session.
func (e *Engine) StartNew(ctx context.Context) *session.State {
	state := e.coord.StartNew(ctx)
	e.setState(state)
	return state
}

// NotifyChange tells the scheduler the given state domain changed.
func (e *Engine) NotifyChange(domain scheduler.Domain) {
	e.sched.Notify(domain)
}

// ForceSave persists the current state immediately, bypassing the throttle.
func (e *Engine) ForceSave(ctx context.Context) error {
	return e.sched.ForceSave(ctx)
}

// EndSession marks the current session cleanly ended and persists the
// marker synchronously.
func (e *Engine) EndSession(ctx context.Context) error {
	e.mu.Lock()
	if e.state != nil {
		e.state.End(time.Now())
	}
	e.mu.Unlock()
	return e.sched.ForceSave(ctx)
}

// Events exposes the diagnostic event bus.
func (e *Engine) Events() *events.Bus {
	return e.bus
}

// Store exposes the underlying store, for ops surfaces (stats, metadata).
func (e *Engine) Store() *store.Store {
	return e.store
}

// Dispose cancels pending scheduled saves. It does not flush; call
// ForceSave or EndSession first when persistence must be guaranteed.
func (e *Engine) Dispose() {
	e.sched.Dispose()
}

func (e *Engine) setState(state *session.State) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

// snapshot hands the scheduler a copy of the current state so an in-flight
// save never races host mutations.
func (e *Engine) snapshot() *session.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil
	}
	return e.state.Clone()
}

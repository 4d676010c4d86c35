// Package migrate bridges persisted schema versions without data loss when
// possible.
//
// Migration steps form a directed graph; migrating picks the shortest path
// by step count (ties broken by preferring the exact next-version hop over a
// skip-ahead edge) and applies each step's typed transform in order. Every
// failure path terminates in a valid fallback state, so from the caller's
// point of view migration cannot fail, only degrade.
package migrate

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/mod/semver"

	"github.com/diego-gutierrez10/swipephoto-sub001/events"
	"github.com/diego-gutierrez10/swipephoto-sub001/logging"
	"github.com/diego-gutierrez10/swipephoto-sub001/session"
)

// Step is one edge in the migration graph: a typed transform from the From
// schema shape to the To schema shape.
type Step struct {
	From        string
	To          string
	Description string
	Apply       func(payload json.RawMessage) (json.RawMessage, error)
}

// Engine computes and applies migration paths to the current schema version.
type Engine struct {
	target string
	steps  []Step
	bus    *events.Bus
	now    func() time.Time
}

// New returns an engine targeting the current schema version with the
// default step table.
func New(bus *events.Bus) *Engine {
	return newEngine(session.SchemaVersion, defaultSteps(), bus)
}

func newEngine(target string, steps []Step, bus *events.Bus) *Engine {
	return &Engine{target: target, steps: steps, bus: bus, now: time.Now}
}

// NeedsMigration reports whether a state at version from must be migrated.
func (e *Engine) NeedsMigration(from string) bool {
	return from != e.target
}

// Migrate transforms a raw persisted payload at version from into a
// current-version State. Equal versions get validation/sanitization only.
// Migrate never fails: an unknown version, unreachable target, or failing
// step falls through to fallback construction.
func (e *Engine) Migrate(ctx context.Context, payload json.RawMessage, from string) *session.State {
	ctx = logging.WithComponent(ctx, "migrate")

	if from == e.target {
		var state session.State
		if err := json.Unmarshal(payload, &state); err != nil {
			logging.Warn(ctx, "current-version payload unreadable", slog.Any("error", err))
			return e.fallback(ctx, payload, from, err.Error())
		}
		return e.sanitize(&state)
	}

	if !semver.IsValid("v"+from) || !semver.IsValid("v"+e.target) {
		return e.fallback(ctx, payload, from, "unparseable schema version")
	}

	path := e.findPath(from, e.target)
	if path == nil {
		logging.Warn(ctx, "no migration path",
			slog.String("from", from),
			slog.String("to", e.target),
		)
		return e.fallback(ctx, payload, from, "no migration path")
	}

	current := payload
	for _, step := range path {
		next, err := step.Apply(current)
		if err != nil {
			logging.Warn(ctx, "migration step failed",
				slog.String("step", step.From+" -> "+step.To),
				slog.String("description", step.Description),
				slog.Any("error", err),
			)
			return e.fallback(ctx, payload, from, err.Error())
		}
		current = next
	}

	var state session.State
	if err := json.Unmarshal(current, &state); err != nil {
		logging.Warn(ctx, "migrated payload unreadable", slog.Any("error", err))
		return e.fallback(ctx, payload, from, err.Error())
	}

	logging.Info(ctx, "session migrated",
		slog.String("from", from),
		slog.String("to", e.target),
		slog.Int("steps", len(path)),
	)
	e.bus.Publish(events.Event{
		Type:        events.SessionMigrated,
		SessionID:   state.SessionID,
		FromVersion: from,
		ToVersion:   e.target,
	})
	return e.sanitize(&state)
}

// findPath returns the shortest step sequence from from to to, or nil when
// the target is unreachable. Among equal-length paths, edges with the
// smaller version jump are explored first, so an exact next-version hop wins
// over a skip-ahead step.
func (e *Engine) findPath(from, to string) []Step {
	adjacent := make(map[string][]Step)
	for _, s := range e.steps {
		adjacent[s.From] = append(adjacent[s.From], s)
	}
	for _, edges := range adjacent {
		sort.SliceStable(edges, func(i, j int) bool {
			return semver.Compare("v"+edges[i].To, "v"+edges[j].To) < 0
		})
	}

	type node struct {
		version string
		path    []Step
	}
	visited := map[string]bool{from: true}
	queue := []node{{version: from}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.version == to {
			return n.path
		}
		for _, step := range adjacent[n.version] {
			if visited[step.To] {
				continue
			}
			visited[step.To] = true
			path := make([]Step, len(n.path), len(n.path)+1)
			copy(path, n.path)
			queue = append(queue, node{version: step.To, path: append(path, step)})
		}
	}
	return nil
}

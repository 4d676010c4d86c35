// Package scheduler decides when the session store saves, not how.
//
// Change notifications from the host are filtered to sync-worthy domains
// and coalesced behind a throttle timer: rapid bursts reschedule the same
// pending save instead of spawning writes, and the delay grows adaptively
// while saves land close together. Exactly one save is ever in flight; a
// failed save retries with exponential backoff and, once retries are
// exhausted, degrades to a logged event. The in-memory state is never lost,
// only the durable copy goes temporarily stale.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/diego-gutierrez10/swipephoto-sub001/events"
	"github.com/diego-gutierrez10/swipephoto-sub001/logging"
	"github.com/diego-gutierrez10/swipephoto-sub001/session"
)

// Saver persists one state snapshot. *store.Store satisfies it.
type Saver interface {
	Save(ctx context.Context, state *session.State) error
}

// Config carries the scheduler's timing tunables. Zero values take defaults.
type Config struct {
	// ThrottleDelay is the base delay between a notification and its save.
	ThrottleDelay time.Duration

	// MaxThrottleDelay caps adaptive throttle growth.
	MaxThrottleDelay time.Duration

	// ThrottleFactor multiplies the delay when saves land within the
	// throttle window of each other.
	ThrottleFactor float64

	// RetryBaseDelay seeds exponential backoff after a failed save.
	RetryBaseDelay time.Duration

	// MaxRetryDelay caps backoff growth.
	MaxRetryDelay time.Duration

	// MaxRetries is how many times a failed save is retried before the
	// attempt is abandoned.
	MaxRetries int
}

func (c *Config) normalize() {
	if c.ThrottleDelay <= 0 {
		c.ThrottleDelay = time.Second
	}
	if c.MaxThrottleDelay <= 0 {
		c.MaxThrottleDelay = 10 * time.Second
	}
	if c.ThrottleFactor <= 1 {
		c.ThrottleFactor = 1.5
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
}

// Scheduler coalesces change notifications into throttled saves.
type Scheduler struct {
	saver    Saver
	snapshot func() *session.State
	cfg      Config
	bus      *events.Bus
	clock    Clock

	mu   sync.Mutex
	cond *sync.Cond

	// timer is the single pending-timer slot, shared by throttle waits and
	// retry backoffs. gen invalidates superseded callbacks so a timer that
	// fired during rescheduling cannot act.
	timer Timer
	gen   uint64

	inflight bool // a save is running right now
	rearm    bool // a notification arrived during an in-flight save
	attempt  int
	delay    time.Duration
	lastSave time.Time
	disposed bool
}

// New builds a scheduler on the system clock. snapshot is called at save
// time to capture the host's current state; it must return a state the
// scheduler may hand to the saver, or nil to skip the save.
func New(saver Saver, snapshot func() *session.State, cfg Config, bus *events.Bus) *Scheduler {
	return NewWithClock(saver, snapshot, cfg, bus, systemClock{})
}

// NewWithClock is New with an injected clock, for deterministic tests.
func NewWithClock(saver Saver, snapshot func() *session.State, cfg Config, bus *events.Bus, clock Clock) *Scheduler {
	cfg.normalize()
	s := &Scheduler{
		saver:    saver,
		snapshot: snapshot,
		cfg:      cfg,
		bus:      bus,
		clock:    clock,
		delay:    cfg.ThrottleDelay,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Notify records a state change in the given domain. Transient domains are
// ignored. A pending save timer is rescheduled rather than duplicated, and
// the throttle delay grows while saves land close together.
func (s *Scheduler) Notify(domain Domain) {
	if !SyncWorthy(domain) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	if s.inflight {
		s.rearm = true
		return
	}

	now := s.clock.Now()
	if !s.lastSave.IsZero() && now.Sub(s.lastSave) < s.cfg.ThrottleDelay {
		grown := time.Duration(float64(s.delay) * s.cfg.ThrottleFactor)
		if grown > s.cfg.MaxThrottleDelay {
			grown = s.cfg.MaxThrottleDelay
		}
		s.delay = grown
	}
	s.schedule(s.delay)
}

// schedule arms the pending-timer slot. Caller holds mu.
func (s *Scheduler) schedule(d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() { s.fire(gen) })
}

// fire runs when the pending timer (throttle or retry backoff) elapses.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.disposed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if s.inflight {
		s.rearm = true
		s.mu.Unlock()
		return
	}
	s.inflight = true
	s.mu.Unlock()
	s.save()
}

// save performs one save attempt and handles retry/abandon bookkeeping.
// Called with the inflight latch held.
func (s *Scheduler) save() {
	ctx := logging.WithComponent(context.Background(), "scheduler")
	state := s.snapshot()

	var err error
	if state != nil {
		err = s.saver.Save(ctx, state)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.attempt = 0
		s.finish()
		return
	}

	s.attempt++
	if s.attempt > s.cfg.MaxRetries {
		logging.Error(ctx, "save abandoned after retries",
			slog.Int("attempts", s.attempt),
			slog.Any("error", err),
		)
		s.bus.Publish(events.Event{
			Type:    events.SaveAbandoned,
			Attempt: s.attempt,
			Reason:  err.Error(),
		})
		s.attempt = 0
		s.finish()
		return
	}

	backoff := s.cfg.RetryBaseDelay << (s.attempt - 1)
	if backoff > s.cfg.MaxRetryDelay {
		backoff = s.cfg.MaxRetryDelay
	}
	logging.Warn(ctx, "save failed, retrying",
		slog.Int("attempt", s.attempt),
		slog.Duration("backoff", backoff),
		slog.Any("error", err),
	)
	s.bus.Publish(events.Event{
		Type:    events.SaveRetried,
		Attempt: s.attempt,
		Reason:  err.Error(),
	})

	s.inflight = false
	s.cond.Broadcast()
	if s.disposed {
		return
	}
	s.schedule(backoff)
}

// finish releases the latch after a terminal attempt. Caller holds mu.
func (s *Scheduler) finish() {
	s.inflight = false
	s.lastSave = s.clock.Now()
	s.delay = s.cfg.ThrottleDelay
	s.cond.Broadcast()
	if s.rearm && !s.disposed {
		s.rearm = false
		s.schedule(s.delay)
	}
}

// ForceSave bypasses the throttle and saves synchronously, cancelling any
// pending timer. For critical moments such as entering background; failures
// propagate to the caller instead of the retry loop.
func (s *Scheduler) ForceSave(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.rearm = false
	for s.inflight {
		s.cond.Wait()
	}
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.inflight = true
	s.mu.Unlock()

	state := s.snapshot()
	var err error
	if state != nil {
		err = s.saver.Save(ctx, state)
	}

	s.mu.Lock()
	s.inflight = false
	s.lastSave = s.clock.Now()
	s.attempt = 0
	s.delay = s.cfg.ThrottleDelay
	s.cond.Broadcast()
	if s.rearm && !s.disposed {
		s.rearm = false
		s.schedule(s.delay)
	}
	s.mu.Unlock()
	return err
}

// Dispose cancels any pending save timer and stops all future scheduling.
// It does not flush: callers that need guaranteed persistence call
// ForceSave first.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.cond.Broadcast()
}

// Package telemetry forwards engine diagnostic events to PostHog. It is
// strictly opt-in and fail-silent: a telemetry outage must never affect
// session persistence.
package telemetry

import (
	"context"
	"log/slog"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"

	"github.com/diego-gutierrez10/swipephoto-sub001/events"
	"github.com/diego-gutierrez10/swipephoto-sub001/logging"
)

// queueSize bounds how many events may pile up while the forwarder is
// busy. Overflow is dropped, never blocked on.
const queueSize = 64

// machineID is a package variable so tests can avoid touching real
// machine identifiers.
var machineID = func() (string, error) {
	return machineid.ProtectedID("swipephoto")
}

// client is the subset of posthog.Client the sink uses.
type client interface {
	Enqueue(posthog.Message) error
	Close() error
}

// Sink subscribes to an event bus and forwards each event to PostHog,
// keyed by an anonymous machine-bound distinct id.
type Sink struct {
	client     client
	distinctID string
	sub        *events.Subscription
	queue      chan events.Event
	stop       chan struct{}
	done       chan struct{}
}

// Options configures a Sink.
type Options struct {
	APIKey   string
	Endpoint string
}

// New connects a sink to bus. The returned sink runs until Close.
func New(ctx context.Context, bus *events.Bus, opts Options) (*Sink, error) {
	cfg := posthog.Config{}
	if opts.Endpoint != "" {
		cfg.Endpoint = opts.Endpoint
	}
	c, err := posthog.NewWithConfig(opts.APIKey, cfg)
	if err != nil {
		return nil, err
	}
	return newSink(ctx, bus, c), nil
}

func newSink(ctx context.Context, bus *events.Bus, c client) *Sink {
	id, err := machineID()
	if err != nil {
		// Still usable, just not correlated across runs.
		logging.Warn(logging.WithComponent(ctx, "telemetry"), "machine id unavailable, using anonymous distinct id",
			slog.Any("error", err))
		id = "anonymous"
	}

	s := &Sink{
		client:     c,
		distinctID: id,
		queue:      make(chan events.Event, queueSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	// Bus handlers must not block, so the handler only enqueues; the
	// forwarder goroutine talks to PostHog.
	s.sub = bus.Subscribe(func(ev events.Event) {
		select {
		case s.queue <- ev:
		default:
		}
	})
	go s.run(ctx)
	return s
}

func (s *Sink) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case ev := <-s.queue:
			if err := s.client.Enqueue(s.capture(ev)); err != nil {
				logging.Debug(logging.WithComponent(ctx, "telemetry"), "dropping telemetry event",
					slog.String("event", string(ev.Type)),
					slog.Any("error", err))
			}
		case <-s.stop:
			// Drain what is already queued before shutting down.
			for {
				select {
				case ev := <-s.queue:
					_ = s.client.Enqueue(s.capture(ev))
				default:
					return
				}
			}
		}
	}
}

// capture maps a bus event onto a PostHog capture. Session ids are
// intentionally omitted; only aggregate behavior is reported.
func (s *Sink) capture(ev events.Event) posthog.Capture {
	props := posthog.NewProperties()
	if ev.Bytes > 0 {
		props.Set("bytes", ev.Bytes)
	}
	if ev.Duration > 0 {
		props.Set("duration_ms", ev.Duration.Milliseconds())
	}
	if ev.FromVersion != "" {
		props.Set("from_version", ev.FromVersion)
	}
	if ev.ToVersion != "" {
		props.Set("to_version", ev.ToVersion)
	}
	if ev.Attempt > 0 {
		props.Set("attempt", ev.Attempt)
	}
	if ev.Reason != "" {
		props.Set("reason", ev.Reason)
	}
	return posthog.Capture{
		DistinctId: s.distinctID,
		Event:      string(ev.Type),
		Properties: props,
	}
}

// Close unsubscribes from the bus, drains queued events, and flushes the
// PostHog queue.
func (s *Sink) Close() error {
	s.sub.Close()
	close(s.stop)
	<-s.done
	return s.client.Close()
}

package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/posthog/posthog-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diego-gutierrez10/swipephoto-sub001/events"
)

type fakeClient struct {
	mu       sync.Mutex
	captures []posthog.Capture
	closed   bool
}

func (f *fakeClient) Enqueue(m posthog.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := m.(posthog.Capture)
	if !ok {
		return errors.New("unexpected message type")
	}
	f.captures = append(f.captures, c)
	return nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClient) snapshot() []posthog.Capture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]posthog.Capture(nil), f.captures...)
}

func withMachineID(t *testing.T, id string, err error) {
	t.Helper()
	prev := machineID
	machineID = func() (string, error) { return id, err }
	t.Cleanup(func() { machineID = prev })
}

func TestSinkForwardsEvents(t *testing.T) {
	withMachineID(t, "machine-1", nil)

	bus := events.NewBus()
	fc := &fakeClient{}
	sink := newSink(context.Background(), bus, fc)

	bus.Publish(events.Event{
		Type:        events.SessionMigrated,
		FromVersion: "1.0.0",
		ToVersion:   "1.2.0",
		Duration:    3 * time.Millisecond,
	})
	require.NoError(t, sink.Close())

	captures := fc.snapshot()
	require.Len(t, captures, 1)
	assert.Equal(t, "session_migrated", captures[0].Event)
	assert.Equal(t, "machine-1", captures[0].DistinctId)
	assert.Equal(t, "1.0.0", captures[0].Properties["from_version"])
	assert.Equal(t, "1.2.0", captures[0].Properties["to_version"])
	assert.True(t, fc.closed)
}

func TestSinkAnonymousWhenMachineIDUnavailable(t *testing.T) {
	withMachineID(t, "", errors.New("no machine id"))

	bus := events.NewBus()
	fc := &fakeClient{}
	sink := newSink(context.Background(), bus, fc)

	bus.Publish(events.Event{Type: events.SessionSaved, Bytes: 512})
	require.NoError(t, sink.Close())

	captures := fc.snapshot()
	require.Len(t, captures, 1)
	assert.Equal(t, "anonymous", captures[0].DistinctId)
}

func TestSinkIgnoresEventsAfterClose(t *testing.T) {
	withMachineID(t, "machine-1", nil)

	bus := events.NewBus()
	fc := &fakeClient{}
	sink := newSink(context.Background(), bus, fc)
	require.NoError(t, sink.Close())

	bus.Publish(events.Event{Type: events.SessionSaved})
	assert.Empty(t, fc.snapshot())
}

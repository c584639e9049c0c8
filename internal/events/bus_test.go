package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SynchronousDelivery(t *testing.T) {
	bus := NewBus()

	var received []Event
	bus.Subscribe(SubscriberFunc(func(e Event) {
		received = append(received, e)
	}))

	bus.Publish(EventJobStarted, map[string]interface{}{"job_id": "job-1"})

	// Delivery is synchronous, so the event is visible immediately.
	require.Len(t, received, 1)
	assert.Equal(t, EventJobStarted, received[0].Type)
	assert.Equal(t, "job-1", received[0].Data["job_id"])
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestBus_RegistrationOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.Subscribe(SubscriberFunc(func(Event) { order = append(order, "first") }))
	bus.Subscribe(SubscriberFunc(func(Event) { order = append(order, "second") }))
	bus.Subscribe(SubscriberFunc(func(Event) { order = append(order, "third") }))

	bus.Publish(EventJobDiscovered, nil)

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBus_PanickingSubscriberIsIsolated(t *testing.T) {
	bus := NewBus()

	var delivered int
	bus.Subscribe(SubscriberFunc(func(Event) { panic("bad subscriber") }))
	bus.Subscribe(SubscriberFunc(func(Event) { delivered++ }))

	bus.Publish(EventJobFinished, nil)
	bus.Publish(EventJobFinished, nil)

	assert.Equal(t, 2, delivered)
	assert.Equal(t, 2, bus.Dropped())
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := NewBus()
	// Must not panic or block.
	bus.Publish(EventWatchUnexpected, map[string]interface{}{"op": "unknown"})
}

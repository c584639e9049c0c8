// Package events provides the in-process lifecycle notification fan-out.
package events

import (
	"sync"
	"time"
)

// EventType represents the kind of lifecycle event being published.
type EventType string

const (
	// EventJobDiscovered is published when discovery surfaces a candidate filename.
	EventJobDiscovered EventType = "job_discovered"
	// EventClaimMissed is published when a claim loses the benign race.
	EventClaimMissed EventType = "claim_missed"
	// EventJobStarted is published when a claimed job begins executing.
	EventJobStarted EventType = "job_started"
	// EventJobFinished is published when a job resolves to the finished state.
	EventJobFinished EventType = "job_finished"
	// EventJobFailed is published when a job resolves to the failed state.
	EventJobFailed EventType = "job_failed"
	// EventWatchUnexpected is published when the watcher yields an
	// unrecognized event and discovery shuts down.
	EventWatchUnexpected EventType = "watch_unexpected"
)

// Event represents a single lifecycle notification.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]interface{}
}

// Subscriber receives events. Notify is called synchronously on the
// publishing goroutine; slow subscribers slow the publisher.
type Subscriber interface {
	Notify(Event)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(Event)

func (f SubscriberFunc) Notify(e Event) { f(e) }

// Bus delivers every published event to all subscribers in registration
// order, synchronously and unbuffered. A panicking subscriber is isolated:
// delivery continues with the remaining subscribers. The bus carries
// observability only and never affects control flow.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	dropped     int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe appends a subscriber. Delivery order follows registration order.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish sends an event to every subscriber in order.
func (b *Bus) Publish(eventType EventType, data map[string]interface{}) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	for _, sub := range subs {
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub Subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.dropped++
			b.mu.Unlock()
		}
	}()
	sub.Notify(event)
}

// Dropped returns how many deliveries were lost to panicking subscribers.
func (b *Bus) Dropped() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

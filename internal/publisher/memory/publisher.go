// Package memory provides an in-process snapshot event publisher. It backs
// deployments without Pub/Sub credentials as well as tests; events are
// retained in publish order for inspection.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Event is one recorded snapshot event.
type Event struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher records events instead of sending them anywhere.
type Publisher struct {
	mu     sync.RWMutex
	nextID int
	events []Event
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns its generated ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	event := Event{
		ID:      fmt.Sprintf("mem-%d", p.nextID),
		Topic:   topic,
		Payload: payload,
	}
	p.events = append(p.events, event)
	return event.ID, nil
}

// Events returns a copy of the recorded events in publish order.
func (p *Publisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Close discards nothing; it exists so the app can shut every publisher
// down uniformly.
func (p *Publisher) Close() error { return nil }

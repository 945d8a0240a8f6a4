// Package events publishes domain events after the transaction that produced
// them has committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Type names an event and doubles as its routing key.
type Type string

const (
	BookingCreated    Type = "booking.created"
	BookingDecided    Type = "booking.decided"
	BookingCancelled  Type = "booking.cancelled"
	BookingCompleted  Type = "booking.completed"
	WaitlistEnqueued  Type = "waitlist.enqueued"
	WaitlistPromoted  Type = "waitlist.promoted"
	WaitlistWithdrawn Type = "waitlist.withdrawn"
)

// Event is the envelope written to the broker.
type Event struct {
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// New marshals payload into an event envelope.
func New(t Type, at time.Time, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload failed: %w", t, err)
	}
	return Event{Type: t, OccurredAt: at.UTC(), Payload: body}, nil
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types lists the types of the recorded events in publish order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

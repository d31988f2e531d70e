// Package notify is the boundary for status-change communications. The engine
// fires events here after persistence; delivery is best-effort and never rolls
// back a committed transition.
package notify

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// EventType labels what happened to a declaration.
type EventType string

const (
	EventReceived             EventType = "received"
	EventProviderAssigned     EventType = "provider_assigned"
	EventAppointmentScheduled EventType = "appointment_scheduled"
	EventQuoteReady           EventType = "quote_ready"
	EventInRepair             EventType = "in_repair"
	EventResolved             EventType = "resolved"
	EventCancelled            EventType = "cancelled"
)

// Recipient identifies one stakeholder to notify.
type Recipient struct {
	Role  string `json:"role"` // reporter, provider, admin
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Event is the payload handed to downstream dispatchers (mailers, SMS, push).
type Event struct {
	Type          EventType         `json:"type"`
	DeclarationID string            `json:"declaration_id"`
	Recipients    []Recipient       `json:"recipients"`
	Payload       map[string]string `json:"payload,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// Notifier dispatches one event. Implementations must honor ctx cancellation;
// the engine bounds each call with a timeout.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// Fanout dispatches an event to several sinks in parallel and fails if any
// sink fails. Used to pair the Kafka stream with the local log sink.
type Fanout []Notifier

func (f Fanout) Send(ctx context.Context, event Event) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range f {
		g.Go(func() error {
			return sink.Send(ctx, event)
		})
	}
	return g.Wait()
}

package gadget

import (
	"context"
	"time"
)

// EventType names a lifecycle change.
type EventType string

// Lifecycle event types.
const (
	EventCreated        EventType = "gadget.created"
	EventUpdated        EventType = "gadget.updated"
	EventDecommissioned EventType = "gadget.decommissioned"
	EventDestroyed      EventType = "gadget.destroyed"
)

// Event describes a committed change to a gadget.
type Event struct {
	Type     EventType `json:"type"`
	GadgetID string    `json:"gadgetId"`
	Gadget   *Gadget   `json:"gadget"`

	// PreviousStatus is the status before the change. Empty for creation.
	PreviousStatus Status `json:"previousStatus,omitempty"`

	// ActorID is the authenticated user that made the change.
	ActorID string    `json:"actorId,omitempty"`
	At      time.Time `json:"at"`
}

// StatusChanged reports whether the event moved the gadget to a new status.
func (e Event) StatusChanged() bool {
	return e.Gadget != nil && e.PreviousStatus != e.Gadget.Status
}

// EventSink receives lifecycle events after they are persisted. Publish
// must not block for long; failures are the sink's to log.
type EventSink interface {
	Publish(ctx context.Context, e Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, e Event)

// Publish calls f.
func (f EventSinkFunc) Publish(ctx context.Context, e Event) {
	f(ctx, e)
}

// Sinks fans an event out to every sink in order.
type Sinks []EventSink

// Publish delivers e to each sink.
func (s Sinks) Publish(ctx context.Context, e Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Publish(ctx, e)
		}
	}
}

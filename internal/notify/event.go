package notify

import (
	"context"
	"errors"
	"time"
)

// EventType names a pipeline outcome
type EventType string

const (
	TypeIngested    EventType = "Ingested"
	TypeFailed      EventType = "Failed"
	TypeQuarantined EventType = "Quarantined"
)

// ErrInvalidInput indicates an event or filter that cannot be stored.
var ErrInvalidInput = errors.New("invalid event input")

// Event is a structured pipeline event forwarded to external collaborators
type Event struct {
	EventID      string    `json:"event_id"`
	Type         EventType `json:"type"`
	SimulationID string    `json:"id"`
	Detail       string    `json:"detail,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ListOptions provides filtering options for listing stored events.
type ListOptions struct {
	SimulationID string
	Type         *EventType
	Limit        int
	Offset       int
}

// Repository persists events so failure reasons outlive the process.
type Repository interface {
	Log(ctx context.Context, event *Event) error
	List(ctx context.Context, opts ListOptions) ([]Event, error)
}

// Sink delivers events to one external collaborator.
type Sink interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

// Notifier accepts events without blocking the caller.
type Notifier interface {
	Notify(event Event)
}

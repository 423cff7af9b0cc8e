package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultSendTimeout = 5 * time.Second

// Dispatcher fans events out to sinks on a background goroutine. Delivery is
// best-effort: a full buffer drops the event and sink errors are only logged.
type Dispatcher struct {
	sinks       []Sink
	events      chan Event
	logger      *slog.Logger
	sendTimeout time.Duration

	mu      sync.RWMutex
	started bool
	closed  bool
	done    chan struct{}
}

// NewDispatcher creates a dispatcher with a bounded buffer.
func NewDispatcher(logger *slog.Logger, bufferSize int, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Dispatcher{
		sinks:       sinks,
		events:      make(chan Event, bufferSize),
		logger:      logger,
		sendTimeout: defaultSendTimeout,
		done:        make(chan struct{}),
	}
}

// Start runs the delivery loop until Close.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	go func() {
		defer close(d.done)
		for event := range d.events {
			d.deliver(event)
		}
	}()
}

// Notify enqueues an event without blocking.
func (d *Dispatcher) Notify(event Event) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notifier closed, dropping event", "type", event.Type, "id", event.SimulationID)
		return
	}
	select {
	case d.events <- event:
	default:
		d.logger.Warn("notifier buffer full, dropping event", "type", event.Type, "id", event.SimulationID)
	}
}

// Close stops accepting events and waits for buffered ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	started := d.started
	d.mu.Unlock()
	if started {
		<-d.done
	}
}

func (d *Dispatcher) deliver(event Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		if err := sink.Send(ctx, event); err != nil {
			d.logger.Warn("event delivery failed", "sink", sink.Name(), "type", event.Type, "id", event.SimulationID, "error", err)
		}
		cancel()
	}
}

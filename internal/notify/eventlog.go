package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventLog reads and writes the persisted event history.
type EventLog struct {
	repo   Repository
	logger *slog.Logger
}

// NewEventLog creates a new event log.
func NewEventLog(repo Repository, logger *slog.Logger) *EventLog {
	return &EventLog{repo: repo, logger: logger}
}

// Record stores an event, filling the id and timestamp if missing.
func (l *EventLog) Record(ctx context.Context, event *Event) error {
	if event == nil || event.SimulationID == "" || event.Type == "" {
		return ErrInvalidInput
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := l.repo.Log(ctx, event); err != nil {
		return fmt.Errorf("logging event: %w", err)
	}
	return nil
}

// Recent lists stored events, newest first.
func (l *EventLog) Recent(ctx context.Context, opts ListOptions) ([]Event, error) {
	return l.repo.List(ctx, opts)
}

// StoreSink writes events into the event log.
type StoreSink struct {
	log *EventLog
}

// NewStoreSink creates a sink backed by the event log.
func NewStoreSink(log *EventLog) *StoreSink {
	return &StoreSink{log: log}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Send(ctx context.Context, event Event) error {
	return s.log.Record(ctx, &event)
}

// LogSink writes events to the structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs every event.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(ctx context.Context, event Event) error {
	level := slog.LevelInfo
	if event.Type != TypeIngested {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "pipeline event",
		"type", event.Type,
		"id", event.SimulationID,
		"detail", event.Detail,
		"event_id", event.EventID,
	)
	return nil
}

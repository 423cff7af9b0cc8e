package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ganot/simcatalog/internal/notify"
)

// EventRepository implements notify.Repository for SQLite
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Log inserts a new event
func (r *EventRepository) Log(ctx context.Context, event *notify.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO events (id, type, simulation_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.Type,
		event.SimulationID,
		nullString(event.Detail),
		event.Timestamp.UTC(),
	)
	if err != nil {
		return storageErr("failed to log event", err)
	}
	return nil
}

// List returns events matching the given filters, newest first
func (r *EventRepository) List(ctx context.Context, opts notify.ListOptions) ([]notify.Event, error) {
	query := `SELECT id, type, simulation_id, detail, created_at FROM events`

	args := []interface{}{}
	conditions := []string{}

	if opts.SimulationID != "" {
		conditions = append(conditions, "simulation_id = ?")
		args = append(args, opts.SimulationID)
	}
	if opts.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, *opts.Type)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("failed to list events", err)
	}
	defer rows.Close()

	events := []notify.Event{}
	for rows.Next() {
		var event notify.Event
		var detail sql.NullString
		if err := rows.Scan(
			&event.EventID,
			&event.Type,
			&event.SimulationID,
			&detail,
			&event.Timestamp,
		); err != nil {
			return nil, storageErr("failed to scan event", err)
		}
		event.Detail = detail.String
		event.Timestamp = event.Timestamp.UTC()
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("error iterating event rows", err)
	}

	return events, nil
}

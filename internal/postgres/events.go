package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ganot/simcatalog/internal/notify"
)

// EventRepository implements notify.Repository for PostgreSQL
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Log(ctx context.Context, event *notify.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, type, simulation_id, detail, created_at) VALUES ($1, $2, $3, $4, $5)`,
		event.EventID, string(event.Type), event.SimulationID, nullString(event.Detail), event.Timestamp.UTC())
	if err != nil {
		return storageErr("log event", err)
	}
	return nil
}

func (r *EventRepository) List(ctx context.Context, opts notify.ListOptions) ([]notify.Event, error) {
	var (
		conditions []string
		args       []any
	)
	if opts.SimulationID != "" {
		args = append(args, opts.SimulationID)
		conditions = append(conditions, fmt.Sprintf("simulation_id = $%d", len(args)))
	}
	if opts.Type != nil {
		args = append(args, string(*opts.Type))
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}

	query := `SELECT id, type, simulation_id, detail, created_at FROM events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list events", err)
	}
	defer rows.Close()

	events := []notify.Event{}
	for rows.Next() {
		var (
			event  notify.Event
			typ    string
			detail sql.NullString
		)
		if err := rows.Scan(&event.EventID, &typ, &event.SimulationID, &detail, &event.Timestamp); err != nil {
			return nil, storageErr("scan event", err)
		}
		event.Type = notify.EventType(typ)
		event.Detail = detail.String
		event.Timestamp = event.Timestamp.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate events", err)
	}
	return events, nil
}

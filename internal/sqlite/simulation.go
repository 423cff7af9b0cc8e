package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ganot/simcatalog/internal/domain/simulation"
	"github.com/ganot/simcatalog/internal/repository"
)

// SimulationRepository implements simulation.Repository for SQLite
type SimulationRepository struct {
	db *DB
}

// NewSimulationRepository creates a new SimulationRepository
func NewSimulationRepository(db *DB) *SimulationRepository {
	return &SimulationRepository{db: db}
}

const simulationColumns = `
	id, name, source_path, dataset_path, metadata_path, quarantine_path,
	status, variables, time_start, time_end, row_count, attempts,
	error_detail, last_error, created_at, converted_at, updated_at`

// Create inserts a new simulation record
func (r *SimulationRepository) Create(ctx context.Context, sim *simulation.Simulation) error {
	variables, err := json.Marshal(nonNilVariables(sim.Variables))
	if err != nil {
		return fmt.Errorf("failed to encode variables: %w", err)
	}

	query := `
		INSERT INTO simulations (
			id, name, source_path, status, variables, attempts, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		sim.ID,
		sim.Name,
		sim.SourcePath,
		sim.Status,
		string(variables),
		sim.Attempts,
		sim.CreatedAt.UTC(),
		sim.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return storageErr("failed to create simulation", err)
	}
	return nil
}

// Get retrieves a simulation by ID
func (r *SimulationRepository) Get(ctx context.Context, id string) (*simulation.Simulation, error) {
	query := `SELECT` + simulationColumns + ` FROM simulations WHERE id = ?`
	sim, err := scanSimulation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, storageErr("failed to get simulation", err)
	}
	return sim, nil
}

// GetBySource retrieves the most recent simulation registered for a source path
func (r *SimulationRepository) GetBySource(ctx context.Context, sourcePath string) (*simulation.Simulation, error) {
	query := `SELECT` + simulationColumns + `
		FROM simulations WHERE source_path = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`
	sim, err := scanSimulation(r.db.QueryRowContext(ctx, query, sourcePath))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, storageErr("failed to get simulation by source", err)
	}
	return sim, nil
}

// List returns simulations matching the given filters, newest first
func (r *SimulationRepository) List(ctx context.Context, opts simulation.ListOptions) ([]simulation.Simulation, error) {
	query := `SELECT` + simulationColumns + ` FROM simulations`

	args := []interface{}{}
	conditions := []string{}

	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if opts.CreatedFrom != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.CreatedFrom.UTC())
	}
	if opts.CreatedTo != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, opts.CreatedTo.UTC())
	}
	if opts.NamePattern != "" {
		conditions = append(conditions, "name LIKE ?")
		args = append(args, "%"+opts.NamePattern+"%")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC"

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
		return nil, storageErr("failed to list simulations", err)
	}
	defer rows.Close()

	sims := []simulation.Simulation{}
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, storageErr("failed to scan simulation", err)
		}
		sims = append(sims, *sim)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("error iterating simulation rows", err)
	}
	return sims, nil
}

// Transition changes status with compare-and-swap semantics. The whole
// change is one UPDATE, so a failure leaves the previous row untouched.
func (r *SimulationRepository) Transition(ctx context.Context, id string, from, to simulation.Status, detail simulation.TransitionDetail, at time.Time) error {
	args, err := transitionArgs(to, detail, at)
	if err != nil {
		return err
	}

	query := `
		UPDATE simulations
		SET status = ?,
		    error_detail = CASE WHEN ? THEN COALESCE(?, error_detail) ELSE NULL END,
		    quarantine_path = COALESCE(?, quarantine_path),
		    dataset_path = COALESCE(?, dataset_path),
		    metadata_path = COALESCE(?, metadata_path),
		    variables = COALESCE(?, variables),
		    time_start = COALESCE(?, time_start),
		    time_end = COALESCE(?, time_end),
		    row_count = COALESCE(?, row_count),
		    converted_at = COALESCE(?, converted_at),
		    updated_at = ?
		WHERE id = ? AND status = ?
	`
	args = append(args, id, from)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storageErr("failed to transition simulation", err)
	}
	return r.checkAffected(ctx, result, id)
}

// transitionArgs lays out the SET arguments of Transition in order.
func transitionArgs(to simulation.Status, detail simulation.TransitionDetail, at time.Time) ([]interface{}, error) {
	keepsError := to == simulation.StatusFailed || to == simulation.StatusQuarantined
	args := []interface{}{
		to,
		keepsError,
		nullString(detail.ErrorDetail),
		nullString(detail.QuarantinePath),
	}

	if ds := detail.Dataset; ds != nil {
		variables, err := json.Marshal(nonNilVariables(ds.Variables))
		if err != nil {
			return nil, fmt.Errorf("failed to encode variables: %w", err)
		}
		args = append(args,
			ds.DatasetPath,
			ds.MetadataPath,
			string(variables),
			ds.TimeStart,
			ds.TimeEnd,
			ds.RowCount,
			ds.ConvertedAt.UTC(),
		)
	} else {
		args = append(args, nil, nil, nil, nil, nil, nil, nil)
	}
	return append(args, at.UTC()), nil
}

// UpdateAttempts records the attempt count and the last transient error
func (r *SimulationRepository) UpdateAttempts(ctx context.Context, id string, attempts int, detail string, at time.Time) error {
	query := `UPDATE simulations SET attempts = ?, last_error = COALESCE(?, last_error), updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, attempts, nullString(detail), at.UTC(), id)
	if err != nil {
		return storageErr("failed to update attempts", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storageErr("failed to get rows affected", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RecoverInterrupted moves every CONVERTING record to FAILED and returns their ids
func (r *SimulationRepository) RecoverInterrupted(ctx context.Context, detail string, at time.Time) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("failed to begin recovery", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM simulations WHERE status = ? ORDER BY id`, simulation.StatusConverting)
	if err != nil {
		return nil, storageErr("failed to find interrupted simulations", err)
	}
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, storageErr("failed to scan simulation id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr("error iterating interrupted simulations", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE simulations SET status = ?, error_detail = ?, updated_at = ? WHERE status = ?`,
		simulation.StatusFailed, detail, at.UTC(), simulation.StatusConverting)
	if err != nil {
		return nil, storageErr("failed to mark interrupted simulations", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("failed to commit recovery", err)
	}
	return ids, nil
}

// CountByStatus returns the number of simulations per status
func (r *SimulationRepository) CountByStatus(ctx context.Context) (map[simulation.Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM simulations GROUP BY status`)
	if err != nil {
		return nil, storageErr("failed to count simulations", err)
	}
	defer rows.Close()

	counts := map[simulation.Status]int{}
	for rows.Next() {
		var status simulation.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storageErr("failed to scan count", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("error iterating counts", err)
	}
	return counts, nil
}

// Ping checks the connection
func (r *SimulationRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *SimulationRepository) checkAffected(ctx context.Context, result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageErr("failed to get rows affected", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM simulations WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return storageErr("failed to check simulation existence", err)
	}
	if !exists {
		return repository.ErrNotFound
	}

	// Record exists but is no longer in the expected status
	return repository.ErrConflict
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSimulation(row rowScanner) (*simulation.Simulation, error) {
	var sim simulation.Simulation
	var datasetPath, metadataPath, quarantinePath sql.NullString
	var errorDetail, lastError sql.NullString
	var variables string
	var timeStart, timeEnd sql.NullFloat64
	var convertedAt sql.NullTime

	if err := row.Scan(
		&sim.ID,
		&sim.Name,
		&sim.SourcePath,
		&datasetPath,
		&metadataPath,
		&quarantinePath,
		&sim.Status,
		&variables,
		&timeStart,
		&timeEnd,
		&sim.RowCount,
		&sim.Attempts,
		&errorDetail,
		&lastError,
		&sim.CreatedAt,
		&convertedAt,
		&sim.UpdatedAt,
	); err != nil {
		return nil, err
	}

	sim.DatasetPath = datasetPath.String
	sim.MetadataPath = metadataPath.String
	sim.QuarantinePath = quarantinePath.String
	if err := json.Unmarshal([]byte(variables), &sim.Variables); err != nil {
		return nil, fmt.Errorf("failed to decode variables: %w", err)
	}
	if timeStart.Valid {
		sim.TimeStart = &timeStart.Float64
	}
	if timeEnd.Valid {
		sim.TimeEnd = &timeEnd.Float64
	}
	if errorDetail.Valid {
		sim.ErrorDetail = &errorDetail.String
	}
	if lastError.Valid {
		sim.LastError = &lastError.String
	}
	if convertedAt.Valid {
		t := convertedAt.Time.UTC()
		sim.ConvertedAt = &t
	}
	sim.CreatedAt = sim.CreatedAt.UTC()
	sim.UpdatedAt = sim.UpdatedAt.UTC()
	return &sim, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nonNilVariables(vars []simulation.Variable) []simulation.Variable {
	if vars == nil {
		return []simulation.Variable{}
	}
	return vars
}

package postgres

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

// SimulationRepository implements simulation.Repository for PostgreSQL
type SimulationRepository struct {
	db *sql.DB
}

func NewSimulationRepository(db *sql.DB) *SimulationRepository {
	return &SimulationRepository{db: db}
}

const simulationColumns = `
	id, name, source_path, dataset_path, metadata_path, quarantine_path,
	status, variables, time_start, time_end, row_count, attempts,
	error_detail, last_error, created_at, converted_at, updated_at`

func (r *SimulationRepository) Create(ctx context.Context, sim *simulation.Simulation) error {
	variables, err := json.Marshal(nonNilVariables(sim.Variables))
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO simulations (id, name, source_path, status, variables, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sim.ID, sim.Name, sim.SourcePath, string(sim.Status), string(variables), sim.Attempts,
		sim.CreatedAt.UTC(), sim.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return storageErr("create simulation", err)
	}
	return nil
}

func (r *SimulationRepository) Get(ctx context.Context, id string) (*simulation.Simulation, error) {
	sim, err := scanSimulation(r.db.QueryRowContext(ctx,
		`SELECT`+simulationColumns+` FROM simulations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, storageErr("get simulation", err)
	}
	return sim, nil
}

func (r *SimulationRepository) GetBySource(ctx context.Context, sourcePath string) (*simulation.Simulation, error) {
	sim, err := scanSimulation(r.db.QueryRowContext(ctx,
		`SELECT`+simulationColumns+` FROM simulations WHERE source_path = $1
		 ORDER BY created_at DESC, id DESC LIMIT 1`, sourcePath))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, storageErr("get simulation by source", err)
	}
	return sim, nil
}

func (r *SimulationRepository) List(ctx context.Context, opts simulation.ListOptions) ([]simulation.Simulation, error) {
	query, args := buildListQuery(opts)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list simulations", err)
	}
	defer rows.Close()

	sims := []simulation.Simulation{}
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, storageErr("scan simulation", err)
		}
		sims = append(sims, *sim)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate simulations", err)
	}
	return sims, nil
}

func buildListQuery(opts simulation.ListOptions) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(opts.Statuses) > 0 {
		statuses := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			statuses[i] = arg(string(st))
		}
		conditions = append(conditions, "status IN ("+strings.Join(statuses, ", ")+")")
	}
	if opts.CreatedFrom != nil {
		conditions = append(conditions, "created_at >= "+arg(opts.CreatedFrom.UTC()))
	}
	if opts.CreatedTo != nil {
		conditions = append(conditions, "created_at <= "+arg(opts.CreatedTo.UTC()))
	}
	if opts.NamePattern != "" {
		conditions = append(conditions, "name ILIKE "+arg("%"+opts.NamePattern+"%"))
	}

	query := `SELECT` + simulationColumns + ` FROM simulations`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT " + arg(opts.Limit)
	}
	if opts.Offset > 0 {
		query += " OFFSET " + arg(opts.Offset)
	}
	return query, args
}

func (r *SimulationRepository) Transition(ctx context.Context, id string, from, to simulation.Status, detail simulation.TransitionDetail, at time.Time) error {
	keepsError := to == simulation.StatusFailed || to == simulation.StatusQuarantined
	args := []any{string(to), keepsError, nullString(detail.ErrorDetail), nullString(detail.QuarantinePath)}
	if ds := detail.Dataset; ds != nil {
		variables, err := json.Marshal(nonNilVariables(ds.Variables))
		if err != nil {
			return fmt.Errorf("encode variables: %w", err)
		}
		args = append(args, ds.DatasetPath, ds.MetadataPath, string(variables),
			ds.TimeStart, ds.TimeEnd, ds.RowCount, ds.ConvertedAt.UTC())
	} else {
		args = append(args, nil, nil, nil, nil, nil, nil, nil)
	}
	args = append(args, at.UTC(), id, string(from))

	result, err := r.db.ExecContext(ctx, `
		UPDATE simulations
		SET status = $1,
		    error_detail = CASE WHEN $2::boolean THEN COALESCE($3::text, error_detail) ELSE NULL END,
		    quarantine_path = COALESCE($4::text, quarantine_path),
		    dataset_path = COALESCE($5::text, dataset_path),
		    metadata_path = COALESCE($6::text, metadata_path),
		    variables = COALESCE($7::jsonb, variables),
		    time_start = COALESCE($8::double precision, time_start),
		    time_end = COALESCE($9::double precision, time_end),
		    row_count = COALESCE($10::bigint, row_count),
		    converted_at = COALESCE($11::timestamptz, converted_at),
		    updated_at = $12
		WHERE id = $13 AND status = $14`, args...)
	if err != nil {
		return storageErr("transition simulation", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM simulations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return storageErr("check simulation existence", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

func (r *SimulationRepository) UpdateAttempts(ctx context.Context, id string, attempts int, detail string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE simulations SET attempts = $1, last_error = COALESCE($2::text, last_error), updated_at = $3 WHERE id = $4`,
		attempts, nullString(detail), at.UTC(), id)
	if err != nil {
		return storageErr("update attempts", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *SimulationRepository) RecoverInterrupted(ctx context.Context, detail string, at time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE simulations SET status = $1, error_detail = $2, updated_at = $3
		WHERE status = $4
		RETURNING id`,
		string(simulation.StatusFailed), detail, at.UTC(), string(simulation.StatusConverting))
	if err != nil {
		return nil, storageErr("recover interrupted", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scan simulation id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate recovered simulations", err)
	}
	return ids, nil
}

func (r *SimulationRepository) CountByStatus(ctx context.Context) (map[simulation.Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM simulations GROUP BY status`)
	if err != nil {
		return nil, storageErr("count simulations", err)
	}
	defer rows.Close()

	counts := map[simulation.Status]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storageErr("scan count", err)
		}
		counts[simulation.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate counts", err)
	}
	return counts, nil
}

func (r *SimulationRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSimulation(row rowScanner) (*simulation.Simulation, error) {
	var (
		sim                                   simulation.Simulation
		status                                string
		datasetPath, metadataPath, quarantine sql.NullString
		errorDetail, lastError                sql.NullString
		variables                             []byte
		timeStart, timeEnd                    sql.NullFloat64
		convertedAt                           sql.NullTime
	)
	if err := row.Scan(
		&sim.ID, &sim.Name, &sim.SourcePath,
		&datasetPath, &metadataPath, &quarantine,
		&status, &variables, &timeStart, &timeEnd,
		&sim.RowCount, &sim.Attempts,
		&errorDetail, &lastError,
		&sim.CreatedAt, &convertedAt, &sim.UpdatedAt,
	); err != nil {
		return nil, err
	}

	sim.Status = simulation.Status(status)
	sim.DatasetPath = datasetPath.String
	sim.MetadataPath = metadataPath.String
	sim.QuarantinePath = quarantine.String
	if err := json.Unmarshal(variables, &sim.Variables); err != nil {
		return nil, fmt.Errorf("decode variables: %w", err)
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

func nullString(s string) any {
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

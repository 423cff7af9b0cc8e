// Package query answers read requests against READY simulations. It never
// mutates the catalog or the dataset store.
package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ganot/simcatalog/internal/dataset"
	"github.com/ganot/simcatalog/internal/domain/simulation"
)

// DefaultTimeout bounds a single query.
const DefaultTimeout = 10 * time.Second

// Catalog is the read side of the simulation service.
type Catalog interface {
	Get(ctx context.Context, id string) (*simulation.Simulation, error)
	List(ctx context.Context, opts simulation.ListOptions) ([]simulation.Simulation, error)
}

// Store loads converted datasets and their metadata.
type Store interface {
	Load(ctx context.Context, path string) (*dataset.Table, error)
	LoadMetadata(ctx context.Context, path string) (*dataset.Metadata, error)
}

// Engine is the stateless read path over the catalog and dataset store.
type Engine struct {
	catalog Catalog
	store   Store
	timeout time.Duration
	logger  *slog.Logger
}

// NewEngine creates a query engine. A non-positive timeout uses DefaultTimeout.
func NewEngine(catalog Catalog, store Store, timeout time.Duration, logger *slog.Logger) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{catalog: catalog, store: store, timeout: timeout, logger: logger}
}

// ListRequest filters ListSimulations.
type ListRequest struct {
	Statuses    []simulation.Status
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	// Name matches simulations whose name contains it, case-insensitively.
	Name   string
	Limit  int
	Offset int
}

// SimulationSummary is one entry of ListSimulations.
type SimulationSummary struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Created   time.Time         `json:"created"`
	Status    simulation.Status `json:"status"`
	Variables []string          `json:"variables"`
	RowCount  int64             `json:"row_count"`
	Duration  *float64          `json:"duration,omitempty"`
}

// ListSimulations lists cataloged simulations of any status, newest first.
func (e *Engine) ListSimulations(ctx context.Context, req ListRequest) ([]SimulationSummary, error) {
	if req.Limit < 0 || req.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidParameter)
	}
	if req.CreatedFrom != nil && req.CreatedTo != nil && req.CreatedFrom.After(*req.CreatedTo) {
		return nil, fmt.Errorf("%w: created_from is after created_to", ErrInvalidParameter)
	}

	var out []SimulationSummary
	err := e.run(ctx, func(ctx context.Context) error {
		sims, err := e.catalog.List(ctx, simulation.ListOptions{
			Statuses:    req.Statuses,
			CreatedFrom: req.CreatedFrom,
			CreatedTo:   req.CreatedTo,
			NamePattern: req.Name,
			Limit:       req.Limit,
			Offset:      req.Offset,
		})
		if err != nil {
			return e.catalogErr(err)
		}
		out = make([]SimulationSummary, 0, len(sims))
		for i := range sims {
			out = append(out, summarize(&sims[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func summarize(sim *simulation.Simulation) SimulationSummary {
	s := SimulationSummary{
		ID:        sim.ID,
		Name:      sim.Name,
		Created:   sim.CreatedAt,
		Status:    sim.Status,
		Variables: sim.VariableNames(),
		RowCount:  sim.RowCount,
	}
	if sim.TimeStart != nil && sim.TimeEnd != nil {
		d := *sim.TimeEnd - *sim.TimeStart
		s.Duration = &d
	}
	return s
}

// GetRecord returns the catalog record of a simulation in any status, so
// failure details stay inspectable.
func (e *Engine) GetRecord(ctx context.Context, id string) (*simulation.Simulation, error) {
	var sim *simulation.Simulation
	err := e.run(ctx, func(ctx context.Context) error {
		var err error
		sim, err = e.catalog.Get(ctx, id)
		if err != nil {
			return e.catalogErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sim, nil
}

// GetVariables returns the declared variable names of a READY simulation.
func (e *Engine) GetVariables(ctx context.Context, id string) ([]string, error) {
	var names []string
	err := e.run(ctx, func(ctx context.Context) error {
		sim, err := e.ready(ctx, id)
		if err != nil {
			return err
		}
		names = sim.VariableNames()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// VariableStats is the precomputed summary of one variable.
type VariableStats struct {
	SimulationID string `json:"simulation_id"`
	Variable     string `json:"variable"`
	dataset.Stats
}

// GetVariableStats serves statistics from the metadata written at conversion.
func (e *Engine) GetVariableStats(ctx context.Context, id, variable string) (*VariableStats, error) {
	var out *VariableStats
	err := e.run(ctx, func(ctx context.Context) error {
		sim, err := e.ready(ctx, id)
		if err != nil {
			return err
		}
		if !sim.HasVariable(variable) {
			return fmt.Errorf("%w: unknown variable %q", ErrInvalidParameter, variable)
		}
		meta, err := e.store.LoadMetadata(ctx, sim.MetadataPath)
		if err != nil {
			return e.storeErr(ctx, err)
		}
		stats, ok := meta.Stats[variable]
		if !ok {
			return fmt.Errorf("%w: metadata has no stats for %q", ErrStorageFailure, variable)
		}
		out = &VariableStats{SimulationID: id, Variable: variable, Stats: stats}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OpenDataset opens the converted dataset file of a READY simulation. The
// caller closes it.
func (e *Engine) OpenDataset(ctx context.Context, id string) (*os.File, error) {
	var f *os.File
	err := e.run(ctx, func(ctx context.Context) error {
		sim, err := e.ready(ctx, id)
		if err != nil {
			return err
		}
		f, err = os.Open(sim.DatasetPath)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		return nil
	})
	if err != nil {
		if f != nil {
			f.Close()
		}
		return nil, err
	}
	return f, nil
}

// run executes fn under the query timeout. A query that overruns its budget
// returns ErrTimeout and nothing else.
func (e *Engine) run(ctx context.Context, fn func(ctx context.Context) error) error {
	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err := fn(qctx)
	if errors.Is(qctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// ready loads a simulation and requires it to be READY.
func (e *Engine) ready(ctx context.Context, id string) (*simulation.Simulation, error) {
	sim, err := e.catalog.Get(ctx, id)
	if err != nil {
		return nil, e.catalogErr(err)
	}
	if sim.Status != simulation.StatusReady {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotReady, id, sim.Status)
	}
	return sim, nil
}

func (e *Engine) catalogErr(err error) error {
	switch {
	case errors.Is(err, simulation.ErrSimulationNotFound):
		return ErrNotFound
	case errors.Is(err, simulation.ErrInvalidInput):
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	default:
		e.logger.Error("catalog read failed", "error", err)
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
}

func (e *Engine) storeErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	e.logger.Error("dataset read failed", "error", err)
	return fmt.Errorf("%w: %v", ErrStorageFailure, err)
}

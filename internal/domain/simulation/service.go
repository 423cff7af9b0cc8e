package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ganot/simcatalog/internal/repository"
)

// InterruptedDetail is recorded on conversions found in flight at startup.
const InterruptedDetail = "interrupted conversion: process stopped while converting"

// Service is the catalog: the only component allowed to change a record's status.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new catalog service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRequest describes a newly detected simulation.
type RegisterRequest struct {
	ID         string
	Name       string
	SourcePath string
}

// Register creates a PENDING record. When the id is already cataloged the
// existing record is returned with created=false.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Simulation, bool, error) {
	if err := ValidateRegisterInput(req); err != nil {
		return nil, false, err
	}

	now := s.now()
	sim := &Simulation{
		ID:         req.ID,
		Name:       req.Name,
		SourcePath: req.SourcePath,
		Status:     StatusPending,
		Variables:  []Variable{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.repo.Create(ctx, sim)
	if errors.Is(err, repository.ErrAlreadyExists) {
		existing, getErr := s.Get(ctx, req.ID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("creating simulation: %w", err)
	}

	s.logger.Debug("simulation registered", "id", sim.ID, "source", sim.SourcePath)
	return sim, true, nil
}

// Get returns a simulation by id.
func (s *Service) Get(ctx context.Context, id string) (*Simulation, error) {
	sim, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSimulationNotFound
		}
		return nil, fmt.Errorf("loading simulation: %w", err)
	}
	return sim, nil
}

// GetBySource returns the simulation registered for a source path.
func (s *Service) GetBySource(ctx context.Context, sourcePath string) (*Simulation, error) {
	sim, err := s.repo.GetBySource(ctx, sourcePath)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSimulationNotFound
		}
		return nil, fmt.Errorf("loading simulation by source: %w", err)
	}
	return sim, nil
}

// List returns simulations matching opts, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Simulation, error) {
	if opts.CreatedFrom != nil && opts.CreatedTo != nil && opts.CreatedFrom.After(*opts.CreatedTo) {
		return nil, ErrInvalidInput
	}
	sims, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing simulations: %w", err)
	}
	return sims, nil
}

// Transition moves a record from one status to another with compare-and-swap
// semantics. ErrConflict means the record was no longer in status from.
func (s *Service) Transition(ctx context.Context, id string, from, to Status, detail TransitionDetail) (*Simulation, error) {
	if err := ValidateTransition(from, to, detail); err != nil {
		return nil, err
	}

	if err := s.repo.Transition(ctx, id, from, to, detail, s.now()); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrSimulationNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrConflict
		default:
			return nil, fmt.Errorf("transitioning simulation: %w", err)
		}
	}

	s.logger.Info("simulation transitioned", "id", id, "from", from, "to", to)
	return s.Get(ctx, id)
}

// RecordAttempt persists the attempt counter and the last transient error.
func (s *Service) RecordAttempt(ctx context.Context, id string, attempts int, detail string) error {
	if attempts < 0 {
		return ErrInvalidInput
	}
	if err := s.repo.UpdateAttempts(ctx, id, attempts, detail, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSimulationNotFound
		}
		return fmt.Errorf("recording attempt: %w", err)
	}
	return nil
}

// RecoverInterrupted marks every CONVERTING record FAILED. It runs once at
// startup, before any worker could hold a conversion.
func (s *Service) RecoverInterrupted(ctx context.Context) ([]string, error) {
	ids, err := s.repo.RecoverInterrupted(ctx, InterruptedDetail, s.now())
	if err != nil {
		return nil, fmt.Errorf("recovering interrupted conversions: %w", err)
	}
	if len(ids) > 0 {
		s.logger.Warn("recovered interrupted conversions", "count", len(ids), "ids", ids)
	}
	return ids, nil
}

// Summary returns record counts per status.
func (s *Service) Summary(ctx context.Context) (map[Status]int, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting simulations: %w", err)
	}
	for _, st := range AllStatuses {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return counts, nil
}

// Ping checks that the catalog storage is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

package simulation_test

import (
	"context"
	"testing"

	"github.com/ganot/simcatalog/internal/domain/simulation"
	"github.com/ganot/simcatalog/internal/repository"
	"github.com/ganot/simcatalog/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSimulationService_Register_New(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.SimulationRepository{}
	repo.On("Create", ctx, mock.Anything).Return(nil)

	svc := simulation.NewService(repo, nil)
	sim, created, err := svc.Register(ctx, simulation.RegisterRequest{
		ID:         "run_20240101_120000",
		Name:       "run",
		SourcePath: "/in/run_20240101_120000.csv",
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, simulation.StatusPending, sim.Status)
	repo.AssertExpectations(t)
}

func TestSimulationService_Register_Existing(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.SimulationRepository{}
	existing := &simulation.Simulation{ID: "run_20240101_120000", Status: simulation.StatusReady}
	repo.On("Create", ctx, mock.Anything).Return(repository.ErrAlreadyExists)
	repo.On("Get", ctx, "run_20240101_120000").Return(existing, nil)

	svc := simulation.NewService(repo, nil)
	sim, created, err := svc.Register(ctx, simulation.RegisterRequest{
		ID:         "run_20240101_120000",
		Name:       "run",
		SourcePath: "/in/run_20240101_120000.csv",
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, simulation.StatusReady, sim.Status)
}

func TestSimulationService_Register_InvalidInput(t *testing.T) {
	svc := simulation.NewService(&mocks.SimulationRepository{}, nil)
	_, _, err := svc.Register(context.Background(), simulation.RegisterRequest{Name: "run"})
	require.ErrorIs(t, err, simulation.ErrInvalidInput)
}

func TestSimulationService_Transition_Conflict(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.SimulationRepository{}
	repo.On("Transition", ctx, "s1", simulation.StatusPending, simulation.StatusConverting, simulation.TransitionDetail{}, mock.Anything).
		Return(repository.ErrConflict)

	svc := simulation.NewService(repo, nil)
	_, err := svc.Transition(ctx, "s1", simulation.StatusPending, simulation.StatusConverting, simulation.TransitionDetail{})
	require.ErrorIs(t, err, simulation.ErrConflict)
}

func TestSimulationService_Transition_Invalid(t *testing.T) {
	svc := simulation.NewService(&mocks.SimulationRepository{}, nil)
	_, err := svc.Transition(context.Background(), "s1", simulation.StatusReady, simulation.StatusConverting, simulation.TransitionDetail{})
	require.ErrorIs(t, err, simulation.ErrInvalidTransition)
}

func TestSimulationService_Transition_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.SimulationRepository{}
	detail := simulation.TransitionDetail{ErrorDetail: "boom"}
	repo.On("Transition", ctx, "missing", simulation.StatusConverting, simulation.StatusFailed, detail, mock.Anything).
		Return(repository.ErrNotFound)

	svc := simulation.NewService(repo, nil)
	_, err := svc.Transition(ctx, "missing", simulation.StatusConverting, simulation.StatusFailed, detail)
	require.ErrorIs(t, err, simulation.ErrSimulationNotFound)
}

func TestSimulationService_Transition_StorageFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.SimulationRepository{}
	repo.On("Transition", ctx, "s1", simulation.StatusPending, simulation.StatusConverting, simulation.TransitionDetail{}, mock.Anything).
		Return(repository.ErrStorageFailure)

	svc := simulation.NewService(repo, nil)
	_, err := svc.Transition(ctx, "s1", simulation.StatusPending, simulation.StatusConverting, simulation.TransitionDetail{})
	require.ErrorIs(t, err, repository.ErrStorageFailure)
}

func TestSimulationService_Summary_FillsMissingStatuses(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.SimulationRepository{}
	repo.On("CountByStatus", ctx).Return(map[simulation.Status]int{simulation.StatusReady: 3}, nil)

	svc := simulation.NewService(repo, nil)
	counts, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, counts[simulation.StatusReady])
	require.Len(t, counts, len(simulation.AllStatuses))
}

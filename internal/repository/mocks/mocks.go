package mocks

import (
	"context"
	"time"

	"github.com/ganot/simcatalog/internal/domain/simulation"
	"github.com/ganot/simcatalog/internal/notify"
	"github.com/stretchr/testify/mock"
)

// SimulationRepository is a mock for simulation.Repository.
type SimulationRepository struct {
	mock.Mock
}

func (m *SimulationRepository) Create(ctx context.Context, sim *simulation.Simulation) error {
	args := m.Called(ctx, sim)
	return args.Error(0)
}

func (m *SimulationRepository) Get(ctx context.Context, id string) (*simulation.Simulation, error) {
	args := m.Called(ctx, id)
	if sim, ok := args.Get(0).(*simulation.Simulation); ok {
		return sim, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SimulationRepository) GetBySource(ctx context.Context, sourcePath string) (*simulation.Simulation, error) {
	args := m.Called(ctx, sourcePath)
	if sim, ok := args.Get(0).(*simulation.Simulation); ok {
		return sim, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SimulationRepository) List(ctx context.Context, opts simulation.ListOptions) ([]simulation.Simulation, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]simulation.Simulation); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SimulationRepository) Transition(ctx context.Context, id string, from, to simulation.Status, detail simulation.TransitionDetail, at time.Time) error {
	args := m.Called(ctx, id, from, to, detail, at)
	return args.Error(0)
}

func (m *SimulationRepository) UpdateAttempts(ctx context.Context, id string, attempts int, detail string, at time.Time) error {
	args := m.Called(ctx, id, attempts, detail, at)
	return args.Error(0)
}

func (m *SimulationRepository) RecoverInterrupted(ctx context.Context, detail string, at time.Time) ([]string, error) {
	args := m.Called(ctx, detail, at)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SimulationRepository) CountByStatus(ctx context.Context) (map[simulation.Status]int, error) {
	args := m.Called(ctx)
	if counts, ok := args.Get(0).(map[simulation.Status]int); ok {
		return counts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SimulationRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// EventRepository is a mock for notify.Repository.
type EventRepository struct {
	mock.Mock
}

func (m *EventRepository) Log(ctx context.Context, event *notify.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *EventRepository) List(ctx context.Context, opts notify.ListOptions) ([]notify.Event, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]notify.Event); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

package simulation

import (
	"context"
	"time"
)

// Repository provides durable storage for simulation records.
type Repository interface {
	Create(ctx context.Context, sim *Simulation) error
	Get(ctx context.Context, id string) (*Simulation, error)
	GetBySource(ctx context.Context, sourcePath string) (*Simulation, error)
	List(ctx context.Context, opts ListOptions) ([]Simulation, error)
	Transition(ctx context.Context, id string, from, to Status, detail TransitionDetail, at time.Time) error
	UpdateAttempts(ctx context.Context, id string, attempts int, detail string, at time.Time) error
	RecoverInterrupted(ctx context.Context, detail string, at time.Time) ([]string, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	Ping(ctx context.Context) error
}

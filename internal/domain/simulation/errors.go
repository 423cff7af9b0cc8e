package simulation

import "errors"

var (
	// ErrSimulationNotFound indicates the simulation doesn't exist.
	ErrSimulationNotFound = errors.New("simulation not found")
	// ErrConflict indicates the record's status changed under the caller.
	ErrConflict = errors.New("simulation status changed concurrently")
	// ErrInvalidTransition indicates a status change outside the lifecycle.
	ErrInvalidTransition = errors.New("invalid simulation status transition")
	// ErrInvalidInput indicates invalid input for catalog operations.
	ErrInvalidInput = errors.New("invalid simulation input")
)

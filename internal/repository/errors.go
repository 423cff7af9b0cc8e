package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a compare-and-swap precondition fails
	ErrConflict = errors.New("conflict: entity was modified concurrently")

	// ErrAlreadyExists is returned when creating an entity whose key is taken
	ErrAlreadyExists = errors.New("already exists")

	// ErrStorageFailure is returned when the durable store cannot complete an operation
	ErrStorageFailure = errors.New("storage failure")
)

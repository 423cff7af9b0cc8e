package sqlite

import (
	"fmt"
	"strings"

	"github.com/ganot/simcatalog/internal/repository"
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed")
}

// storageErr marks a driver failure so callers can tell it from domain errors.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, repository.ErrStorageFailure, err)
}

package simulation

import "time"

// ListOptions provides filtering options for listing simulations.
type ListOptions struct {
	Statuses    []Status
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	NamePattern string
	Limit       int
	Offset      int
}

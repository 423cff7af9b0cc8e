package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Spec selects a slice of one simulation's dataset.
type Spec struct {
	SimulationID string
	Variables    []string
	TimeStart    *float64
	TimeEnd      *float64
	SampleRate   *int
	Limit        *int
}

// Validate checks the filters that do not depend on the dataset.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.SimulationID) == "" {
		return fmt.Errorf("%w: simulation id is required", ErrInvalidParameter)
	}
	if s.TimeStart != nil && (math.IsNaN(*s.TimeStart) || math.IsInf(*s.TimeStart, 0)) {
		return fmt.Errorf("%w: time_start must be a finite number", ErrInvalidParameter)
	}
	if s.TimeEnd != nil && (math.IsNaN(*s.TimeEnd) || math.IsInf(*s.TimeEnd, 0)) {
		return fmt.Errorf("%w: time_end must be a finite number", ErrInvalidParameter)
	}
	if s.TimeStart != nil && s.TimeEnd != nil && *s.TimeStart > *s.TimeEnd {
		return fmt.Errorf("%w: time_start %g is after time_end %g", ErrInvalidParameter, *s.TimeStart, *s.TimeEnd)
	}
	if s.SampleRate != nil && *s.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate must be positive, got %d", ErrInvalidParameter, *s.SampleRate)
	}
	if s.Limit != nil && *s.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidParameter, *s.Limit)
	}
	for _, v := range s.Variables {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: empty variable name", ErrInvalidParameter)
		}
	}
	return nil
}

// ParseVariables splits a comma-separated variable list.
func ParseVariables(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// ParseFloat parses an optional float parameter.
func ParseFloat(name, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidParameter, name)
	}
	return &v, nil
}

// ParseInt parses an optional integer parameter.
func ParseInt(name, raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidParameter, name)
	}
	return &v, nil
}

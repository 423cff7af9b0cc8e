package simulation

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the processing state of a simulation
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusConverting  Status = "CONVERTING"
	StatusReady       Status = "READY"
	StatusFailed      Status = "FAILED"
	StatusQuarantined Status = "QUARANTINED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusConverting, StatusReady, StatusFailed, StatusQuarantined}

// ParseStatus accepts any casing of a known status.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllStatuses {
		if status == known {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

// Terminal reports whether a record in this status is never dispatched again.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusQuarantined
}

// KindFloat is the declared kind of every scalar time series column.
const KindFloat = "float64"

// Variable is a named column of a converted dataset
type Variable struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Simulation is the catalog entry for one simulation run
type Simulation struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	SourcePath     string     `json:"source_path"`
	DatasetPath    string     `json:"dataset_path,omitempty"`
	MetadataPath   string     `json:"metadata_path,omitempty"`
	QuarantinePath string     `json:"quarantine_path,omitempty"`
	Status         Status     `json:"status"`
	Variables      []Variable `json:"variables"`
	TimeStart      *float64   `json:"time_start,omitempty"`
	TimeEnd        *float64   `json:"time_end,omitempty"`
	RowCount       int64      `json:"row_count"`
	Attempts       int        `json:"attempts"`
	ErrorDetail    *string    `json:"error_detail,omitempty"`
	LastError      *string    `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ConvertedAt    *time.Time `json:"converted_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// VariableNames returns the declared variable names in column order.
func (s *Simulation) VariableNames() []string {
	names := make([]string, len(s.Variables))
	for i, v := range s.Variables {
		names[i] = v.Name
	}
	return names
}

// HasVariable reports whether name is a declared variable.
func (s *Simulation) HasVariable(name string) bool {
	for _, v := range s.Variables {
		if v.Name == name {
			return true
		}
	}
	return false
}

// DatasetInfo is attached to a record when it becomes READY.
type DatasetInfo struct {
	DatasetPath  string
	MetadataPath string
	Variables    []Variable
	TimeStart    float64
	TimeEnd      float64
	RowCount     int64
	ConvertedAt  time.Time
}

// TransitionDetail carries the fields written together with a status change.
type TransitionDetail struct {
	ErrorDetail    string
	QuarantinePath string
	Dataset        *DatasetInfo
}

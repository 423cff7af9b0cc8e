package simulation

import "strings"

var transitions = map[Status][]Status{
	StatusPending:    {StatusConverting},
	StatusConverting: {StatusReady, StatusFailed},
	// FAILED -> CONVERTING is the retry edge for records failed by crash recovery.
	StatusFailed: {StatusQuarantined, StatusConverting},
}

// ValidateTransition validates a requested status change.
func ValidateTransition(from, to Status, detail TransitionDetail) error {
	valid := false
	for _, next := range transitions[from] {
		if next == to {
			valid = true
			break
		}
	}
	if !valid {
		return ErrInvalidTransition
	}

	switch to {
	case StatusReady:
		if detail.Dataset == nil || strings.TrimSpace(detail.Dataset.DatasetPath) == "" {
			return ErrInvalidInput
		}
	case StatusFailed:
		if strings.TrimSpace(detail.ErrorDetail) == "" {
			return ErrInvalidInput
		}
	}
	return nil
}

// ValidateRegisterInput validates fields required to register a simulation.
func ValidateRegisterInput(req RegisterRequest) error {
	if strings.TrimSpace(req.ID) == "" {
		return ErrInvalidInput
	}
	if strings.TrimSpace(req.Name) == "" {
		return ErrInvalidInput
	}
	if strings.TrimSpace(req.SourcePath) == "" {
		return ErrInvalidInput
	}
	return nil
}

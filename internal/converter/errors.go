package converter

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnreadableSource means the file could not be read right now, usually
	// because it is locked or still being written. Callers may retry.
	ErrUnreadableSource = errors.New("unreadable source")
	// ErrCorruptFormat means the file was read but is not a valid result file.
	ErrCorruptFormat = errors.New("corrupt format")
	// ErrEmptyResult means the file holds no rows.
	ErrEmptyResult = errors.New("empty result")
	// ErrStorageFailure means the dataset could not be written. The source
	// is fine and must not be quarantined for it.
	ErrStorageFailure = errors.New("storage failure")
)

// FormatError is returned by readers that reject a file's content.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Unwrap classifies every format error as a corrupt format.
func (e *FormatError) Unwrap() error {
	return ErrCorruptFormat
}

// Transient reports whether a conversion error is worth retrying. Timeouts
// count as transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCorruptFormat) || errors.Is(err, ErrEmptyResult) {
		return false
	}
	return errors.Is(err, ErrUnreadableSource) || errors.Is(err, context.DeadlineExceeded)
}

func formatErr(path, format string, args ...any) error {
	return &FormatError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

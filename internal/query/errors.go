package query

import "errors"

var (
	ErrNotFound         = errors.New("simulation not found")
	ErrNotReady         = errors.New("simulation not ready")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrTimeout          = errors.New("query timed out")
	ErrStorageFailure   = errors.New("storage failure")
)

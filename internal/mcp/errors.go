package mcp

import (
	"fmt"

	"github.com/ganot/simcatalog/internal/transport"
)

// APIError is returned from tool handlers and rendered as a tool error.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
}

var recoveryHints = map[string]string{
	transport.CodeNotFound:         "Call list_simulations to find valid ids",
	transport.CodeNotReady:         "Only READY simulations have data; check status with list_simulations",
	transport.CodeInvalidParameter: "Call get_variables for valid names and check the time window",
	transport.CodeTimeout:          "Narrow the time window or raise sample_rate",
	transport.CodeStorageFailure:   "Retry later",
}

// MapError maps query errors to the same codes the HTTP API uses.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	_, apiErr := transport.MapError(err)
	return &APIError{
		Code:         apiErr.Code,
		Message:      apiErr.Message,
		RecoveryHint: recoveryHints[apiErr.Code],
	}
}

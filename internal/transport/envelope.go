package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ganot/simcatalog/internal/notify"
	"github.com/ganot/simcatalog/internal/query"
	"github.com/ganot/simcatalog/internal/repository"
)

// Error codes returned in the error envelope.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeNotReady         = "NOT_READY"
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeTimeout          = "TIMEOUT"
	CodeStorageFailure   = "STORAGE_FAILURE"
	CodeInternal         = "INTERNAL"
)

// APIError is the error half of the response envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// Response is the envelope every endpoint answers with. Exactly one of Data
// and Error is set.
type Response struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

// MapError maps a query or catalog error to an HTTP status and API error.
// Unknown errors become INTERNAL without leaking their text.
func MapError(err error) (int, *APIError) {
	switch {
	case errors.Is(err, query.ErrNotFound):
		return http.StatusNotFound, &APIError{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, query.ErrNotReady):
		return http.StatusConflict, &APIError{Code: CodeNotReady, Message: err.Error()}
	case errors.Is(err, query.ErrInvalidParameter), errors.Is(err, notify.ErrInvalidInput):
		return http.StatusBadRequest, &APIError{Code: CodeInvalidParameter, Message: err.Error()}
	case errors.Is(err, query.ErrTimeout):
		return http.StatusGatewayTimeout, &APIError{Code: CodeTimeout, Message: err.Error()}
	case errors.Is(err, query.ErrStorageFailure), errors.Is(err, repository.ErrStorageFailure):
		return http.StatusServiceUnavailable, &APIError{Code: CodeStorageFailure, Message: "storage unavailable"}
	default:
		return http.StatusInternalServerError, &APIError{Code: CodeInternal, Message: "internal error"}
	}
}

// WriteData writes a success envelope.
func WriteData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Data: data})
}

// WriteError writes the error envelope for err.
func WriteError(w http.ResponseWriter, err error) {
	status, apiErr := MapError(err)
	writeJSON(w, status, Response{Error: apiErr})
}

func writeJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

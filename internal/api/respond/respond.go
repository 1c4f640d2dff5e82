// Package respond centralizes JSON response writing and domain-error to
// HTTP status mapping for every handler in internal/api.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/taskflow/taskcore/internal/model"
)

// ErrorResponse is the standard error body every non-2xx response shares.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// WriteError writes a standardized error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    statusCode,
		Message: message,
	})
}

func WriteBadRequest(w http.ResponseWriter, message string) { WriteError(w, http.StatusBadRequest, message) }
func WriteNotFound(w http.ResponseWriter, message string)   { WriteError(w, http.StatusNotFound, message) }
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}
func WriteForbidden(w http.ResponseWriter, message string) { WriteError(w, http.StatusForbidden, message) }
func WriteConflict(w http.ResponseWriter, message string)  { WriteError(w, http.StatusConflict, message) }
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

// WriteDomainError maps a service-layer error returned via one of
// model.Err* to its HTTP status, and anything else to 500. Handlers call
// this once, at the bottom of their error branch, instead of each
// re-deriving the mapping.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrNotFound):
		WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrConflict):
		WriteConflict(w, err.Error())
	case errors.Is(err, model.ErrUnauthorized):
		WriteUnauthorized(w, err.Error())
	default:
		log.Error().Err(err).Msg("unmapped domain error")
		WriteInternalError(w, "internal server error")
	}
}

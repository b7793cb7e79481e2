package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/geappliances-bridge/internal/entity"
	"github.com/nerrad567/geappliances-bridge/internal/erd"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeConflict   = "conflict"
	ErrCodeInternal   = "internal_error"
	ErrCodeValidation = "validation_error"
	ErrCodeUpstream   = "transmit_failed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps store and entity errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrEntityNotFound),
		errors.Is(err, erd.ErrDeviceNotFound),
		errors.Is(err, erd.ErrERDNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, entity.ErrOutOfRange),
		errors.Is(err, entity.ErrOptionNotAllowed),
		errors.Is(err, entity.ErrInvalidValue):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, entity.ErrWrongKind),
		errors.Is(err, entity.ErrReadOnly),
		errors.Is(err, entity.ErrDisabled),
		errors.Is(err, entity.ErrNoValue):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, erd.ErrTransmitFailed), errors.Is(err, erd.ErrNoTransport):
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}

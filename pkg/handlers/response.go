package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/logging"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteResolveError maps a resolver error to an HTTP status and error code.
func WriteResolveError(w http.ResponseWriter, err error) error {
	var notFound *apperrors.SchemaNotFoundError
	switch {
	case errors.Is(err, apperrors.ErrAccessDenied):
		return ErrorResponse(w, http.StatusForbidden, "access_denied", err.Error())
	case errors.As(err, &notFound) && notFound.IsTimeout():
		return ErrorResponse(w, http.StatusGatewayTimeout, "live_timeout", logging.SanitizeError(err))
	case errors.Is(err, apperrors.ErrSchemaNotFound):
		return ErrorResponse(w, http.StatusNotFound, "schema_not_found", logging.SanitizeError(err))
	case errors.Is(err, apperrors.ErrConfigLoad):
		return ErrorResponse(w, http.StatusUnprocessableEntity, "config_load_failed", logging.SanitizeError(err))
	default:
		return ErrorResponse(w, http.StatusInternalServerError, "internal_error", logging.SanitizeError(err))
	}
}

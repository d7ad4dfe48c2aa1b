package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
)

// Envelope is the success wrapper for every API response body.
type Envelope struct {
	Data any `json:"data"`
	Meta any `json:"meta,omitempty"`
}

// ErrorBody is the error wrapper. Message and Errors are optional; not-found
// responses deliberately omit both so foreign and absent resources read the
// same.
type ErrorBody struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Errors  []apperrors.FieldError `json:"errors,omitempty"`
}

// WriteData writes a success envelope.
func WriteData(w http.ResponseWriter, statusCode int, data any) error {
	return writeJSON(w, statusCode, Envelope{Data: data})
}

// WriteDataMeta writes a success envelope with a meta block.
func WriteDataMeta(w http.ResponseWriter, statusCode int, data, meta any) error {
	return writeJSON(w, statusCode, Envelope{Data: data, Meta: meta})
}

// WriteError writes an error body with an optional human-readable message.
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return writeJSON(w, statusCode, ErrorBody{Error: errorCode, Message: message})
}

// WriteValidationError writes a 422 with the aggregated field errors.
func WriteValidationError(w http.ResponseWriter, fields []apperrors.FieldError) error {
	return writeJSON(w, http.StatusUnprocessableEntity, ErrorBody{
		Error:  "validation_failed",
		Errors: fields,
	})
}

// RespondError maps a service error onto the API error taxonomy. Unrecognized
// errors become an opaque 500 so internals never leak to clients.
func RespondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	if ve, ok := apperrors.AsValidation(err); ok {
		_ = WriteValidationError(w, ve.Fields)
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		_ = writeJSON(w, http.StatusNotFound, ErrorBody{Error: "not_found"})
	case errors.Is(err, apperrors.ErrVersionConflict):
		_ = WriteError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, apperrors.ErrSchemaNotConfigured):
		_ = WriteError(w, http.StatusUnprocessableEntity, "no_schema_configured", err.Error())
	case errors.Is(err, apperrors.ErrUnknownType):
		_ = WriteValidationError(w, []apperrors.FieldError{
			{Field: "type", Message: err.Error(), Constraint: "unknown"},
		})
	case errors.Is(err, apperrors.ErrMissingParameter):
		_ = WriteValidationError(w, []apperrors.FieldError{
			{Field: "parameter", Message: err.Error(), Constraint: "required"},
		})
	default:
		logger.Error("Unhandled error in request", zap.Error(err))
		_ = WriteError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
	}
}

// decodeJSON reads a JSON request body into dst. It writes the error response
// itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		_ = WriteError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		_ = WriteError(w, http.StatusBadRequest, "bad_request", "Invalid JSON in request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(body)
}

package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a resource does not exist in the caller's
	// workspace. Cross-workspace lookups resolve to this same error so that a
	// foreign resource is indistinguishable from an absent one.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a schema write carries an expected
	// version that no longer matches the stored version.
	ErrVersionConflict = errors.New("schema version conflict")

	// ErrSchemaNotConfigured is returned when a workspace has no schema and an
	// operation requires one.
	ErrSchemaNotConfigured = errors.New("no schema configured for workspace")

	// ErrMissingParameter is returned when a required request parameter is absent.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrUnknownType is returned when an entity or edge type is not declared in
	// the workspace schema. Wrap with the offending type name.
	ErrUnknownType = errors.New("unknown type")
)

// FieldError describes a single field-level validation failure.
type FieldError struct {
	Field      string `json:"field"`
	Message    string `json:"message"`
	Constraint string `json:"constraint,omitempty"`
}

// ValidationError aggregates field-level failures for one operation. All
// violated fields are reported together rather than failing fast.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError from field errors.
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// AsValidation unwraps err into a *ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

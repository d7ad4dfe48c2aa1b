// Package schema validates workspace schema documents and entity/edge
// property maps against them. All functions are pure: they collect every
// violation instead of failing fast so a client sees each problem in one
// round trip.
package schema

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
	"github.com/lattice-hq/lattice-engine/pkg/models"
)

// TypeKind distinguishes entity and edge type lookups in error messages.
type TypeKind string

const (
	KindEntity TypeKind = "entity"
	KindEdge   TypeKind = "edge"
)

// namePattern restricts type and property names to letters, digits, and
// underscore. Combined with parameter binding this keeps user-chosen names
// inert in statement text.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateShape checks a proposed schema document and returns every shape
// violation found. An empty result means the document is acceptable.
func ValidateShape(def *models.SchemaDefinition) []apperrors.FieldError {
	var errs []apperrors.FieldError

	if len(def.EntityTypes) == 0 && len(def.EdgeTypes) == 0 {
		errs = append(errs, apperrors.FieldError{
			Field:   "schema",
			Message: "schema must declare at least one entity or edge type",
		})
		return errs
	}

	errs = append(errs, validateTypeList("entity_types", def.EntityTypes)...)
	errs = append(errs, validateTypeList("edge_types", def.EdgeTypes)...)
	return errs
}

func validateTypeList(listName string, types []models.TypeDef) []apperrors.FieldError {
	var errs []apperrors.FieldError
	seen := make(map[string]bool, len(types))

	for i, t := range types {
		field := fmt.Sprintf("%s[%d].name", listName, i)

		if t.Name == "" {
			errs = append(errs, apperrors.FieldError{Field: field, Message: "type name must not be empty"})
		} else if !namePattern.MatchString(t.Name) {
			errs = append(errs, apperrors.FieldError{
				Field:   field,
				Message: fmt.Sprintf("type name %q may only contain letters, digits, and underscore", t.Name),
			})
		} else if seen[t.Name] {
			errs = append(errs, apperrors.FieldError{
				Field:   field,
				Message: fmt.Sprintf("duplicate type name %q", t.Name),
			})
		}
		seen[t.Name] = true

		errs = append(errs, validateProperties(fmt.Sprintf("%s[%d]", listName, i), t.Properties)...)
	}

	return errs
}

func validateProperties(typePath string, props []models.PropertyDef) []apperrors.FieldError {
	var errs []apperrors.FieldError
	seen := make(map[string]bool, len(props))

	for i, p := range props {
		field := fmt.Sprintf("%s.properties[%d]", typePath, i)

		if p.Name == "" {
			errs = append(errs, apperrors.FieldError{Field: field + ".name", Message: "property name must not be empty"})
		} else if !namePattern.MatchString(p.Name) {
			errs = append(errs, apperrors.FieldError{
				Field:   field + ".name",
				Message: fmt.Sprintf("property name %q may only contain letters, digits, and underscore", p.Name),
			})
		} else if seen[p.Name] {
			errs = append(errs, apperrors.FieldError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate property name %q", p.Name),
			})
		}
		seen[p.Name] = true

		if !models.IsSupportedPropertyType(p.Type) {
			errs = append(errs, apperrors.FieldError{
				Field:   field + ".type",
				Message: fmt.Sprintf("unsupported property type %q", p.Type),
			})
			continue
		}

		errs = append(errs, validateConstraints(field, p)...)
	}

	return errs
}

func validateConstraints(field string, p models.PropertyDef) []apperrors.FieldError {
	c := p.Constraints
	if c == nil {
		return nil
	}

	var errs []apperrors.FieldError
	isString := p.Type == models.PropertyString
	isNumeric := p.Type == models.PropertyInteger || p.Type == models.PropertyFloat

	if c.MinLength != nil || c.MaxLength != nil {
		if !isString {
			errs = append(errs, apperrors.FieldError{
				Field:      field + ".constraints",
				Message:    fmt.Sprintf("length constraints only apply to string properties, not %s", p.Type),
				Constraint: "min_length",
			})
		} else {
			if c.MinLength != nil && *c.MinLength < 0 {
				errs = append(errs, apperrors.FieldError{
					Field: field + ".constraints", Message: "min_length must not be negative", Constraint: "min_length",
				})
			}
			if c.MaxLength != nil && *c.MaxLength < 0 {
				errs = append(errs, apperrors.FieldError{
					Field: field + ".constraints", Message: "max_length must not be negative", Constraint: "max_length",
				})
			}
			if c.MinLength != nil && c.MaxLength != nil && *c.MinLength > *c.MaxLength {
				errs = append(errs, apperrors.FieldError{
					Field: field + ".constraints", Message: "min_length must not exceed max_length", Constraint: "min_length",
				})
			}
		}
	}

	if c.Pattern != nil {
		if !isString {
			errs = append(errs, apperrors.FieldError{
				Field:      field + ".constraints",
				Message:    fmt.Sprintf("pattern only applies to string properties, not %s", p.Type),
				Constraint: "pattern",
			})
		} else if _, err := regexp.Compile(*c.Pattern); err != nil {
			errs = append(errs, apperrors.FieldError{
				Field:      field + ".constraints",
				Message:    fmt.Sprintf("pattern is not a valid regular expression: %v", err),
				Constraint: "pattern",
			})
		}
	}

	if len(c.Enum) > 0 && !isString {
		errs = append(errs, apperrors.FieldError{
			Field:      field + ".constraints",
			Message:    fmt.Sprintf("enum only applies to string properties, not %s", p.Type),
			Constraint: "enum",
		})
	}

	if (c.Min != nil || c.Max != nil) && !isNumeric {
		errs = append(errs, apperrors.FieldError{
			Field:      field + ".constraints",
			Message:    fmt.Sprintf("min/max only apply to integer and float properties, not %s", p.Type),
			Constraint: "min",
		})
	}
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		errs = append(errs, apperrors.FieldError{
			Field: field + ".constraints", Message: "min must not exceed max", Constraint: "min",
		})
	}

	return errs
}

// ValidateInstance resolves typeName against the schema and checks the given
// property map against the type's declarations. On success it returns the
// normalized property map (string, int64, float64, bool, or time.Time values).
// Unknown type names produce an error wrapping apperrors.ErrUnknownType; field
// violations are all collected and returned together.
func ValidateInstance(def *models.SchemaDefinition, kind TypeKind, typeName string, props map[string]any) (map[string]any, []apperrors.FieldError, error) {
	var typeDef *models.TypeDef
	switch kind {
	case KindEdge:
		typeDef = def.EdgeType(typeName)
	default:
		typeDef = def.EntityType(typeName)
	}
	if typeDef == nil {
		return nil, nil, fmt.Errorf("%w: %s type %q is not declared in the workspace schema", apperrors.ErrUnknownType, kind, typeName)
	}

	var errs []apperrors.FieldError
	normalized := make(map[string]any, len(typeDef.Properties))

	for _, p := range typeDef.Properties {
		raw, present := props[p.Name]
		if !present || raw == nil {
			if p.Required {
				errs = append(errs, apperrors.FieldError{
					Field:      p.Name,
					Message:    fmt.Sprintf("property %q is required", p.Name),
					Constraint: "required",
				})
			}
			continue
		}

		value, fieldErr := coerceValue(p, raw)
		if fieldErr != nil {
			errs = append(errs, *fieldErr)
			continue
		}

		errs = append(errs, checkConstraints(p, value)...)
		normalized[p.Name] = value
	}

	// Undeclared keys are rejected rather than silently stored.
	var unknown []string
	for k := range props {
		if typeDef.Property(k) == nil {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		errs = append(errs, apperrors.FieldError{
			Field:      k,
			Message:    fmt.Sprintf("property %q is not declared for %s type %q", k, kind, typeName),
			Constraint: "unknown",
		})
	}

	if len(errs) > 0 {
		return nil, errs, nil
	}
	return normalized, nil, nil
}

// coerceValue normalizes a raw JSON-decoded value to the property's declared
// type, rejecting cross-type values (numeric for boolean, string for numeric,
// fractional for integer).
func coerceValue(p models.PropertyDef, raw any) (any, *apperrors.FieldError) {
	switch p.Type {
	case models.PropertyString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case models.PropertyInteger:
		switch v := raw.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			if v == math.Trunc(v) && v >= math.MinInt64 && v <= math.MaxInt64 {
				return int64(v), nil
			}
		}
	case models.PropertyFloat:
		switch v := raw.(type) {
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case float64:
			return v, nil
		}
	case models.PropertyBoolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case models.PropertyDateTime:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string:
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts, nil
			}
			return nil, &apperrors.FieldError{
				Field:      p.Name,
				Message:    fmt.Sprintf("property %q must be an RFC 3339 datetime string", p.Name),
				Constraint: "type",
			}
		}
	}

	return nil, &apperrors.FieldError{
		Field:      p.Name,
		Message:    fmt.Sprintf("property %q must be of type %s", p.Name, p.Type),
		Constraint: "type",
	}
}

// checkConstraints evaluates every applicable constraint on a normalized
// value. min/max are inclusive; lengths count Unicode code points; patterns
// are anchored against the whole value; enum match is case-sensitive.
func checkConstraints(p models.PropertyDef, value any) []apperrors.FieldError {
	c := p.Constraints
	if c == nil {
		return nil
	}

	var errs []apperrors.FieldError

	if s, ok := value.(string); ok {
		length := utf8.RuneCountInString(s)
		if c.MinLength != nil && length < *c.MinLength {
			errs = append(errs, apperrors.FieldError{
				Field:      p.Name,
				Message:    fmt.Sprintf("property %q must be at least %d characters, got %d", p.Name, *c.MinLength, length),
				Constraint: "min_length",
			})
		}
		if c.MaxLength != nil && length > *c.MaxLength {
			errs = append(errs, apperrors.FieldError{
				Field:      p.Name,
				Message:    fmt.Sprintf("property %q must be at most %d characters, got %d", p.Name, *c.MaxLength, length),
				Constraint: "max_length",
			})
		}
		if c.Pattern != nil {
			re, err := regexp.Compile("^(?:" + *c.Pattern + ")$")
			if err != nil || !re.MatchString(s) {
				errs = append(errs, apperrors.FieldError{
					Field:      p.Name,
					Message:    fmt.Sprintf("property %q must match pattern %q", p.Name, *c.Pattern),
					Constraint: "pattern",
				})
			}
		}
		if len(c.Enum) > 0 && !containsString(c.Enum, s) {
			errs = append(errs, apperrors.FieldError{
				Field:      p.Name,
				Message:    fmt.Sprintf("property %q must be one of %v", p.Name, c.Enum),
				Constraint: "enum",
			})
		}
	}

	if num, ok := asFloat(value); ok {
		if c.Min != nil && num < *c.Min {
			errs = append(errs, apperrors.FieldError{
				Field:      p.Name,
				Message:    fmt.Sprintf("property %q must be at least %v", p.Name, *c.Min),
				Constraint: "min",
			})
		}
		if c.Max != nil && num > *c.Max {
			errs = append(errs, apperrors.FieldError{
				Field:      p.Name,
				Message:    fmt.Sprintf("property %q must be at most %v", p.Name, *c.Max),
				Constraint: "max",
			})
		}
	}

	return errs
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

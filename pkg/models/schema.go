package models

import (
	"time"

	"github.com/google/uuid"
)

// PropertyType enumerates the value types a schema property may declare.
type PropertyType string

const (
	PropertyString   PropertyType = "string"
	PropertyInteger  PropertyType = "integer"
	PropertyFloat    PropertyType = "float"
	PropertyBoolean  PropertyType = "boolean"
	PropertyDateTime PropertyType = "datetime"
)

// SupportedPropertyTypes lists every accepted property type, in declaration order.
var SupportedPropertyTypes = []PropertyType{
	PropertyString, PropertyInteger, PropertyFloat, PropertyBoolean, PropertyDateTime,
}

// IsSupportedPropertyType reports whether t is a declared property type.
func IsSupportedPropertyType(t PropertyType) bool {
	for _, s := range SupportedPropertyTypes {
		if t == s {
			return true
		}
	}
	return false
}

// Constraints holds the optional per-property validation constraints.
// Applicability is enforced at schema-shape validation time: length and
// pattern/enum constraints apply to strings, min/max to integers and floats.
type Constraints struct {
	MinLength *int     `json:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty"`
	Pattern   *string  `json:"pattern,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Enum      []string `json:"enum,omitempty"`
}

// PropertyDef declares one property of an entity or edge type.
type PropertyDef struct {
	Name        string       `json:"name"`
	Type        PropertyType `json:"type"`
	Required    bool         `json:"required"`
	Constraints *Constraints `json:"constraints,omitempty"`
}

// TypeDef declares a named entity or edge type and its ordered property list.
type TypeDef struct {
	Name       string        `json:"name"`
	Properties []PropertyDef `json:"properties"`
}

// Property returns the PropertyDef with the given name, or nil.
func (t *TypeDef) Property(name string) *PropertyDef {
	for i := range t.Properties {
		if t.Properties[i].Name == name {
			return &t.Properties[i]
		}
	}
	return nil
}

// SchemaDefinition is the single versioned schema document for a workspace.
// Version starts at 1 on first creation and increments by exactly 1 on every
// accepted update.
type SchemaDefinition struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	EntityTypes []TypeDef `json:"entity_types"`
	EdgeTypes   []TypeDef `json:"edge_types"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntityType returns the entity type declaration with the given name, or nil.
func (s *SchemaDefinition) EntityType(name string) *TypeDef {
	return findType(s.EntityTypes, name)
}

// EdgeType returns the edge type declaration with the given name, or nil.
func (s *SchemaDefinition) EdgeType(name string) *TypeDef {
	return findType(s.EdgeTypes, name)
}

func findType(types []TypeDef, name string) *TypeDef {
	for i := range types {
		if types[i].Name == name {
			return &types[i]
		}
	}
	return nil
}

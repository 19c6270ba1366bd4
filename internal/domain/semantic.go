package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxModelNameLength bounds the name of a stored semantic model.
const MaxModelNameLength = 255

// SemanticModel is a stored semantic schema with the dialect it compiles to.
type SemanticModel struct {
	ID          string
	Name        string
	Description string
	Dialect     string
	Catalog     string
	Schema      Schema
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateSemanticModelRequest holds parameters for storing a semantic model.
type CreateSemanticModelRequest struct {
	Name        string
	Description string
	Dialect     string
	Catalog     string
	Schema      Schema
}

// Validate checks that the request is well-formed.
func (r *CreateSemanticModelRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrValidation("name is required")
	}
	if utf8.RuneCountInString(r.Name) > MaxModelNameLength {
		return ErrValidation("name must be <= %d characters", MaxModelNameLength)
	}
	if r.Dialect == "" {
		return ErrValidation("dialect is required")
	}
	seen := make(map[string]bool, len(r.Schema.Cubes))
	for _, c := range r.Schema.Cubes {
		if strings.TrimSpace(c.Name) == "" {
			return ErrValidation("cube name is required")
		}
		if seen[c.Name] {
			return ErrValidation("cube %q is declared twice", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// UpdateSemanticModelRequest holds partial-update parameters.
type UpdateSemanticModelRequest struct {
	Description *string
	Dialect     *string
	Catalog     *string
	Schema      *Schema
}

// Apply merges the request into m.
func (r *UpdateSemanticModelRequest) Apply(m *SemanticModel) {
	if r.Description != nil {
		m.Description = *r.Description
	}
	if r.Dialect != nil {
		m.Dialect = *r.Dialect
	}
	if r.Catalog != nil {
		m.Catalog = *r.Catalog
	}
	if r.Schema != nil {
		m.Schema = *r.Schema
	}
}

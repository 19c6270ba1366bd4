package api

import (
	"time"

	"cubesql/internal/domain"
)

// SemanticModel is the API representation of a stored model.
type SemanticModel struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Dialect     string        `json:"dialect"`
	Catalog     string        `json:"catalog,omitempty"`
	Schema      domain.Schema `json:"schema"`
	CreatedBy   string        `json:"created_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// PaginatedSemanticModels is one page of models.
type PaginatedSemanticModels struct {
	Data          []SemanticModel `json:"data"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

// CreateSemanticModelBody is the request body of model creation.
type CreateSemanticModelBody struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Dialect     string        `json:"dialect"`
	Catalog     string        `json:"catalog,omitempty"`
	Schema      domain.Schema `json:"schema"`
}

// UpdateSemanticModelBody is the request body of a partial model update.
type UpdateSemanticModelBody struct {
	Description *string        `json:"description,omitempty"`
	Dialect     *string        `json:"dialect,omitempty"`
	Catalog     *string        `json:"catalog,omitempty"`
	Schema      *domain.Schema `json:"schema,omitempty"`
}

// PivotBody carries a query and the rows already fetched for it.
type PivotBody struct {
	Query domain.Query     `json:"query"`
	Rows  []map[string]any `json:"rows"`
}

// EntityType is a read-only summary of a resolved entity type.
type EntityType struct {
	Name           string      `json:"name"`
	Caption        string      `json:"caption,omitempty"`
	Semantics      string      `json:"semantics"`
	Dialect        string      `json:"dialect"`
	DefaultMeasure string      `json:"default_measure,omitempty"`
	Dimensions     []Dimension `json:"dimensions"`
	Measures       []Measure   `json:"measures"`
}

// Dimension summarizes a runtime dimension.
type Dimension struct {
	Name        string      `json:"name"`
	Caption     string      `json:"caption,omitempty"`
	Semantic    string      `json:"semantic,omitempty"`
	Hierarchies []Hierarchy `json:"hierarchies"`
}

// Hierarchy summarizes a runtime hierarchy by its level unique names.
type Hierarchy struct {
	Name   string   `json:"name"`
	HasAll bool     `json:"has_all,omitempty"`
	Levels []string `json:"levels"`
}

// Measure summarizes a runtime measure.
type Measure struct {
	Name        string `json:"name"`
	Caption     string `json:"caption,omitempty"`
	Aggregator  string `json:"aggregator,omitempty"`
	Calculation string `json:"calculation,omitempty"`
	Visible     bool   `json:"visible"`
}

func semanticModelToAPI(m domain.SemanticModel) SemanticModel {
	return SemanticModel{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Dialect:     m.Dialect,
		Catalog:     m.Catalog,
		Schema:      m.Schema,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func entityTypeToAPI(et *domain.EntityType) EntityType {
	out := EntityType{
		Name:           et.Name,
		Caption:        et.Caption,
		Semantics:      string(et.Semantics),
		Dialect:        et.Dialect,
		DefaultMeasure: et.DefaultMeasure,
		Dimensions:     make([]Dimension, 0, len(et.Dimensions)),
		Measures:       make([]Measure, 0, len(et.Measures)),
	}
	for _, name := range et.DimensionNames() {
		d := et.Dimensions[name]
		dim := Dimension{Name: d.Name, Caption: d.Caption, Semantic: d.Semantic}
		for _, h := range d.Hierarchies {
			hier := Hierarchy{Name: h.Name, HasAll: h.HasAll}
			for _, l := range h.Levels {
				hier.Levels = append(hier.Levels, l.UniqueName)
			}
			dim.Hierarchies = append(dim.Hierarchies, hier)
		}
		out.Dimensions = append(out.Dimensions, dim)
	}
	for _, name := range et.MeasureNames() {
		m := et.Measures[name]
		measure := Measure{Name: m.Name, Caption: m.Caption, Aggregator: m.Aggregator, Visible: m.Visible}
		if m.Calculation != nil {
			measure.Calculation = string(m.Calculation.Kind())
		}
		out.Measures = append(out.Measures, measure)
	}
	return out
}

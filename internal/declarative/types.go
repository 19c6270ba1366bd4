package declarative

import "cubesql/internal/domain"

// SupportedAPIVersion is the apiVersion every document must declare.
const SupportedAPIVersion = "cubesql/v1"

// Document kinds.
const (
	KindNameSemanticModel = "SemanticModel"
	KindNameCube          = "Cube"
	KindNameDimension     = "Dimension"
	KindNameIndicator     = "Indicator"
	KindNameEntitySet     = "EntitySet"
)

// Metadata identifies a document. Name must match the file name.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// ModelDoc is model.yaml at the root of a model directory.
type ModelDoc struct {
	APIVersion string    `yaml:"apiVersion"`
	Kind       string    `yaml:"kind"`
	Metadata   Metadata  `yaml:"metadata"`
	Spec       ModelSpec `yaml:"spec"`
}

// ModelSpec holds the compilation target of a model.
type ModelSpec struct {
	Dialect string `yaml:"dialect"`
	Catalog string `yaml:"catalog,omitempty"`
}

// CubeDoc is one file under cubes/.
type CubeDoc struct {
	APIVersion string      `yaml:"apiVersion"`
	Kind       string      `yaml:"kind"`
	Metadata   Metadata    `yaml:"metadata"`
	Spec       domain.Cube `yaml:"spec"`
}

// DimensionDoc is one shared dimension under dimensions/.
type DimensionDoc struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   Metadata         `yaml:"metadata"`
	Spec       domain.Dimension `yaml:"spec"`
}

// IndicatorDoc is one indicator under indicators/; the name is its code.
type IndicatorDoc struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   Metadata         `yaml:"metadata"`
	Spec       domain.Indicator `yaml:"spec"`
}

// EntitySetDoc is the override of one entity under entities/.
type EntitySetDoc struct {
	APIVersion string                `yaml:"apiVersion"`
	Kind       string                `yaml:"kind"`
	Metadata   Metadata              `yaml:"metadata"`
	Spec       domain.EntityOverride `yaml:"spec"`
}

// Bundle is a semantic model as loaded from a directory.
type Bundle struct {
	Name        string
	Description string
	Dialect     string
	Catalog     string
	Schema      domain.Schema
	// Files maps "<kind>/<name>" to the source file.
	Files map[string]string
}

// CreateRequest converts the bundle into a model creation request.
func (b *Bundle) CreateRequest() domain.CreateSemanticModelRequest {
	return domain.CreateSemanticModelRequest{
		Name:        b.Name,
		Description: b.Description,
		Dialect:     b.Dialect,
		Catalog:     b.Catalog,
		Schema:      b.Schema,
	}
}

// UpdateRequest converts the bundle into a full model update request.
func (b *Bundle) UpdateRequest() domain.UpdateSemanticModelRequest {
	schema := b.Schema
	return domain.UpdateSemanticModelRequest{
		Description: &b.Description,
		Dialect:     &b.Dialect,
		Catalog:     &b.Catalog,
		Schema:      &schema,
	}
}

// FromModel builds the bundle of a stored model, for diffing.
func FromModel(m *domain.SemanticModel) *Bundle {
	return &Bundle{
		Name:        m.Name,
		Description: m.Description,
		Dialect:     m.Dialect,
		Catalog:     m.Catalog,
		Schema:      m.Schema,
	}
}

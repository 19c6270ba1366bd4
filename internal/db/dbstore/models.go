package dbstore

type SemanticModel struct {
	ID          string
	Name        string
	Description string
	Dialect     string
	Catalog     string
	SchemaJson  string
	CreatedBy   string
	CreatedAt   string
	UpdatedAt   string
}

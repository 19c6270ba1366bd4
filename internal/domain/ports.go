package domain

import "context"

// TableColumn is the discovered metadata of one column.
type TableColumn struct {
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	DataType string `json:"dataType"`
	Nullable bool   `json:"nullable"`
}

// TableSchema is the discovered metadata of a table or view.
type TableSchema struct {
	Catalog string        `json:"catalog,omitempty"`
	Name    string        `json:"name"`
	Label   string        `json:"label,omitempty"`
	Columns []TableColumn `json:"columns"`
}

// SchemaDiscoverer introspects physical tables. When statement is non-empty
// the columns of that SQL are described instead of a stored table.
// Implemented by discovery.Adapter.
type SchemaDiscoverer interface {
	DiscoverTable(ctx context.Context, catalog, table, statement string) (*TableSchema, error)
}

// ModelRepository persists semantic models.
// Implemented by repository.ModelRepo.
type ModelRepository interface {
	Create(ctx context.Context, m *SemanticModel) (*SemanticModel, error)
	Update(ctx context.Context, m *SemanticModel) (*SemanticModel, error)
	GetByName(ctx context.Context, name string) (*SemanticModel, error)
	List(ctx context.Context, page PageRequest) ([]SemanticModel, int64, error)
	Delete(ctx context.Context, name string) error
}

// QueryExecutor runs compiled SQL and returns rows keyed by column alias.
// Implemented by discovery.Adapter.
type QueryExecutor interface {
	Query(ctx context.Context, sql string) ([]map[string]any, error)
}

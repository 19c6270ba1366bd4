package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"cubesql/internal/db/dbstore"
	"cubesql/internal/domain"
)

// Compile-time check.
var _ domain.ModelRepository = (*ModelRepo)(nil)

// ModelRepo implements ModelRepository using SQLite. The schema is stored as
// a JSON document.
type ModelRepo struct {
	q *dbstore.Queries
}

// NewModelRepo creates a new ModelRepo.
func NewModelRepo(db *sql.DB) *ModelRepo {
	return &ModelRepo{q: dbstore.New(db)}
}

// Create inserts a new semantic model.
func (r *ModelRepo) Create(ctx context.Context, m *domain.SemanticModel) (*domain.SemanticModel, error) {
	schemaJSON, err := json.Marshal(m.Schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	row, err := r.q.CreateSemanticModel(ctx, dbstore.CreateSemanticModelParams{
		ID:          domain.NewID(),
		Name:        m.Name,
		Description: m.Description,
		Dialect:     m.Dialect,
		Catalog:     m.Catalog,
		SchemaJson:  string(schemaJSON),
		CreatedBy:   m.CreatedBy,
	})
	if err != nil {
		return nil, mapDBError(err, "semantic model %q already exists", m.Name)
	}
	return semanticModelFromDB(row), nil
}

// GetByName returns a semantic model by name.
func (r *ModelRepo) GetByName(ctx context.Context, name string) (*domain.SemanticModel, error) {
	row, err := r.q.GetSemanticModelByName(ctx, name)
	if err != nil {
		return nil, mapDBError(err, "semantic model %q not found", name)
	}
	return semanticModelFromDB(row), nil
}

// List returns a paginated list of semantic models ordered by name.
func (r *ModelRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.SemanticModel, int64, error) {
	total, err := r.q.CountSemanticModels(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.q.ListSemanticModels(ctx, dbstore.ListSemanticModelsParams{
		Limit:  int64(page.Limit()),
		Offset: int64(page.Offset()),
	})
	if err != nil {
		return nil, 0, err
	}

	models := make([]domain.SemanticModel, 0, len(rows))
	for _, row := range rows {
		models = append(models, *semanticModelFromDB(row))
	}
	return models, total, nil
}

// Update stores the mutable fields of m, looked up by name.
func (r *ModelRepo) Update(ctx context.Context, m *domain.SemanticModel) (*domain.SemanticModel, error) {
	schemaJSON, err := json.Marshal(m.Schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	n, err := r.q.UpdateSemanticModel(ctx, dbstore.UpdateSemanticModelParams{
		Description: m.Description,
		Dialect:     m.Dialect,
		Catalog:     m.Catalog,
		SchemaJson:  string(schemaJSON),
		Name:        m.Name,
	})
	if err != nil {
		return nil, mapDBError(err, "semantic model %q", m.Name)
	}
	if n == 0 {
		return nil, domain.ErrNotFound("semantic model %q not found", m.Name)
	}
	return r.GetByName(ctx, m.Name)
}

// Delete removes a semantic model by name.
func (r *ModelRepo) Delete(ctx context.Context, name string) error {
	n, err := r.q.DeleteSemanticModel(ctx, name)
	if err != nil {
		return mapDBError(err, "semantic model %q", name)
	}
	if n == 0 {
		return domain.ErrNotFound("semantic model %q not found", name)
	}
	return nil
}

func semanticModelFromDB(row dbstore.SemanticModel) *domain.SemanticModel {
	var schema domain.Schema
	if row.SchemaJson != "" {
		if err := json.Unmarshal([]byte(row.SchemaJson), &schema); err != nil {
			slog.Default().Warn("failed to unmarshal semantic model schema", "model", row.Name, "error", err)
		}
	}
	return &domain.SemanticModel{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Dialect:     row.Dialect,
		Catalog:     row.Catalog,
		Schema:      schema,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   parseDBTime(row.CreatedAt, "semantic_models.created_at"),
		UpdatedAt:   parseDBTime(row.UpdatedAt, "semantic_models.updated_at"),
	}
}

package dbstore

import (
	"context"
)

const countSemanticModels = `-- name: CountSemanticModels :one
SELECT COUNT(*) FROM semantic_models
`

func (q *Queries) CountSemanticModels(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countSemanticModels)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createSemanticModel = `-- name: CreateSemanticModel :one
INSERT INTO semantic_models (id, name, description, dialect, catalog, schema_json, created_by)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id, name, description, dialect, catalog, schema_json, created_by, created_at, updated_at
`

type CreateSemanticModelParams struct {
	ID          string
	Name        string
	Description string
	Dialect     string
	Catalog     string
	SchemaJson  string
	CreatedBy   string
}

func (q *Queries) CreateSemanticModel(ctx context.Context, arg CreateSemanticModelParams) (SemanticModel, error) {
	row := q.db.QueryRowContext(ctx, createSemanticModel,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.Dialect,
		arg.Catalog,
		arg.SchemaJson,
		arg.CreatedBy,
	)
	var i SemanticModel
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Dialect,
		&i.Catalog,
		&i.SchemaJson,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteSemanticModel = `-- name: DeleteSemanticModel :execrows
DELETE FROM semantic_models WHERE name = ?
`

func (q *Queries) DeleteSemanticModel(ctx context.Context, name string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSemanticModel, name)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getSemanticModelByName = `-- name: GetSemanticModelByName :one
SELECT id, name, description, dialect, catalog, schema_json, created_by, created_at, updated_at FROM semantic_models WHERE name = ?
`

func (q *Queries) GetSemanticModelByName(ctx context.Context, name string) (SemanticModel, error) {
	row := q.db.QueryRowContext(ctx, getSemanticModelByName, name)
	var i SemanticModel
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Dialect,
		&i.Catalog,
		&i.SchemaJson,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listSemanticModels = `-- name: ListSemanticModels :many
SELECT id, name, description, dialect, catalog, schema_json, created_by, created_at, updated_at FROM semantic_models ORDER BY name LIMIT ? OFFSET ?
`

type ListSemanticModelsParams struct {
	Limit  int64
	Offset int64
}

func (q *Queries) ListSemanticModels(ctx context.Context, arg ListSemanticModelsParams) ([]SemanticModel, error) {
	rows, err := q.db.QueryContext(ctx, listSemanticModels, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SemanticModel
	for rows.Next() {
		var i SemanticModel
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Description,
			&i.Dialect,
			&i.Catalog,
			&i.SchemaJson,
			&i.CreatedBy,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateSemanticModel = `-- name: UpdateSemanticModel :execrows
UPDATE semantic_models
SET description = ?, dialect = ?, catalog = ?, schema_json = ?, updated_at = datetime('now')
WHERE name = ?
`

type UpdateSemanticModelParams struct {
	Description string
	Dialect     string
	Catalog     string
	SchemaJson  string
	Name        string
}

func (q *Queries) UpdateSemanticModel(ctx context.Context, arg UpdateSemanticModelParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateSemanticModel,
		arg.Description,
		arg.Dialect,
		arg.Catalog,
		arg.SchemaJson,
		arg.Name,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

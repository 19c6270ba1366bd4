package semantic

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	internaldb "cubesql/internal/db"
	"cubesql/internal/db/repository"
	"cubesql/internal/domain"
)

type fakeExecutor struct {
	mu   sync.Mutex
	sqls []string
	rows func(sql string) []map[string]any
}

func (f *fakeExecutor) Query(_ context.Context, sql string) ([]map[string]any, error) {
	f.mu.Lock()
	f.sqls = append(f.sqls, sql)
	f.mu.Unlock()
	if f.rows == nil {
		return nil, nil
	}
	return f.rows(sql), nil
}

func setupSemanticService(t *testing.T) *Service {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	repo := repository.NewModelRepo(writeDB)
	mock := clock.NewMock()
	mock.Set(time.Date(2022, 5, 1, 10, 30, 0, 0, time.UTC))
	return NewService(repo, NewRegistry(repo, nil, nil), mock)
}

func createRetailModel(t *testing.T, svc *Service) *domain.SemanticModel {
	t.Helper()
	m, err := svc.CreateSemanticModel(context.Background(), "admin", domain.CreateSemanticModelRequest{
		Name:    "retail",
		Dialect: "DuckDB",
		Catalog: "lake",
		Schema:  *testSchema(),
	})
	require.NoError(t, err)
	return m
}

func TestService_SemanticModelCRUD(t *testing.T) {
	svc := setupSemanticService(t)
	ctx := context.Background()

	created := createRetailModel(t, svc)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "duckdb", created.Dialect)
	assert.Equal(t, "admin", created.CreatedBy)

	got, err := svc.GetSemanticModel(ctx, "retail")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	require.Len(t, got.Schema.Cubes, 1)

	models, total, err := svc.ListSemanticModels(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, models, 1)

	desc := "Retail analytics"
	updated, err := svc.UpdateSemanticModel(ctx, "retail", domain.UpdateSemanticModelRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)

	require.NoError(t, svc.DeleteSemanticModel(ctx, "retail"))
	_, err = svc.GetSemanticModel(ctx, "retail")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestService_CreateRejectsInvalidModels(t *testing.T) {
	svc := setupSemanticService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		req    domain.CreateSemanticModelRequest
		target any
	}{
		{
			name:   "missing name",
			req:    domain.CreateSemanticModelRequest{Dialect: "duckdb"},
			target: new(*domain.ValidationError),
		},
		{
			name:   "unknown dialect",
			req:    domain.CreateSemanticModelRequest{Name: "x", Dialect: "cobol"},
			target: new(*domain.ValidationError),
		},
		{
			name: "dangling dimension usage",
			req: domain.CreateSemanticModelRequest{Name: "x", Dialect: "duckdb", Schema: domain.Schema{
				Cubes: []domain.Cube{{Name: "Sales", DimensionUsages: []domain.DimensionUsage{{Name: "T", Source: "Time"}}}},
			}},
			target: new(*domain.SchemaValidationError),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateSemanticModel(ctx, "admin", tc.req)
			require.Error(t, err)
			assert.ErrorAs(t, err, tc.target)
		})
	}

	createRetailModel(t, svc)
	_, err := svc.CreateSemanticModel(ctx, "admin", domain.CreateSemanticModelRequest{Name: "retail", Dialect: "duckdb"})
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestService_Explain(t *testing.T) {
	svc := setupSemanticService(t)
	createRetailModel(t, svc)
	ctx := context.Background()

	q := domain.Query{
		Rows:    []domain.Axis{{DimensionRef: domain.DimensionRef{Dimension: "Region"}}},
		Columns: []domain.Axis{{DimensionRef: domain.DimensionRef{Dimension: domain.MeasuresDimension}, Members: []domain.Member{{Key: "REV_DE"}, {Key: "Amount"}}}},
	}
	stmt, err := svc.Explain(ctx, "retail", "Sales", q)
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `FROM "lake"."sales" AS "sales_sales"`)
	assert.Contains(t, stmt.SQL, `SUM(CASE WHEN (("sales_sales"."country" = 'DE')) THEN "sales_sales"."amount" ELSE NULL END) AS "REV_DE"`)
	assert.Contains(t, stmt.SQL, `GROUP BY "sales_sales"."country"`)

	_, err = svc.Explain(ctx, "missing", "Sales", q)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = svc.Explain(ctx, "retail", "Nope", q)
	var re *domain.ResolutionError
	assert.ErrorAs(t, err, &re)
}

func TestService_UpdateRefreshesOpenDataSource(t *testing.T) {
	svc := setupSemanticService(t)
	createRetailModel(t, svc)
	ctx := context.Background()

	et, err := svc.EntityType(ctx, "retail", "Sales")
	require.NoError(t, err)
	assert.NotContains(t, et.Measures, "Margin")

	s := *testSchema()
	s.Cubes[0].CalculatedMembers = []domain.CalculatedMember{{Name: "Margin", Formula: "[Measures].[Amount] - [Measures].[Cost]"}}
	_, err = svc.UpdateSemanticModel(ctx, "retail", domain.UpdateSemanticModelRequest{Schema: &s})
	require.NoError(t, err)

	et, err = svc.EntityType(ctx, "retail", "Sales")
	require.NoError(t, err)
	assert.Contains(t, et.Measures, "Margin")

	pg := "pg"
	_, err = svc.UpdateSemanticModel(ctx, "retail", domain.UpdateSemanticModelRequest{Dialect: &pg})
	require.NoError(t, err)
	et, err = svc.EntityType(ctx, "retail", "Sales")
	require.NoError(t, err)
	assert.Equal(t, "pg", et.Dialect)
}

func TestService_RunPivots(t *testing.T) {
	svc := setupSemanticService(t)
	createRetailModel(t, svc)

	exec := &fakeExecutor{rows: func(string) []map[string]any {
		return []map[string]any{
			{"[Region].[Country]": "[DE]", "Amount": 10.0},
			{"[Region].[Country]": "[FR]", "Amount": 7.0},
		}
	}}
	q := domain.Query{
		Rows:    []domain.Axis{{DimensionRef: domain.DimensionRef{Dimension: "Region"}}},
		Columns: []domain.Axis{{Measure: "Amount"}},
	}
	result, err := svc.Run(context.Background(), "retail", "Sales", q, exec)
	require.NoError(t, err)
	require.Len(t, exec.sqls, 1)
	require.Len(t, result.Data, 2)
	assert.Equal(t, 10.0, result.Data[0]["Amount"])
}

func TestService_Members(t *testing.T) {
	svc := setupSemanticService(t)
	createRetailModel(t, svc)
	ctx := context.Background()

	stmts, err := svc.MemberStatements(ctx, "retail", "Sales", domain.DimensionRef{Dimension: "Product"})
	require.NoError(t, err)
	require.Len(t, stmts, 2)

	exec := &fakeExecutor{rows: func(sql string) []map[string]any {
		if strings.Contains(sql, `'All' AS "memberCaption"`) {
			return []map[string]any{{"memberKey": "[(All)]", "memberCaption": "All"}}
		}
		return []map[string]any{
			{"MEMBERKEY": "[(All)].[Books]", "memberCaption": "Books", "parentKey": "[(All)]"},
			{"memberKey": "[(All)].[#]", "memberCaption": nil, "parentKey": "[(All)]"},
		}
	}}
	levels, err := svc.Members(ctx, "retail", "Sales", domain.DimensionRef{Dimension: "Product"}, exec)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, stmts[0].Level, levels[0].Level)
	assert.Equal(t, []domain.MemberRow{{Key: "[(All)]", Caption: "All"}}, levels[0].Members)
	require.Len(t, levels[1].Members, 2)
	assert.Equal(t, domain.MemberRow{Key: "[(All)].[Books]", Caption: "Books", ParentKey: "[(All)]"}, levels[1].Members[0])
	assert.Equal(t, "", levels[1].Members[1].Caption)
	assert.Len(t, exec.sqls, 2)
}

func TestService_AddCalculatedMeasure(t *testing.T) {
	svc := setupSemanticService(t)
	createRetailModel(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.AddCalculatedMeasure(ctx, "retail", "Sales", domain.CalculatedMember{
		Name:    "Double",
		Formula: "[Measures].[Amount] * 2",
	}))
	stmt, err := svc.Explain(ctx, "retail", "Sales", domain.Query{Columns: []domain.Axis{{Measure: "Double"}}})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `SUM("sales_sales"."amount") * 2 AS "Double"`)
}

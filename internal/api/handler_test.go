package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	internaldb "cubesql/internal/db"
	"cubesql/internal/db/repository"
	"cubesql/internal/domain"
	"cubesql/internal/middleware"
	"cubesql/internal/service/semantic"
)

type fakeExecutor struct {
	rows []map[string]any
	err  error
}

func (f *fakeExecutor) Query(context.Context, string) ([]map[string]any, error) {
	return f.rows, f.err
}

func retailSchema() domain.Schema {
	return domain.Schema{
		Cubes: []domain.Cube{{
			Name:   "Sales",
			Tables: []domain.Table{{Name: "sales"}},
			Dimensions: []domain.Dimension{{
				Name:        "Region",
				Hierarchies: []domain.Hierarchy{{HasAll: true, Levels: []domain.Level{{Name: "Country", Column: "country"}}}},
			}},
			Measures: []domain.Measure{{Name: "Amount", Column: "amount", Aggregator: domain.AggregatorSum}},
		}},
	}
}

func setupTestServer(t *testing.T, exec domain.QueryExecutor) *httptest.Server {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	repo := repository.NewModelRepo(writeDB)
	mock := clock.NewMock()
	mock.Set(time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC))
	svc := semantic.NewService(repo, semantic.NewRegistry(repo, nil, nil), mock)

	srv := httptest.NewServer(NewRouter(NewHandler(svc, exec, nil), RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Principal", "analyst")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createRetail(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/models", CreateSemanticModelBody{
		Name: "retail", Dialect: "duckdb", Catalog: "lake", Schema: retailSchema(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAPI_ModelLifecycle(t *testing.T) {
	srv := setupTestServer(t, nil)
	createRetail(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/models/retail", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decodeBody[SemanticModel](t, resp)
	assert.Equal(t, "analyst", m.CreatedBy)
	assert.Equal(t, "lake", m.Catalog)
	require.Len(t, m.Schema.Cubes, 1)

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/models?max_results=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodeBody[PaginatedSemanticModels](t, resp)
	require.Len(t, page.Data, 1)
	assert.Empty(t, page.NextPageToken)

	desc := "Retail"
	resp = doJSON(t, http.MethodPatch, srv.URL+"/v1/models/retail", UpdateSemanticModelBody{Description: &desc})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Retail", decodeBody[SemanticModel](t, resp).Description)

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/models", CreateSemanticModelBody{Name: "retail", Dialect: "duckdb"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/v1/models/retail", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/models/retail", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CompileAndEntityType(t *testing.T) {
	srv := setupTestServer(t, nil)
	createRetail(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/models/retail/entities/Sales", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	et := decodeBody[EntityType](t, resp)
	assert.Equal(t, "duckdb", et.Dialect)
	require.Len(t, et.Dimensions, 1)
	assert.Equal(t, "[Region]", et.Dimensions[0].Name)
	require.Len(t, et.Measures, 1)
	assert.Equal(t, "Amount", et.Measures[0].Name)

	q := domain.Query{
		Rows:    []domain.Axis{{DimensionRef: domain.DimensionRef{Dimension: "Region", Level: "Country"}}},
		Columns: []domain.Axis{{Measure: "Amount"}},
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/models/retail/entities/Sales/compile", q)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stmt := decodeBody[domain.Statement](t, resp)
	assert.Contains(t, stmt.SQL, `FROM "lake"."sales" AS "sales_sales"`)
	assert.Contains(t, stmt.SQL, `SUM("sales_sales"."amount") AS "Amount"`)
}

func TestAPI_ErrorMapping(t *testing.T) {
	srv := setupTestServer(t, nil)
	createRetail(t, srv)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown model", http.MethodGet, "/v1/models/nope", nil, http.StatusNotFound},
		{"unknown entity", http.MethodGet, "/v1/models/retail/entities/Nope", nil, http.StatusNotFound},
		{"invalid model", http.MethodPost, "/v1/models", CreateSemanticModelBody{Name: "x", Dialect: "cobol"}, http.StatusBadRequest},
		{"empty query", http.MethodPost, "/v1/models/retail/entities/Sales/compile", domain.Query{}, http.StatusBadRequest},
		{"unknown measure", http.MethodPost, "/v1/models/retail/entities/Sales/compile",
			domain.Query{Columns: []domain.Axis{{Measure: "Nope"}}}, http.StatusNotFound},
		{"dimension on both axes", http.MethodPost, "/v1/models/retail/entities/Sales/compile", domain.Query{
			Rows:    []domain.Axis{{DimensionRef: domain.DimensionRef{Dimension: "Region"}}},
			Columns: []domain.Axis{{DimensionRef: domain.DimensionRef{Dimension: "Region"}}},
		}, http.StatusUnprocessableEntity},
		{"malformed body", http.MethodPost, "/v1/models/retail/entities/Sales/compile", map[string]any{"rowz": 1}, http.StatusBadRequest},
		{"no executor", http.MethodPost, "/v1/models/retail/entities/Sales/query",
			domain.Query{Columns: []domain.Axis{{Measure: "Amount"}}}, http.StatusNotImplemented},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, tc.method, srv.URL+tc.path, tc.body)
			assert.Equal(t, tc.want, resp.StatusCode)
			body := decodeBody[errorBody](t, resp)
			assert.Equal(t, tc.want, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestAPI_RunQueryAndMembers(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"[Region].[Country]": "[(All)].[DE]", "Amount": 3.0}}}
	srv := setupTestServer(t, exec)
	createRetail(t, srv)

	q := domain.Query{
		Rows:    []domain.Axis{{DimensionRef: domain.DimensionRef{Dimension: "Region", Level: "Country"}}},
		Columns: []domain.Axis{{Measure: "Amount"}},
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/models/retail/entities/Sales/query", q)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[domain.PivotResult](t, resp)
	require.Len(t, result.Data, 1)

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/models/retail/entities/Sales/members", domain.DimensionRef{Dimension: "Region"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stmts := decodeBody[[]domain.MemberStatement](t, resp)
	require.Len(t, stmts, 2)

	exec.rows = []map[string]any{{"memberKey": "[(All)].[DE]", "memberCaption": "DE"}}
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/models/retail/entities/Sales/members?execute=true", domain.DimensionRef{Dimension: "Region"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	levels := decodeBody[[]domain.LevelMembers](t, resp)
	require.Len(t, levels, 2)
	assert.Equal(t, "DE", levels[1].Members[0].Caption)

	exec.err = errors.New("connection refused")
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/models/retail/entities/Sales/query", q)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", decodeBody[errorBody](t, resp).Message)
}

func TestAPI_AddCalculatedMeasure(t *testing.T) {
	srv := setupTestServer(t, nil)
	createRetail(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/models/retail/entities/Sales/measures",
		domain.CalculatedMember{Name: "Double", Formula: "[Measures].[Amount] * 2"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/models/retail/entities/Sales/compile",
		domain.Query{Columns: []domain.Axis{{Measure: "Double"}}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decodeBody[domain.Statement](t, resp).SQL, `AS "Double"`)
}

func TestAPI_RateLimitAndHeaders(t *testing.T) {
	writeDB, _ := internaldb.OpenTestSQLite(t)
	repo := repository.NewModelRepo(writeDB)
	svc := semantic.NewService(repo, semantic.NewRegistry(repo, nil, nil), nil)
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{RequestsPerSecond: 1, Burst: 1, Clock: clock.NewMock()})
	srv := httptest.NewServer(NewRouter(NewHandler(svc, nil, nil), RouterOptions{RateLimiter: limiter}))
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/models", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/models", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPStatusFromDomainError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound("x"), http.StatusNotFound},
		{domain.ErrResolution("x"), http.StatusNotFound},
		{domain.ErrValidation("x"), http.StatusBadRequest},
		{domain.ErrSchemaValidation("x"), http.StatusBadRequest},
		{domain.ErrCompilation("x"), http.StatusUnprocessableEntity},
		{domain.ErrConflict("x"), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, httpStatusFromDomainError(tc.err), tc.err.Error())
	}
}

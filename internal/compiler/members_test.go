package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cubesql/internal/domain"
	"cubesql/internal/schema"
)

func TestLevelMembers(t *testing.T) {
	et := salesEntity(t, duckdb, nil)
	timeRef := domain.DimensionRef{Dimension: "Time"}

	tests := []struct {
		name  string
		ref   domain.DimensionRef
		index int
		want  string
	}{
		{
			name:  "all level",
			ref:   timeRef,
			index: 0,
			want:  `SELECT '[(All)]' AS "memberKey", 'All' AS "memberCaption" FROM "dim_date" AS "time_dim_date" GROUP BY 1`,
		},
		{
			name:  "first level hangs below all",
			ref:   timeRef,
			index: 1,
			want: `SELECT concat('[', '(All)','].[',` + yearKey + `, ']') AS "memberKey", "time_dim_date"."year" AS "memberCaption", '[(All)]' AS "parentKey"` +
				` FROM "dim_date" AS "time_dim_date" GROUP BY "time_dim_date"."year" ORDER BY "time_dim_date"."year"`,
		},
		{
			name:  "degenerate level reads the fact table",
			ref:   domain.DimensionRef{Dimension: "Region"},
			index: 1,
			want: `SELECT concat('[', '(All)','].[',CASE WHEN "sales_sales"."country" IS NULL THEN '#' ELSE "sales_sales"."country" END, ']') AS "memberKey",` +
				` "sales_sales"."country" AS "memberCaption", '[(All)]' AS "parentKey"` +
				` FROM "sales" AS "sales_sales" GROUP BY "sales_sales"."country" ORDER BY "sales_sales"."country"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LevelMembers(et, duckdb, tc.ref, tc.index, Options{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("child level carries the parent key", func(t *testing.T) {
		got, err := LevelMembers(et, duckdb, timeRef, 2, Options{})
		require.NoError(t, err)
		assert.Contains(t, got, `concat('[', '(All)','].[',`+yearKey+`, ']') AS "parentKey"`)
		assert.Contains(t, got, `GROUP BY "time_dim_date"."year", "time_dim_date"."quarter" ORDER BY "time_dim_date"."year", "time_dim_date"."quarter"`)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := LevelMembers(et, duckdb, timeRef, 4, Options{})
		var re *domain.ResolutionError
		assert.ErrorAs(t, err, &re)
	})
}

func TestLevelMembers_Catalog(t *testing.T) {
	et := salesEntity(t, duckdb, nil)
	got, err := LevelMembers(et, duckdb, domain.DimensionRef{Dimension: "Time"}, 0, Options{Catalog: "lake"})
	require.NoError(t, err)
	assert.Contains(t, got, `FROM "lake"."dim_date" AS "time_dim_date"`)
}

func TestDimensionMembers(t *testing.T) {
	et := salesEntity(t, duckdb, nil)

	stmts, err := DimensionMembers(et, duckdb, domain.DimensionRef{Dimension: "Time"}, Options{})
	require.NoError(t, err)
	require.Len(t, stmts, 4)
	assert.Equal(t, "[Time].[(All Times)]", stmts[0].Level)
	assert.Equal(t, "[Time].[Month]", stmts[3].Level)
	for _, s := range stmts {
		assert.Contains(t, s.SQL, `AS "memberKey"`)
	}

	_, err = DimensionMembers(et, duckdb, domain.DimensionRef{Dimension: "Product"}, Options{})
	var re *domain.ResolutionError
	assert.ErrorAs(t, err, &re)
}

func TestDimensionMembers_TableEntity(t *testing.T) {
	table := &domain.TableSchema{
		Name: "orders",
		Columns: []domain.TableColumn{
			{Name: "region", DataType: "VARCHAR"},
			{Name: "amount", DataType: "DOUBLE"},
		},
	}
	et, err := schema.MapTableEntityType("orders", table, duckdb)
	require.NoError(t, err)

	stmts, err := DimensionMembers(et, duckdb, domain.DimensionRef{Dimension: "region"}, Options{})
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, `SELECT DISTINCT "region" AS "memberKey" FROM "orders"`, stmts[0].SQL)
}

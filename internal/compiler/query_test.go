package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
	"cubesql/internal/schema"
)

const (
	yearKey  = `CASE WHEN "time_dim_date"."year" IS NULL THEN '#' ELSE "time_dim_date"."year" END`
	monthKey = `concat('[', '(All)','].[',` + yearKey +
		`,'].[',CASE WHEN "time_dim_date"."quarter" IS NULL THEN '#' ELSE "time_dim_date"."quarter" END` +
		`,'].[',CASE WHEN "time_dim_date"."month" IS NULL THEN '#' ELSE "time_dim_date"."month" END, ']')`
	salesFrom = `FROM "sales" AS "sales_sales" INNER JOIN "dim_date" AS "time_dim_date" ON "sales_sales"."time_id" = "time_dim_date"."id"`
)

func TestCompileQuery_MonthlyAmount(t *testing.T) {
	et := salesEntity(t, duckdb, nil)
	q := domain.Query{
		Rows:    []domain.Axis{levelAxis("Time", "Month")},
		Columns: []domain.Axis{measuresAxis("Amount")},
		TimeRanges: []domain.TimeRangesSlicer{{
			Dimension: domain.DimensionRef{Dimension: "Time"},
			Ranges: []domain.TimeRange{{
				Type:        domain.TimeRangeStandard,
				Granularity: domain.GranularityMonth,
				Start:       "202201",
				End:         "202212",
			}},
		}},
	}

	stmt, err := CompileQuery(et, duckdb, q, Options{Clock: mockClock()})
	require.NoError(t, err)

	want := `SELECT ` + monthKey + ` AS "[Time].[Month]", "time_dim_date"."month" AS "[Time].[Month].[MEMBER_CAPTION]", ` +
		`SUM("sales_sales"."amount") AS "Amount" ` + salesFrom +
		` WHERE (("time_dim_date"."month" > '202201' OR ( "time_dim_date"."month" = '202201' )) AND ("time_dim_date"."month" < '202212' OR ( "time_dim_date"."month" = '202212' )))` +
		` GROUP BY "time_dim_date"."year", "time_dim_date"."quarter", "time_dim_date"."month"` +
		` ORDER BY "time_dim_date"."month"`
	assert.Equal(t, want, stmt.SQL)

	require.Len(t, stmt.Columns, 3)
	assert.Equal(t, domain.RoleMemberKey, stmt.Columns[0].Role)
	assert.Equal(t, "Month", stmt.Columns[0].Level)
	assert.Equal(t, domain.RoleMemberCaption, stmt.Columns[1].Role)
	assert.Equal(t, domain.OutputColumn{Name: "Amount", Role: domain.RoleMeasure, Measure: "Amount"}, stmt.Columns[2])

	require.Len(t, stmt.Axes, 2)
	assert.Equal(t, "[Time].[Month]", stmt.Axes[0].KeyColumn)
	assert.True(t, stmt.Axes[1].IsMeasures())

	rows := []map[string]any{
		{"[Time].[Month]": "[(All)].[2022].[1].[202201]", "[Time].[Month].[MEMBER_CAPTION]": "202201", "Amount": 10.0},
		{"[Time].[Month]": "[(All)].[2022].[1].[202202]", "[Time].[Month].[MEMBER_CAPTION]": "202202", "Amount": 12.5},
	}
	result := Pivot(stmt, rows)
	require.Len(t, result.Data, 2)
	for i, row := range result.Data {
		assert.Equal(t, rows[i]["Amount"], row["Amount"])
		assert.Equal(t, rows[i]["[Time].[Month]"], row["[Time]"])
	}
	require.Len(t, result.Columns, 1)
	assert.Equal(t, "Amount", result.Columns[0].Name)
}

func TestCompileQuery_CastsKeysForUnassignedGuard(t *testing.T) {
	et := salesEntity(t, pg, nil)
	stmt, err := CompileQuery(et, pg, domain.Query{Rows: []domain.Axis{levelAxis("Time", "Year")}}, Options{})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `CASE WHEN "time_dim_date"."year" IS NULL THEN '#' ELSE CAST("time_dim_date"."year" AS VARCHAR) END`)
}

func TestCompileQuery_DefaultMeasure(t *testing.T) {
	et := salesEntity(t, duckdb, nil)
	stmt, err := CompileQuery(et, duckdb, domain.Query{Rows: []domain.Axis{levelAxis("Region", "Country")}}, Options{})
	require.NoError(t, err)

	assert.Contains(t, stmt.SQL, `SUM("sales_sales"."amount") AS "Amount"`)
	// Degenerate dimensions read the fact table and add no join.
	assert.Contains(t, stmt.SQL, `"sales_sales"."country" AS "[Region].[Country].[MEMBER_CAPTION]"`)
	assert.Contains(t, stmt.SQL, `FROM "sales" AS "sales_sales" GROUP BY "sales_sales"."country"`)
	assert.Equal(t, "Amount", stmt.DefaultMeasure)
}

func TestCompileQuery_FiltersAndFilterString(t *testing.T) {
	et := salesEntity(t, duckdb, nil)
	q := domain.Query{
		Rows:         []domain.Axis{levelAxis("Time", "Year")},
		Columns:      []domain.Axis{measuresAxis("Amount")},
		Filters:      []domain.Filter{yearSlicer("[2021]", "[2022]")},
		FilterString: `"sales_sales"."amount" > 0`,
	}
	stmt, err := CompileQuery(et, duckdb, q, Options{})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL,
		` WHERE ("sales_sales"."amount" > 0) AND (("time_dim_date"."year" = 2021) OR ("time_dim_date"."year" = 2022)) GROUP BY`)
}

func TestCompileQuery_AxisMembersRestrictRows(t *testing.T) {
	et := salesEntity(t, duckdb, nil)
	axis := levelAxis("Time", "Year")
	axis.Members = []domain.Member{{Key: "[2020]"}}
	axis.Exclude = true

	stmt, err := CompileQuery(et, duckdb, domain.Query{Rows: []domain.Axis{axis}}, Options{})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, ` WHERE (NOT ("time_dim_date"."year" = 2020)) GROUP BY`)
}

func TestCompileQuery_AdHocCalculatedMeasure(t *testing.T) {
	et := salesEntity(t, duckdb, nil)
	q := domain.Query{
		Rows:               []domain.Axis{levelAxis("Time", "Year")},
		Columns:            []domain.Axis{measuresAxis("Margin", "Double")},
		CalculatedMeasures: []domain.CalculatedMember{{Name: "Double", Formula: "[Measures].[Amount] * 2"}},
	}
	stmt, err := CompileQuery(et, duckdb, q, Options{})
	require.NoError(t, err)

	assert.Contains(t, stmt.SQL, `(SUM("sales_sales"."amount") - SUM("sales_sales"."cost")) / SUM("sales_sales"."amount") AS "Margin"`)
	assert.Contains(t, stmt.SQL, `SUM("sales_sales"."amount") * 2 AS "Double"`)
	assert.NotContains(t, stmt.SQL, "[Measures]")
	assert.Nil(t, et.LookupMeasure("Double", false), "the entity type must not be modified")
}

func TestCompileQuery_MultiLevelAxisUnion(t *testing.T) {
	et := salesEntity(t, duckdb, nil)
	q := domain.Query{
		Rows:    []domain.Axis{{DimensionRef: domain.DimensionRef{Dimension: "Time"}, Levels: []string{"Year", "Month"}}},
		Columns: []domain.Axis{measuresAxis("Amount")},
	}
	stmt, err := CompileQuery(et, duckdb, q, Options{})
	require.NoError(t, err)

	parts := strings.Split(stmt.SQL, ") UNION ALL (")
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(stmt.SQL, "(SELECT "))
	for _, part := range parts {
		assert.Contains(t, part, `AS "[Time]"`)
		assert.Contains(t, part, `AS "[Time].[MEMBER_CAPTION]"`)
		assert.Contains(t, part, `AS "Amount"`)
	}
	assert.Contains(t, parts[0], `GROUP BY "time_dim_date"."year" ORDER BY "time_dim_date"."year"`)
	assert.Contains(t, parts[1], `ORDER BY "time_dim_date"."month"`)
	assert.Empty(t, stmt.Columns[0].Level)
}

func TestCompileQuery_UnionWithoutOrderedOperands(t *testing.T) {
	q := domain.Query{
		Rows:    []domain.Axis{{DimensionRef: domain.DimensionRef{Dimension: "Time"}, Levels: []string{"Year", "Month"}}},
		Columns: []domain.Axis{measuresAxis("Amount")},
	}

	t.Run("sqlite", func(t *testing.T) {
		et := salesEntity(t, sqlite, nil)
		stmt, err := CompileQuery(et, sqlite, q, Options{})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stmt.SQL, "SELECT "), stmt.SQL)
		assert.Equal(t, 1, strings.Count(stmt.SQL, " UNION ALL "))
		assert.NotContains(t, stmt.SQL, "ORDER BY")
		assert.NotContains(t, stmt.SQL, "(SELECT")
	})

	t.Run("mssql window orders outside the derived table", func(t *testing.T) {
		paged := q
		paged.Paging = &domain.Paging{Top: 10}
		et := salesEntity(t, mssql, nil)
		stmt, err := CompileQuery(et, mssql, paged, Options{})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stmt.SQL, "SELECT * FROM (SELECT "), stmt.SQL)
		assert.Equal(t, 1, strings.Count(stmt.SQL, "ORDER BY"))
		assert.True(t, strings.HasSuffix(stmt.SQL, `) AS LIMIT_ALIAS ORDER BY (SELECT NULL) OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY`), stmt.SQL)
	})

	t.Run("mssql single level drops the inner ordinal order", func(t *testing.T) {
		et := salesEntity(t, mssql, nil)
		stmt, err := CompileQuery(et, mssql, domain.Query{
			Rows:     []domain.Axis{levelAxis("Time", "Year")},
			OrderBys: []domain.OrderBy{{By: "Amount"}},
		}, Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(stmt.SQL, "ORDER BY"), stmt.SQL)
		assert.Contains(t, stmt.SQL, `) AS LIMIT_ALIAS ORDER BY "Amount" ASC`)
	})
}

func TestCompileQuery_MultiTableFact(t *testing.T) {
	cube := domain.Cube{
		Name: "Orders",
		Tables: []domain.Table{
			{Name: "orders"},
			{Name: "order_lines", Join: &domain.Join{Fields: []domain.JoinField{{LeftKey: "id", RightKey: "order_id"}}}},
			{Name: "order_lines", Join: &domain.Join{Type: "left", Fields: []domain.JoinField{{LeftKey: "parent_line_id", RightKey: "id"}}}},
		},
		Dimensions: []domain.Dimension{{
			Name:        "Status",
			Hierarchies: []domain.Hierarchy{{Levels: []domain.Level{{Name: "Status", Column: "status", Type: domain.LevelTypeString}}}},
		}},
		Measures: []domain.Measure{{Name: "Qty", Column: "order_lines.qty", Aggregator: domain.AggregatorSum}},
	}
	et, err := schema.CompileCube(cube, duckdb)
	require.NoError(t, err)

	stmt, err := CompileQuery(et, duckdb, domain.Query{Rows: []domain.Axis{levelAxis("Status", "")}}, Options{})
	require.NoError(t, err)

	assert.Contains(t, stmt.SQL, `FROM "orders" AS "orders_orders"`+
		` INNER JOIN "order_lines" AS "orders_order_lines" ON "orders_orders"."id" = "orders_order_lines"."order_id"`+
		` LEFT JOIN "order_lines" AS "orders_order_lines(1)" ON "orders_order_lines"."parent_line_id" = "orders_order_lines(1)"."id"`)
	assert.Contains(t, stmt.SQL, `SUM("orders_order_lines"."qty") AS "Qty"`)
	assert.Contains(t, stmt.SQL, `concat('[', CASE WHEN "orders_orders"."status" IS NULL THEN '#' ELSE "orders_orders"."status" END, ']') AS "[Status].[Status]"`)
}

func TestCompileQuery_ParentChild(t *testing.T) {
	cube := domain.Cube{
		Name:   "HR",
		Tables: []domain.Table{{Name: "payroll"}},
		Dimensions: []domain.Dimension{{
			Name:       "Employee",
			ForeignKey: "employee_id",
			Hierarchies: []domain.Hierarchy{{
				PrimaryKey: "id",
				Tables:     []domain.Table{{Name: "employees"}},
				Levels: []domain.Level{{
					Name:          "Employee",
					Column:        "id",
					CaptionColumn: "full_name",
					ParentColumn:  "manager_id",
					Type:          domain.LevelTypeString,
				}},
			}},
		}},
		Measures: []domain.Measure{{Name: "Salary", Column: "salary", Aggregator: domain.AggregatorSum}},
	}
	et, err := schema.CompileCube(cube, duckdb)
	require.NoError(t, err)

	stmt, err := CompileQuery(et, duckdb, domain.Query{Rows: []domain.Axis{levelAxis("Employee", "")}}, Options{})
	require.NoError(t, err)

	assert.Contains(t, stmt.SQL, `FROM "payroll" AS "hr_payroll"`+
		` INNER JOIN "employees" AS "employee_employees" ON "hr_payroll"."employee_id" = "employee_employees"."id"`+
		` LEFT JOIN "employees" AS "employee_employees(1)" ON "employee_employees"."manager_id" = "employee_employees(1)"."id"`)
	assert.Contains(t, stmt.SQL, `concat('[', CASE WHEN "employee_employees(1)"."id" IS NULL THEN '#' ELSE "employee_employees(1)"."id" END, ']') AS "[Employee].[Employee].[PARENT_UNIQUE_NAME]"`)
	assert.Contains(t, stmt.SQL, `GROUP BY "employee_employees"."id", "employee_employees"."full_name", "employee_employees(1)"."id"`)

	require.Len(t, stmt.Axes, 1)
	assert.Equal(t, "[Employee].[Employee].[PARENT_UNIQUE_NAME]", stmt.Axes[0].ParentColumn)
	assert.Equal(t, domain.RoleParentKey, stmt.Columns[2].Role)
	assert.Equal(t, "[Employee]", Pivot(stmt, nil).RowHierarchy)
}

func TestCompileQuery_ViewCube(t *testing.T) {
	cube := domain.Cube{
		Name:       "Live",
		View:       &domain.View{Alias: "v", SQL: domain.SQLExpression{Dialect: "duckdb", Content: "SELECT * FROM events"}},
		Dimensions: []domain.Dimension{regionDimension()},
		Measures:   []domain.Measure{{Name: "Hits", Column: "hits"}},
	}
	et, err := schema.CompileCube(cube, duckdb)
	require.NoError(t, err)

	stmt, err := CompileQuery(et, duckdb, domain.Query{Rows: []domain.Axis{levelAxis("Region", "Country")}}, Options{})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `SUM("live_v"."hits") AS "Hits" FROM (SELECT * FROM events) AS "live_v" GROUP BY "live_v"."country"`)

	_, err = CompileQuery(et, mssql, domain.Query{Rows: []domain.Axis{levelAxis("Region", "Country")}}, Options{})
	var ce *domain.CompilationError
	assert.ErrorAs(t, err, &ce)
}

func TestCompileQuery_DimensionEntity(t *testing.T) {
	et, err := schema.CompileDimensionEntity(timeDimension(), duckdb)
	require.NoError(t, err)

	stmt, err := CompileQuery(et, duckdb, domain.Query{Rows: []domain.Axis{levelAxis("Time", "Year")}}, Options{})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `SUM(1) AS "__rows__" FROM "dim_date" AS "time_dim_date" GROUP BY "time_dim_date"."year"`)
}

func TestCompileQuery_OrderingAndPaging(t *testing.T) {
	et := salesEntity(t, duckdb, nil)
	base := domain.Query{
		Rows:    []domain.Axis{levelAxis("Time", "Year")},
		Columns: []domain.Axis{measuresAxis("Amount")},
	}

	tests := []struct {
		name    string
		mutate  func(q *domain.Query)
		dialect string
		suffix  string
	}{
		{
			name: "order and top",
			mutate: func(q *domain.Query) {
				q.OrderBys = []domain.OrderBy{{By: "Amount", Order: "desc"}}
				q.Paging = &domain.Paging{Top: 10}
			},
			dialect: "duckdb",
			suffix:  `) AS LIMIT_ALIAS ORDER BY "Amount" DESC LIMIT 10`,
		},
		{
			name: "offset fetch",
			mutate: func(q *domain.Query) {
				q.OrderBys = []domain.OrderBy{{By: "[Measures].[Amount]", Order: domain.OrderDesc}}
				q.Paging = &domain.Paging{Top: 10}
			},
			dialect: "mssql",
			suffix:  `) AS LIMIT_ALIAS ORDER BY "Amount" DESC OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY`,
		},
		{
			name: "offset fetch without order",
			mutate: func(q *domain.Query) {
				q.Paging = &domain.Paging{Top: 5, Skip: 20}
			},
			dialect: "mssql",
			suffix:  `) AS LIMIT_ALIAS ORDER BY (SELECT NULL) OFFSET 20 ROWS FETCH NEXT 5 ROWS ONLY`,
		},
		{
			name: "skip only",
			mutate: func(q *domain.Query) {
				q.Paging = &domain.Paging{Skip: 20}
			},
			dialect: "duckdb",
			suffix:  `) AS LIMIT_ALIAS OFFSET 20`,
		},
		{
			name: "order by dimension",
			mutate: func(q *domain.Query) {
				q.OrderBys = []domain.OrderBy{{By: "Time"}}
			},
			dialect: "duckdb",
			suffix:  `) AS LIMIT_ALIAS ORDER BY "[Time].[Year]" ASC`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := base
			tc.mutate(&q)
			stmt, err := CompileQuery(et, dialectFor(tc.dialect), q, Options{})
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(stmt.SQL, "SELECT * FROM (SELECT "), stmt.SQL)
			assert.True(t, strings.HasSuffix(stmt.SQL, tc.suffix), stmt.SQL)
		})
	}

	t.Run("no window leaves the statement bare", func(t *testing.T) {
		stmt, err := CompileQuery(et, duckdb, base, Options{})
		require.NoError(t, err)
		assert.NotContains(t, stmt.SQL, "LIMIT_ALIAS")
	})
}

func dialectFor(name string) dialect.Dialect {
	switch name {
	case "mssql":
		return mssql
	case "pg":
		return pg
	}
	return duckdb
}

func TestCompileQuery_Errors(t *testing.T) {
	et := salesEntity(t, duckdb, nil)

	var validation *domain.ValidationError
	var resolution *domain.ResolutionError
	var compilation *domain.CompilationError

	tests := []struct {
		name   string
		query  domain.Query
		target any
	}{
		{
			name:   "empty query",
			query:  domain.Query{},
			target: &validation,
		},
		{
			name: "unknown measure",
			query: domain.Query{
				Rows:    []domain.Axis{levelAxis("Time", "Year")},
				Columns: []domain.Axis{measuresAxis("Nope")},
			},
			target: &resolution,
		},
		{
			name:   "unknown level",
			query:  domain.Query{Rows: []domain.Axis{levelAxis("Time", "Week")}},
			target: &resolution,
		},
		{
			name: "dimension on two axes",
			query: domain.Query{
				Rows:    []domain.Axis{levelAxis("Time", "Year")},
				Columns: []domain.Axis{levelAxis("Time", "Month")},
			},
			target: &compilation,
		},
		{
			name: "two hierarchies of one dimension",
			query: domain.Query{
				Rows:    []domain.Axis{levelAxis("Time", "Year")},
				Columns: []domain.Axis{{DimensionRef: domain.DimensionRef{Dimension: "Time", Hierarchy: "Fiscal"}}},
			},
			target: &compilation,
		},
		{
			name: "unknown order by",
			query: domain.Query{
				Rows:     []domain.Axis{levelAxis("Time", "Year")},
				OrderBys: []domain.OrderBy{{By: "Nope"}},
			},
			target: &resolution,
		},
		{
			name: "unknown property",
			query: domain.Query{
				Rows: []domain.Axis{{DimensionRef: domain.DimensionRef{Dimension: "Time", Level: "Year", Properties: []string{"Weekday"}}}},
			},
			target: &resolution,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CompileQuery(et, duckdb, tc.query, Options{})
			require.Error(t, err)
			assert.ErrorAs(t, err, tc.target)
		})
	}
}

func TestCompileDimension(t *testing.T) {
	et := salesEntity(t, duckdb, nil)

	stmt, err := CompileDimension(et, duckdb, domain.DimensionRef{Dimension: "Time", Level: "Month"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, `SELECT `+monthKey+` AS "[Time].[Month]", "time_dim_date"."month" AS "[Time].[Month].[MEMBER_CAPTION]"`+
		` FROM "dim_date" AS "time_dim_date"`+
		` GROUP BY "time_dim_date"."year", "time_dim_date"."quarter", "time_dim_date"."month"`+
		` ORDER BY "time_dim_date"."month"`, stmt.SQL)
	require.Len(t, stmt.Columns, 2)
	assert.Equal(t, domain.RoleMemberKey, stmt.Columns[0].Role)
	assert.Equal(t, domain.RoleMemberCaption, stmt.Columns[1].Role)
}

func TestKeyColumns_OneSegmentPerLevel(t *testing.T) {
	et := salesEntity(t, duckdb, nil)
	c := newQueryContext(et, duckdb, Options{})
	dc, err := c.dimension(domain.DimensionRef{Dimension: "Time"})
	require.NoError(t, err)

	cols := dc.keyColumns(3)
	require.Len(t, cols, 4)
	assert.Equal(t, "'(All)'", cols[0].expression)
	assert.Equal(t, "month", cols[3].name)
	assert.Equal(t, "time_dim_date", cols[3].table)
}

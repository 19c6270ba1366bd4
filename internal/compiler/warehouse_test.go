package compiler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cubesql/internal/discovery"
	"cubesql/internal/domain"
)

// openWarehouse opens an in-memory database holding the sales fixture the
// sales cube is modeled on.
func openWarehouse(t *testing.T, driver discovery.Driver) *discovery.Adapter {
	t.Helper()
	dsn := ""
	if driver == discovery.DriverSQLite {
		dsn = ":memory:"
	}
	a, err := discovery.Open(driver, dsn, nil)
	require.NoError(t, err)
	// Every connection to :memory: is a new database.
	a.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { _ = a.Close() })

	for _, stmt := range []string{
		`CREATE TABLE dim_date (id INTEGER, year INTEGER, quarter VARCHAR, month VARCHAR, fiscal_year INTEGER)`,
		`INSERT INTO dim_date VALUES (1, 2021, 'Q1', '202101', 2021), (2, 2022, 'Q1', '202201', 2022), (3, 2022, 'Q2', '202204', 2022)`,
		`CREATE TABLE sales (time_id INTEGER, amount DOUBLE, cost DOUBLE, order_id VARCHAR, country VARCHAR, city VARCHAR, city_name VARCHAR)`,
		`INSERT INTO sales VALUES
			(1, 100, 60, 'o1', 'DE', 'ber', 'Berlin'),
			(2, 50, 20, 'o2', 'DE', 'ber', 'Berlin'),
			(3, 30, 10, 'o3', 'FR', 'par', 'Paris')`,
	} {
		_, err := a.DB().Exec(stmt)
		require.NoError(t, err)
	}
	return a
}

func TestWarehouse_SQLiteMultiLevelUnion(t *testing.T) {
	a := openWarehouse(t, discovery.DriverSQLite)
	et := salesEntity(t, sqlite, nil)
	axis := domain.Axis{DimensionRef: domain.DimensionRef{Dimension: "Time"}, Levels: []string{"Year", "Month"}}

	tests := []struct {
		name  string
		query domain.Query
		want  map[string]float64
	}{
		{
			name:  "bare union",
			query: domain.Query{Rows: []domain.Axis{axis}, Columns: []domain.Axis{measuresAxis("Amount")}},
			want:  map[string]float64{"2021": 100, "2022": 80, "202101": 100, "202201": 50, "202204": 30},
		},
		{
			name: "ordered and paged",
			query: domain.Query{
				Rows:     []domain.Axis{axis},
				Columns:  []domain.Axis{measuresAxis("Amount")},
				OrderBys: []domain.OrderBy{{By: "Amount", Order: domain.OrderDesc}},
				Paging:   &domain.Paging{Top: 2},
			},
			want: map[string]float64{"2021": 100, "202101": 100},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stmt, err := CompileQuery(et, sqlite, tc.query, Options{})
			require.NoError(t, err)

			rows, err := a.Query(context.Background(), stmt.SQL)
			require.NoError(t, err, stmt.SQL)
			got := map[string]float64{}
			for _, row := range rows {
				amount, ok := row["Amount"].(float64)
				require.True(t, ok, "Amount is %T", row["Amount"])
				got[cellText(row["[Time].[MEMBER_CAPTION]"])] = amount
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWarehouse_RestrictedMeasuresInGroupedQuery(t *testing.T) {
	a := openWarehouse(t, discovery.DriverDuckDB)
	et := salesEntity(t, duckdb, func(c *domain.Cube) {
		c.CalculatedMembers = append(c.CalculatedMembers,
			domain.CalculatedMember{
				Name:            "Profit2022",
				CalculationType: domain.CalculationRestricted,
				Measure:         "Profit",
				Slicers:         []domain.Filter{yearSlicer("[2022]")},
			},
			domain.CalculatedMember{
				Name:            "PreAggregatedProfit2022",
				CalculationType: domain.CalculationRestricted,
				Measure:         "Profit",
				Aggregator:      domain.AggregatorSum,
				Slicers:         []domain.Filter{yearSlicer("[2022]")},
			},
		)
	})

	stmt, err := CompileQuery(et, duckdb, domain.Query{
		Rows:    []domain.Axis{levelAxis("Region", "Country")},
		Columns: []domain.Axis{measuresAxis("Sales2022", "Profit2022", "PreAggregatedProfit2022")},
	}, Options{})
	require.NoError(t, err)

	rows, err := a.Query(context.Background(), stmt.SQL)
	require.NoError(t, err, stmt.SQL)
	require.Len(t, rows, 2)

	want := map[string][3]float64{"DE": {50, 30, 30}, "FR": {30, 20, 20}}
	for _, row := range rows {
		country := cellText(row["[Region].[Country].[MEMBER_CAPTION]"])
		w, ok := want[country]
		require.True(t, ok, "unexpected country %q", country)
		assert.InDelta(t, w[0], row["Sales2022"], 1e-9, country)
		assert.InDelta(t, w[1], row["Profit2022"], 1e-9, country)
		assert.InDelta(t, w[2], row["PreAggregatedProfit2022"], 1e-9, country)
	}
}

func cellText(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

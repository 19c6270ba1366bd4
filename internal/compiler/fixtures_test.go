package compiler

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
	"cubesql/internal/schema"
)

var (
	duckdb = dialect.MustLookup("duckdb")
	pg     = dialect.MustLookup("pg")
	mssql  = dialect.MustLookup("mssql")
	sqlite = dialect.MustLookup("sqlite")
)

func timeDimension() domain.Dimension {
	return domain.Dimension{
		Name:       "Time",
		ForeignKey: "time_id",
		Semantic:   domain.SemanticCalendar,
		Hierarchies: []domain.Hierarchy{
			{
				HasAll:     true,
				PrimaryKey: "id",
				Tables:     []domain.Table{{Name: "dim_date"}},
				Levels: []domain.Level{
					{Name: "Year", Column: "year", Type: domain.LevelTypeInteger,
						Semantics: &domain.LevelSemantics{Semantic: domain.SemanticCalendarYear}},
					{Name: "Quarter", Column: "quarter"},
					{Name: "Month", Column: "month",
						Semantics: &domain.LevelSemantics{Semantic: domain.SemanticCalendarMonth}},
				},
			},
			{
				Name:       "Fiscal",
				PrimaryKey: "id",
				Tables:     []domain.Table{{Name: "dim_date"}},
				Levels:     []domain.Level{{Name: "FiscalYear", Column: "fiscal_year"}},
			},
		},
	}
}

func regionDimension() domain.Dimension {
	return domain.Dimension{
		Name: "Region",
		Hierarchies: []domain.Hierarchy{{
			HasAll: true,
			Levels: []domain.Level{
				{Name: "Country", Column: "country"},
				{Name: "City", Column: "city", CaptionColumn: "city_name"},
			},
		}},
	}
}

func yearSlicer(keys ...string) domain.Filter {
	members := make([]domain.Member, 0, len(keys))
	for _, k := range keys {
		members = append(members, domain.Member{Key: k})
	}
	return domain.SlicerFilter(domain.Slicer{
		Dimension: domain.DimensionRef{Dimension: "Time"},
		Members:   members,
	})
}

func salesCube() domain.Cube {
	return domain.Cube{
		Name:       "Sales",
		Tables:     []domain.Table{{Name: "sales"}},
		Dimensions: []domain.Dimension{timeDimension(), regionDimension()},
		Measures: []domain.Measure{
			{Name: "Amount", Column: "amount", Aggregator: domain.AggregatorSum},
			{Name: "Cost", Column: "cost", Aggregator: domain.AggregatorSum},
			{Name: "Orders", Column: "order_id", Aggregator: domain.AggregatorDistinctCount},
		},
		CalculatedMembers: []domain.CalculatedMember{
			{Name: "Profit", Formula: "[Measures].[Amount] - [Measures].[Cost]"},
			{Name: "Margin", Formula: "[Measures].[Profit] / [Measures].[Amount]"},
			{
				Name:            "Sales2022",
				CalculationType: domain.CalculationRestricted,
				Measure:         "Amount",
				Slicers:         []domain.Filter{yearSlicer("[2022]")},
			},
		},
	}
}

// salesEntity compiles the sales cube after applying mutate.
func salesEntity(t *testing.T, d dialect.Dialect, mutate func(c *domain.Cube)) *domain.EntityType {
	t.Helper()
	cube := salesCube()
	if mutate != nil {
		mutate(&cube)
	}
	et, err := schema.CompileCube(cube, d)
	require.NoError(t, err)
	return et
}

func mockClock() *clock.Mock {
	c := clock.NewMock()
	c.Set(time.Date(2022, time.May, 1, 10, 30, 0, 0, time.UTC))
	return c
}

func measuresAxis(names ...string) domain.Axis {
	members := make([]domain.Member, 0, len(names))
	for _, n := range names {
		members = append(members, domain.Member{Key: n})
	}
	return domain.Axis{DimensionRef: domain.DimensionRef{Dimension: domain.MeasuresDimension}, Members: members}
}

func levelAxis(dim, level string) domain.Axis {
	return domain.Axis{DimensionRef: domain.DimensionRef{Dimension: dim, Level: level}}
}

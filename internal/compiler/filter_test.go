package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cubesql/internal/domain"
)

func TestCompileFilters(t *testing.T) {
	et := salesEntity(t, duckdb, nil)

	region := func(level string, m domain.Member) domain.Filter {
		return domain.SlicerFilter(domain.Slicer{
			Dimension: domain.DimensionRef{Dimension: "Region", Level: level},
			Members:   []domain.Member{m},
		})
	}
	slicer := func(op domain.FilterOperator, exclude bool, keys ...string) domain.Filter {
		f := yearSlicer(keys...)
		f.Operator = op
		f.Exclude = exclude
		return f
	}

	tests := []struct {
		name    string
		filters []domain.Filter
		want    string
	}{
		{
			name:    "members are or-ed",
			filters: []domain.Filter{yearSlicer("[2021]", "[2022]")},
			want:    `(("time_dim_date"."year" = 2021) OR ("time_dim_date"."year" = 2022))`,
		},
		{
			name:    "exclude negates each member",
			filters: []domain.Filter{slicer("", true, "[2021]", "[2022]")},
			want:    `(NOT ("time_dim_date"."year" = 2021) AND NOT ("time_dim_date"."year" = 2022))`,
		},
		{
			name:    "unassigned segment",
			filters: []domain.Filter{yearSlicer("[2022].[#]")},
			want:    `(("time_dim_date"."year" = 2022 AND "time_dim_date"."quarter" IS NULL))`,
		},
		{
			name:    "all segment is dropped",
			filters: []domain.Filter{yearSlicer("[(All)].[2022]")},
			want:    `(("time_dim_date"."year" = 2022))`,
		},
		{
			name:    "all member matches everything",
			filters: []domain.Filter{yearSlicer("[(All)]")},
			want:    "",
		},
		{
			name:    "excluded all member matches nothing",
			filters: []domain.Filter{slicer("", true, "[2021]", "[(All)]")},
			want:    `(1 = 0)`,
		},
		{
			name: "segments end on the named level",
			filters: []domain.Filter{domain.SlicerFilter(domain.Slicer{
				Dimension: domain.DimensionRef{Dimension: "Time", Level: "Month"},
				Members:   []domain.Member{{Key: "[202205]"}},
			})},
			want: `(("time_dim_date"."month" = '202205'))`,
		},
		{
			name:    "greater than compares tuples",
			filters: []domain.Filter{slicer(domain.OperatorGT, false, "[2022].[2]")},
			want:    `(("time_dim_date"."year" > 2022 OR ( "time_dim_date"."year" = 2022 AND "time_dim_date"."quarter" > '2' )))`,
		},
		{
			name:    "not equal",
			filters: []domain.Filter{slicer(domain.OperatorNE, false, "[2022]")},
			want:    `((NOT ("time_dim_date"."year" = 2022)))`,
		},
		{
			name:    "between",
			filters: []domain.Filter{slicer(domain.OperatorBT, false, "[2020]", "[2022]")},
			want:    `(("time_dim_date"."year" > 2020 OR ( "time_dim_date"."year" = 2020 )) AND ("time_dim_date"."year" < 2022 OR ( "time_dim_date"."year" = 2022 )))`,
		},
		{
			name:    "excluded between",
			filters: []domain.Filter{slicer(domain.OperatorBT, true, "[2020]", "[2022]")},
			want:    `(NOT (("time_dim_date"."year" > 2020 OR ( "time_dim_date"."year" = 2020 )) AND ("time_dim_date"."year" < 2022 OR ( "time_dim_date"."year" = 2022 ))))`,
		},
		{
			name:    "contains on a level matches its caption column",
			filters: []domain.Filter{region("City", domain.Member{Caption: "Ber", Operator: domain.FuzzyContains})},
			want:    `(("sales_sales"."city_name" LIKE '%Ber%'))`,
		},
		{
			name:    "not contains without a level checks every level",
			filters: []domain.Filter{region("", domain.Member{Value: "Ber", Operator: domain.FuzzyNotContains})},
			want:    `(("sales_sales"."country" NOT LIKE '%Ber%' AND "sales_sales"."city_name" NOT LIKE '%Ber%'))`,
		},
		{
			name:    "starts with quotes the pattern",
			filters: []domain.Filter{region("Country", domain.Member{Caption: "O'B", Operator: domain.FuzzyStartsWith})},
			want:    `(("sales_sales"."country" LIKE 'O''B%'))`,
		},
		{
			name: "advanced or",
			filters: []domain.Filter{{
				FilteringLogic: domain.LogicOr,
				Children:       []domain.Filter{yearSlicer("[2021]"), region("", domain.Member{Key: "[DE]"})},
			}},
			want: `((("time_dim_date"."year" = 2021)) OR (("sales_sales"."country" = 'DE')))`,
		},
		{
			name:    "filters are and-ed",
			filters: []domain.Filter{yearSlicer("[2021]"), region("", domain.Member{Key: "[DE]"})},
			want:    `(("time_dim_date"."year" = 2021)) AND (("sales_sales"."country" = 'DE'))`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CompileFilters(et, duckdb, tc.filters)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCompileFilters_Errors(t *testing.T) {
	et := salesEntity(t, duckdb, nil)

	var validation *domain.ValidationError
	var resolution *domain.ResolutionError

	tests := []struct {
		name   string
		filter domain.Filter
		target any
	}{
		{
			name:   "between needs two members",
			filter: domain.SlicerFilter(domain.Slicer{Dimension: domain.DimensionRef{Dimension: "Time"}, Members: []domain.Member{{Key: "[2020]"}}, Operator: domain.OperatorBT}),
			target: &validation,
		},
		{
			name:   "unknown operator",
			filter: domain.SlicerFilter(domain.Slicer{Dimension: domain.DimensionRef{Dimension: "Time"}, Members: []domain.Member{{Key: "[2020]"}}, Operator: "LIKE"}),
			target: &validation,
		},
		{
			name:   "non numeric value on an integer level",
			filter: yearSlicer("[twenty]"),
			target: &validation,
		},
		{
			name:   "special float on an integer level",
			filter: yearSlicer("[NaN]"),
			target: &validation,
		},
		{
			name:   "hex float on an integer level",
			filter: yearSlicer("[0x1p-2]"),
			target: &validation,
		},
		{
			name:   "more segments than levels",
			filter: yearSlicer("[2022].[1].[202201].[x]"),
			target: &resolution,
		},
		{
			name:   "unknown dimension",
			filter: domain.SlicerFilter(domain.Slicer{Dimension: domain.DimensionRef{Dimension: "Product"}, Members: []domain.Member{{Key: "[a]"}}}),
			target: &resolution,
		},
		{
			name:   "measures dimension",
			filter: domain.SlicerFilter(domain.Slicer{Dimension: domain.DimensionRef{Dimension: "[Measures]"}, Members: []domain.Member{{Key: "Amount"}}}),
			target: &validation,
		},
		{
			name:   "unknown logic",
			filter: domain.Filter{FilteringLogic: "Xor", Children: []domain.Filter{yearSlicer("[2021]")}},
			target: &validation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CompileFilters(et, duckdb, []domain.Filter{tc.filter})
			require.Error(t, err)
			assert.ErrorAs(t, err, tc.target)
		})
	}
}

func TestCompileFilters_ConflictingHierarchies(t *testing.T) {
	et := salesEntity(t, duckdb, nil)
	fiscal := domain.SlicerFilter(domain.Slicer{
		Dimension: domain.DimensionRef{Dimension: "Time", Hierarchy: "Fiscal"},
		Members:   []domain.Member{{Key: "[2022]"}},
	})

	_, err := CompileFilters(et, duckdb, []domain.Filter{yearSlicer("[2022]"), fiscal})
	var ce *domain.CompilationError
	assert.ErrorAs(t, err, &ce)
}

package declarative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cubesql/internal/domain"
)

func loadRetail(t *testing.T) *Bundle {
	t.Helper()
	b, err := LoadDirectory("testdata/retail")
	require.NoError(t, err)
	return b
}

func TestValidate_Retail(t *testing.T) {
	assert.Empty(t, Validate(loadRetail(t)))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(b *Bundle)
		wantErr string
	}{
		{
			name:    "unknown dialect",
			mutate:  func(b *Bundle) { b.Dialect = "cobol" },
			wantErr: "cobol",
		},
		{
			name: "duplicate cube",
			mutate: func(b *Bundle) {
				b.Schema.Cubes = append(b.Schema.Cubes, b.Schema.Cubes[0])
			},
			wantErr: `cube "Sales" is declared twice`,
		},
		{
			name: "dangling usage",
			mutate: func(b *Bundle) {
				b.Schema.Cubes[0].DimensionUsages[0].Source = "Time"
			},
			wantErr: `unknown dimension "Time"`,
		},
		{
			name: "indicator without formula or measure",
			mutate: func(b *Bundle) {
				b.Schema.Indicators = append(b.Schema.Indicators, domain.Indicator{Code: "EMPTY", Entity: "Sales"})
			},
			wantErr: "indicator[EMPTY]: indicator needs a formula or a measure",
		},
		{
			name: "indicator on unknown measure",
			mutate: func(b *Bundle) {
				b.Schema.Indicators[0].Measure = "Quantity"
			},
			wantErr: `measure "Quantity" not found in "Sales"`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := loadRetail(t)
			tc.mutate(b)
			errs := Validate(b)
			require.NotEmpty(t, errs)
			assert.Contains(t, errs[0].Error(), tc.wantErr)
		})
	}
}

func TestValidate_IndicatorOnOverrideMeasure(t *testing.T) {
	b := loadRetail(t)
	b.Schema.Indicators = append(b.Schema.Indicators, domain.Indicator{Code: "MARGIN_DE", Entity: "Sales", Measure: "Margin"})
	assert.Empty(t, Validate(b))
}

func TestValidate_IndicatorOnDiscoveredEntity(t *testing.T) {
	b := loadRetail(t)
	b.Schema.Indicators = append(b.Schema.Indicators, domain.Indicator{Code: "RET", Entity: "returns", Measure: "qty"})
	assert.Empty(t, Validate(b))
}

package semantic

import (
	"strings"

	"cubesql/internal/domain"
)

// IndicatorMeasures returns the measures an indicator contributes to its
// entity. A visible restricted measure named by the indicator code applies
// the indicator filters; when the indicator has a formula, the restriction
// wraps a hidden, aggregation-free calculated measure holding it.
func IndicatorMeasures(entity string, ind domain.Indicator) ([]*domain.RuntimeMeasure, error) {
	code := ind.Code
	if code == "" {
		code = ind.Name
	}
	if code == "" {
		return nil, domain.ErrSchemaValidation("indicator of %q has neither code nor name", entity)
	}
	caption := ind.Name
	if caption == "" {
		caption = code
	}

	var out []*domain.RuntimeMeasure
	base := ind.Measure
	if strings.TrimSpace(ind.Formula) != "" {
		base = hiddenIndicatorMeasure(code)
		out = append(out, &domain.RuntimeMeasure{
			Name:        base,
			Caption:     caption,
			Entity:      entity,
			Visible:     false,
			Calculation: domain.Calculated{Formula: ind.Formula},
		})
	}
	if base == "" {
		return nil, domain.ErrSchemaValidation("indicator %q of %q has neither formula nor measure", code, entity)
	}

	out = append(out, &domain.RuntimeMeasure{
		Name:       code,
		Caption:    caption,
		Entity:     entity,
		Aggregator: ind.Aggregator,
		Unit:       ind.Unit,
		Visible:    domain.BoolValue(ind.Visible, true),
		Calculation: domain.Restricted{
			Measure:       base,
			Slicers:       ind.Filters,
			FromIndicator: true,
		},
	})
	return out, nil
}

func hiddenIndicatorMeasure(code string) string {
	return "__" + code + "__"
}

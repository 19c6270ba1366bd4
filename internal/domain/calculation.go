package domain

import "strings"

// CalculationType tags the variant of a calculated property.
type CalculationType string

// Calculation kinds.
const (
	CalculationCalculated  CalculationType = "Calculated"
	CalculationRestricted  CalculationType = "Restricted"
	CalculationAggregation CalculationType = "Aggregation"
	CalculationVariance    CalculationType = "Variance"
	CalculationIndicator   CalculationType = "Indicator"
)

// Calculation is the runtime form of a calculated property. The set of
// implementations is closed: Calculated, Restricted, Aggregation, Variance.
type Calculation interface {
	Kind() CalculationType
	calculation()
}

// Calculated is a formula over other measures, referenced as [Measures].[Name].
type Calculated struct {
	Formula string
}

// Restricted filters a base measure by slicers. Indicator wrappers are
// Restricted values with FromIndicator set.
type Restricted struct {
	Measure       string
	Slicers       []Filter
	FromIndicator bool
}

// Aggregation aggregates a measure over a set of dimensions.
type Aggregation struct {
	Operation  string
	Measure    string
	Value      float64
	Dimensions []DimensionRef
}

// Variance compares a measure between two slices.
type Variance struct {
	Measure  string
	CompareA *Slicer
	ToB      *Slicer
}

func (Calculated) Kind() CalculationType  { return CalculationCalculated }
func (Aggregation) Kind() CalculationType { return CalculationAggregation }
func (Variance) Kind() CalculationType    { return CalculationVariance }

func (r Restricted) Kind() CalculationType {
	if r.FromIndicator {
		return CalculationIndicator
	}
	return CalculationRestricted
}

func (Calculated) calculation()  {}
func (Restricted) calculation()  {}
func (Aggregation) calculation() {}
func (Variance) calculation()    {}

// Calculation converts the authored member into its runtime variant.
// An empty CalculationType means Calculated.
func (m *CalculatedMember) Calculation() (Calculation, error) {
	kind := CalculationType(strings.TrimSpace(string(m.CalculationType)))
	if kind == "" {
		kind = CalculationCalculated
	}
	switch kind {
	case CalculationCalculated:
		if strings.TrimSpace(m.Formula) == "" {
			return nil, ErrSchemaValidation("calculated member %q has no formula", m.Name)
		}
		return Calculated{Formula: m.Formula}, nil
	case CalculationRestricted, CalculationIndicator:
		return Restricted{
			Measure:       m.Measure,
			Slicers:       m.Slicers,
			FromIndicator: kind == CalculationIndicator,
		}, nil
	case CalculationAggregation:
		return Aggregation{Operation: m.Operation, Measure: m.Measure, Value: m.Value, Dimensions: m.Dimensions}, nil
	case CalculationVariance:
		return Variance{Measure: m.Measure, CompareA: m.CompareA, ToB: m.ToB}, nil
	default:
		return nil, ErrSchemaValidation("calculated member %q has unknown calculation type %q", m.Name, m.CalculationType)
	}
}

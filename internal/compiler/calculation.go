package compiler

import (
	"regexp"
	"strings"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
	"cubesql/internal/formula"
	"cubesql/internal/naming"
)

// measure serializes m. With aggregate set, the result is an aggregate
// expression; otherwise it is the row-level expression.
func (c *queryContext) measure(m *domain.RuntimeMeasure, aggregate bool) (string, error) {
	if c.visiting[m.Name] {
		return "", domain.ErrCompilation("measure %q of %q references itself", m.Name, c.et.Name)
	}
	c.visiting[m.Name] = true
	defer delete(c.visiting, m.Name)

	switch calc := m.Calculation.(type) {
	case nil:
		return c.baseMeasure(m, aggregate)
	case domain.Calculated:
		return c.calculated(m, calc, aggregate)
	case domain.Restricted:
		return c.restricted(m, calc, aggregate)
	default:
		return "", domain.ErrCompilation("unimplemented calculation kind %q on measure %q of %q", m.Calculation.Kind(), m.Name, c.et.Name)
	}
}

// baseMeasure resolves the column of a stored measure: a dialect-matching
// expression, a literal number, or a plain or table-qualified column.
func (c *queryContext) baseMeasure(m *domain.RuntimeMeasure, aggregate bool) (string, error) {
	var expr string
	switch column := strings.TrimSpace(m.Column); {
	case m.Expression.AppliesTo(c.d.Name):
		expr = m.Expression.Content
	case column == "":
		return "", domain.ErrCompilation("measure %q of %q has no column configured", m.Name, c.et.Name)
	case isNumber(column):
		expr = column
	default:
		ref := naming.ParseColumn(column)
		if ref.Column == "" {
			return "", domain.ErrCompilation("measure %q of %q has no column configured", m.Name, c.et.Name)
		}
		table := c.factAlias
		if ref.Table != "" {
			table = naming.TableAlias(c.cubeName, ref.Table)
		}
		expr = c.d.Column(table, ref.Column)
	}
	if !aggregate {
		return expr, nil
	}
	return aggregateExpr(caseWhen(c.restriction, expr), m.Aggregator, m.Name)
}

// calculated substitutes every [Measures].[Name] of the formula with the
// serialized measure. A formula with its own aggregator aggregates the
// substituted row-level expression instead of its operands.
func (c *queryContext) calculated(m *domain.RuntimeMeasure, calc domain.Calculated, aggregate bool) (string, error) {
	f, err := formula.Parse(calc.Formula)
	if err != nil {
		return "", domain.ErrCompilation("measure %q of %q: %s", m.Name, c.et.Name, err.Error())
	}
	own := strings.TrimSpace(m.Aggregator) != ""
	expr, err := f.Substitute(func(name string) (string, error) {
		ref := c.et.LookupMeasure(name, c.d.CaseInsensitive)
		if ref == nil {
			return "", domain.ErrResolution("measure %q referenced by %q not found in %q", name, m.Name, c.et.Name)
		}
		s, err := c.measure(ref, aggregate && !own)
		if err != nil {
			return "", err
		}
		if ref.IsCalculated() {
			return "(" + s + ")", nil
		}
		return s, nil
	})
	if err != nil {
		return "", err
	}
	if aggregate && own {
		return aggregateExpr(caseWhen(c.restriction, expr), m.Aggregator, m.Name)
	}
	return expr, nil
}

// restricted wraps the base measure in CASE WHEN <slicers> THEN .. END.
//
// A calculated base is aggregated outside the CASE unless the restricted
// measure declares an aggregator of its own or comes from an indicator.
// Both mark the base as pre-aggregated: the condition moves into the
// aggregates of the base's operands and nothing wraps the result.
func (c *queryContext) restricted(m *domain.RuntimeMeasure, calc domain.Restricted, aggregate bool) (string, error) {
	if strings.TrimSpace(calc.Measure) == "" {
		return "", domain.ErrCompilation("restricted measure %q of %q has no base measure", m.Name, c.et.Name)
	}
	base := c.et.LookupMeasure(calc.Measure, c.d.CaseInsensitive)
	if base == nil {
		return "", domain.ErrResolution("measure %q restricted by %q not found in %q", calc.Measure, m.Name, c.et.Name)
	}
	cond, err := c.compileFilters(calc.Slicers)
	if err != nil {
		return "", err
	}

	if !aggregate {
		inner, err := c.measure(base, false)
		if err != nil {
			return "", err
		}
		return caseWhen(cond, inner), nil
	}

	if c.restriction != "" && cond != "" {
		cond = and(parens(c.restriction, cond)...)
	} else {
		cond = and(c.restriction, cond)
	}
	switch {
	case !base.IsCalculated():
		col, err := c.measure(base, false)
		if err != nil {
			return "", err
		}
		return aggregateExpr(caseWhen(cond, col), firstNonEmpty(m.Aggregator, base.Aggregator), m.Name)
	case calc.FromIndicator || strings.TrimSpace(m.Aggregator) != "":
		outer := c.restriction
		c.restriction = cond
		defer func() { c.restriction = outer }()
		return c.measure(base, true)
	default:
		inner, err := c.measure(base, false)
		if err != nil {
			return "", err
		}
		return aggregateExpr(caseWhen(cond, inner), base.Aggregator, m.Name)
	}
}

// decimalLiteral matches the numbers emitted into SQL unquoted.
var decimalLiteral = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

func isNumber(s string) bool {
	return decimalLiteral.MatchString(s)
}

// CompileMeasure serializes the named measure of et.
func CompileMeasure(et *domain.EntityType, d dialect.Dialect, name string, aggregate bool) (string, error) {
	m := et.LookupMeasure(name, d.CaseInsensitive)
	if m == nil {
		return "", domain.ErrResolution("measure %q not found in %q", name, et.Name)
	}
	c := newQueryContext(et, d, Options{})
	return c.measure(m, aggregate)
}

package compiler

import (
	"strings"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
	"cubesql/internal/schema"
	"cubesql/internal/timerange"
)

// limitAlias names the derived table that ordering and paging apply to.
const limitAlias = "LIMIT_ALIAS"

type measureField struct {
	m     *domain.RuntimeMeasure
	expr  string
	order domain.OrderDirection
}

// CompileQuery compiles q against et into one SELECT statement and the
// schema of its output columns.
//
// Axis dimensions contribute key, caption, parent and property columns;
// an axis spanning several levels yields one SELECT per combination of
// levels, combined with UNION ALL. Ordering and paging apply to the
// combined result.
func CompileQuery(et *domain.EntityType, d dialect.Dialect, q domain.Query, opts Options) (*domain.Statement, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if len(q.CalculatedMeasures) > 0 {
		et = et.Clone()
		for _, cm := range q.CalculatedMeasures {
			rm, err := schema.CalculatedMeasure(et.Name, cm)
			if err != nil {
				return nil, err
			}
			et.Measures[rm.Name] = rm
		}
	}

	c := newQueryContext(et, d, opts)
	stmt := &domain.Statement{DefaultMeasure: et.DefaultMeasure}

	var measures []*measureField
	var axisDims []*dimensionContext
	addAxes := func(axes []domain.Axis, role domain.AxisRole) error {
		for _, axis := range axes {
			if axis.IsMeasure() {
				schemaAxis := domain.AxisSchema{Axis: role, Dimension: domain.MeasuresDimension}
				for _, name := range axis.MeasureNames() {
					m := et.LookupMeasure(name, d.CaseInsensitive)
					if m == nil {
						return domain.ErrResolution("measure %q not found in %q", name, et.Name)
					}
					measures = append(measures, &measureField{m: m, order: axis.Order})
					schemaAxis.Measures = append(schemaAxis.Measures, domain.Member{Key: m.Name, Value: m.Name, Caption: m.Caption})
				}
				stmt.Axes = append(stmt.Axes, schemaAxis)
				continue
			}

			dc, err := c.dimension(axis.DimensionRef)
			if err != nil {
				return err
			}
			if dc.axis != "" {
				return domain.ErrCompilation("dimension %q is requested on more than one axis", dc.dim.Plain)
			}
			dc.axis, dc.order, dc.ref = role, axis.Order, axis.DimensionRef
			levels := axis.Levels
			if len(levels) == 0 && axis.Level != "" {
				levels = []string{axis.Level}
			}
			if err := dc.selectLevels(levels); err != nil {
				return err
			}
			if len(axis.Members) > 0 {
				dc.slicers = append(dc.slicers, domain.Slicer{
					Dimension: axis.DimensionRef,
					Members:   axis.Members,
					Operator:  axis.Operator,
					Exclude:   axis.Exclude,
				})
			}
			axisDims = append(axisDims, dc)
			stmt.Axes = append(stmt.Axes, dc.axisSchema())
		}
		return nil
	}
	if err := addAxes(q.Rows, domain.AxisRows); err != nil {
		return nil, err
	}
	if err := addAxes(q.Columns, domain.AxisColumns); err != nil {
		return nil, err
	}

	if len(measures) == 0 && et.DefaultMeasure != "" {
		m := et.LookupMeasure(et.DefaultMeasure, d.CaseInsensitive)
		if m == nil {
			return nil, domain.ErrResolution("default measure %q not found in %q", et.DefaultMeasure, et.Name)
		}
		measures = append(measures, &measureField{m: m})
	}
	for _, mf := range measures {
		expr, err := c.measure(mf.m, true)
		if err != nil {
			return nil, err
		}
		mf.expr = expr
	}

	where, err := c.where(q, axisDims)
	if err != nil {
		return nil, err
	}
	from, err := c.from()
	if err != nil {
		return nil, err
	}

	for _, dc := range axisDims {
		stmt.Columns = append(stmt.Columns, dc.outputColumns()...)
	}
	for _, mf := range measures {
		stmt.Columns = append(stmt.Columns, domain.OutputColumn{Name: mf.m.Name, Role: domain.RoleMeasure, Measure: mf.m.Name})
	}

	combos := combinations(axisDims)
	selects := make([]string, 0, len(combos))
	orders := make([]string, 0, len(combos))
	for _, combo := range combos {
		sel, order, err := c.levelSelect(combo, measures, from, where)
		if err != nil {
			return nil, err
		}
		selects = append(selects, sel)
		orders = append(orders, order)
	}

	var top, skip int
	if q.Paging != nil {
		top, skip = q.Paging.Top, q.Paging.Skip
	}
	if top <= 0 && skip <= 0 && len(q.OrderBys) == 0 {
		stmt.SQL = d.Union(selects, orders)
		return stmt, nil
	}

	var sql string
	if len(selects) == 1 {
		sql = d.Derived(selects[0], orders[0], limitAlias)
	} else {
		sql = d.Derived(d.Union(selects, orders), "", limitAlias)
	}
	if len(q.OrderBys) > 0 {
		outer := make([]string, 0, len(q.OrderBys))
		for _, ob := range q.OrderBys {
			name, err := c.orderByColumn(ob.By, stmt)
			if err != nil {
				return nil, err
			}
			dir := domain.OrderAsc
			if ob.Order != "" {
				dir = domain.OrderDirection(strings.ToUpper(string(ob.Order)))
			}
			outer = append(outer, d.Quote(name)+" "+string(dir))
		}
		sql += " ORDER BY " + strings.Join(outer, ", ")
	}
	sql = d.Page(sql, top, skip, len(q.OrderBys) > 0)
	stmt.SQL = sql
	return stmt, nil
}

// where merges query filters, axis member restrictions and resolved time
// ranges into one predicate, after the raw filter string.
func (c *queryContext) where(q domain.Query, axisDims []*dimensionContext) (string, error) {
	filters := append([]domain.Filter{}, q.Filters...)
	for _, dc := range axisDims {
		for _, s := range dc.slicers {
			filters = append(filters, domain.SlicerFilter(s))
		}
	}
	for _, ts := range q.TimeRanges {
		slicers, err := timerange.Resolve(c.et, ts, c.clock)
		if err != nil {
			return "", err
		}
		for _, s := range slicers {
			filters = append(filters, domain.SlicerFilter(s))
		}
	}
	compiled, err := c.compileFilters(filters)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(q.FilterString) == "" {
		return compiled, nil
	}
	if compiled == "" {
		return q.FilterString, nil
	}
	return and("("+q.FilterString+")", compiled), nil
}

// combinations returns the cartesian product of the axis levels: one
// level context per dimension, in dimension order.
func combinations(dims []*dimensionContext) [][]*levelContext {
	combos := [][]*levelContext{{}}
	for _, dc := range dims {
		next := make([][]*levelContext, 0, len(combos)*len(dc.levels))
		for _, combo := range combos {
			for _, lc := range dc.levels {
				extended := append(append([]*levelContext{}, combo...), lc)
				next = append(next, extended)
			}
		}
		combos = next
	}
	return combos
}

// levelSelect renders the SELECT of one level combination, and separately
// its ORDER BY list.
func (c *queryContext) levelSelect(combo []*levelContext, measures []*measureField, from, where string) (sel, order string, err error) {
	var fields []field
	var ordinals []column
	for _, lc := range combo {
		fields = append(fields, lc.fields...)
		ordinals = append(ordinals, lc.ordinals...)
	}

	selects := make([]string, 0, len(fields)+len(measures))
	for _, f := range fields {
		selects = append(selects, c.renderField(f))
	}
	for _, mf := range measures {
		selects = append(selects, mf.expr+" AS "+c.d.Quote(mf.m.Name))
	}
	if len(selects) == 0 {
		return "", "", domain.ErrCompilation("query on %q selects no dimension or measure", c.et.Name)
	}

	var b strings.Builder
	b.WriteString("SELECT " + strings.Join(selects, ", ") + " FROM " + from)
	if where != "" {
		b.WriteString(" WHERE " + where)
	}
	if groupBy := c.groupBy(fields, ordinals); groupBy != "" {
		b.WriteString(" GROUP BY " + groupBy)
	} else if len(fields) > 0 {
		b.WriteString(" GROUP BY 1")
	}

	var orders []string
	for _, mf := range measures {
		if mf.order != "" {
			orders = append(orders, c.d.Quote(mf.m.Name)+" "+strings.ToUpper(string(mf.order)))
		}
	}
	for _, lc := range combo {
		if len(lc.ordinals) > 0 {
			orders = append(orders, c.orderColumns(lc.ordinals, lc.dc.order))
		}
	}
	return b.String(), strings.Join(orders, ", "), nil
}

// orderByColumn resolves an outer ORDER BY target to an output column: an
// output column name, a measure, or the key column of an axis dimension.
func (c *queryContext) orderByColumn(by string, stmt *domain.Statement) (string, error) {
	for _, col := range stmt.Columns {
		if col.Name == by {
			return col.Name, nil
		}
	}
	if m := c.et.LookupMeasure(by, c.d.CaseInsensitive); m != nil {
		for _, col := range stmt.Columns {
			if col.Role == domain.RoleMeasure && col.Measure == m.Name {
				return col.Name, nil
			}
		}
	}
	if dim := c.et.Dimension(by); dim != nil {
		if dc, ok := c.byDim[dim.Name]; ok && len(dc.levels) > 0 {
			return dc.levels[0].keyAlias, nil
		}
	}
	return "", domain.ErrResolution("order by %q does not match an output column of %q", by, c.et.Name)
}

package compiler

import (
	"strconv"
	"strings"

	"cubesql/internal/domain"
	"cubesql/internal/naming"
)

// tablesJoin renders a join chain. Every table joins its left neighbour on
// its declared fields; a repeated table name is aliased with a "(k)" suffix.
func (c *queryContext) tablesJoin(prefix string, tables []domain.Table) (string, error) {
	if strings.TrimSpace(prefix) == "" {
		return "", domain.ErrSchemaValidation("table alias prefix cannot be empty for %q", c.et.Name)
	}
	if len(tables) == 0 {
		return "", domain.ErrSchemaValidation("no tables configured for %q", prefix)
	}
	first := tables[0]
	if strings.TrimSpace(first.Name) == "" {
		return "", domain.ErrSchemaValidation("the first table of %q has no name", prefix)
	}

	d := c.d
	left := naming.TableAlias(prefix, first.Name)
	var b strings.Builder
	b.WriteString(d.QuoteTable(firstNonEmpty(first.Catalog, c.catalog), first.Name) + " AS " + d.Quote(left))

	seen := map[string]int{first.Name: 1}
	for i, t := range tables[1:] {
		if strings.TrimSpace(t.Name) == "" {
			return "", domain.ErrSchemaValidation("join table %d of %q has no name", i+1, prefix)
		}
		name := t.Name
		if n := seen[t.Name]; n > 0 {
			name = t.Name + "(" + strconv.Itoa(n) + ")"
		}
		seen[t.Name]++
		alias := naming.TableAlias(prefix, name)

		fields := t.Join.ValidFields()
		if len(fields) == 0 {
			return "", domain.ErrSchemaValidation("table %q of %q has no join fields configured", t.Name, prefix)
		}
		conds := make([]string, 0, len(fields))
		for _, f := range fields {
			conds = append(conds, d.Column(left, strings.TrimSpace(f.LeftKey))+" = "+d.Column(alias, strings.TrimSpace(f.RightKey)))
		}
		joinType := domain.JoinInner
		if t.Join.Type != "" {
			joinType = t.Join.Type
		}
		b.WriteString(" " + strings.ToUpper(joinType) + " JOIN ")
		b.WriteString(d.QuoteTable(firstNonEmpty(t.Catalog, c.catalog), t.Name) + " AS " + d.Quote(alias))
		b.WriteString(" ON " + and(conds...))
		left = alias
	}
	return b.String(), nil
}

// baseFrom renders the fact of the entity: the cube's table chain, its SQL
// view, or the dimension tables of a dimension entity.
func (c *queryContext) baseFrom() (string, error) {
	if c.cube == nil {
		for _, dc := range c.dims {
			if dc.hasTables() {
				return c.tablesJoin(dc.prefix, dc.hier.Tables)
			}
		}
		return "", domain.ErrCompilation("entity %q has no tables to select from", c.et.Name)
	}
	if v := c.cube.View; v != nil {
		if !v.SQL.AppliesTo(c.d.Name) {
			return "", domain.ErrCompilation("the view of cube %q has no SQL for dialect %q", c.cubeName, c.d.Name)
		}
		return "(" + v.SQL.Content + ") AS " + c.d.Quote(c.factAlias), nil
	}
	if len(c.cube.Tables) == 0 {
		return "", domain.ErrSchemaValidation("cube %q does not have a fact table configured", c.cubeName)
	}
	return c.tablesJoin(c.cubeName, c.cube.Tables)
}

// from renders the FROM clause of a cube query: the fact, then every
// dimension with tables of its own joined on its foreign key, then the
// parent-child self-joins.
func (c *queryContext) from() (string, error) {
	base, err := c.baseFrom()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(base)
	if c.cube == nil {
		// A dimension entity selects from its own tables.
		b.WriteString(c.parentJoins(c.dims))
		return b.String(), nil
	}
	for _, dc := range c.dims {
		if !dc.hasTables() {
			continue
		}
		hier := dc.hier
		pkTable := hier.DimensionTable()
		if strings.TrimSpace(pkTable) == "" {
			return "", domain.ErrSchemaValidation("cannot find the primary key table of hierarchy %q in cube %q", hier.Name, c.cubeName)
		}
		if strings.TrimSpace(hier.PrimaryKey) == "" {
			return "", domain.ErrSchemaValidation("cannot find the primary key column of hierarchy %q in cube %q", hier.Name, c.cubeName)
		}
		if strings.TrimSpace(dc.dim.ForeignKey) == "" {
			return "", domain.ErrSchemaValidation("dimension %q of cube %q has no foreign key", dc.dim.Plain, c.cubeName)
		}
		joined, err := c.tablesJoin(dc.prefix, hier.Tables)
		if err != nil {
			return "", err
		}
		fk := naming.ParseColumn(dc.dim.ForeignKey)
		factTable := c.factAlias
		if fk.Table != "" {
			factTable = naming.TableAlias(c.cubeName, fk.Table)
		}
		b.WriteString(" INNER JOIN " + joined + " ON " +
			c.d.Column(factTable, fk.Column) + " = " + c.d.Column(naming.TableAlias(dc.prefix, pkTable), hier.PrimaryKey))
	}
	b.WriteString(c.parentJoins(c.dims))
	return b.String(), nil
}

func (c *queryContext) parentJoins(dims []*dimensionContext) string {
	var b strings.Builder
	for _, dc := range dims {
		pj := dc.parent
		if pj == nil {
			continue
		}
		catalog := c.catalog
		for _, t := range dc.hier.Tables {
			if t.Name == pj.table && t.Catalog != "" {
				catalog = t.Catalog
			}
		}
		b.WriteString(" LEFT JOIN " + c.d.QuoteTable(catalog, pj.table) + " AS " + c.d.Quote(pj.alias) +
			" ON " + c.d.Column(pj.left, pj.parentCol) + " = " + c.d.Column(pj.alias, pj.keyCol))
	}
	return b.String()
}

// orderColumns renders columns for ORDER BY, each followed by direction
// when one is set.
func (c *queryContext) orderColumns(cols []column, direction domain.OrderDirection) string {
	dir := ""
	if direction != "" {
		dir = " " + strings.ToUpper(string(direction))
	}
	refs := make([]string, 0, len(cols))
	for _, col := range cols {
		refs = append(refs, c.ref(col)+dir)
	}
	return strings.Join(refs, ", ")
}

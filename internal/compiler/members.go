package compiler

import (
	"strings"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
	"cubesql/internal/naming"
)

// Aliases of member enumeration statements.
const (
	MemberKeyAlias     = "memberKey"
	MemberCaptionAlias = "memberCaption"
	ParentKeyAlias     = "parentKey"
)

// LevelMembers renders the members of the level at index of the hierarchy
// ref names. Each row carries the member key, caption and parent key. The
// All level selects one constant row.
func LevelMembers(et *domain.EntityType, d dialect.Dialect, ref domain.DimensionRef, index int, opts Options) (string, error) {
	c := newQueryContext(et, d, opts)
	dc, err := c.dimension(ref)
	if err != nil {
		return "", err
	}
	return dc.levelMembers(index)
}

func (dc *dimensionContext) levelMembers(index int) (string, error) {
	hier := dc.hier
	if index < 0 || index >= len(hier.Levels) {
		return "", domain.ErrResolution("level %d not found in hierarchy %q", index, hier.Name)
	}
	c := dc.c
	d := c.d
	level := hier.Levels[index]
	allKey := d.String(naming.JoinMemberKey(hier.AllMemberName))

	from, err := dc.from()
	if err != nil {
		return "", err
	}

	if level.IsAll {
		return "SELECT " + allKey + " AS " + d.Quote(MemberKeyAlias) + ", " +
			d.String(hier.AllMemberCaption) + " AS " + d.Quote(MemberCaptionAlias) +
			" FROM " + from + " GROUP BY 1", nil
	}

	fields := []field{
		{key: dc.keyColumns(index), isKey: true, alias: MemberKeyAlias},
		{col: dc.captionColumn(level), alias: MemberCaptionAlias},
	}
	first := 0
	if hier.HasAll {
		first = 1
	}
	switch {
	case index > first:
		fields = append(fields, field{key: dc.keyColumns(index - 1), isKey: true, alias: ParentKeyAlias})
	case hier.HasAll:
		fields = append(fields, field{col: column{expression: allKey}, alias: ParentKeyAlias})
	}

	var ordinals []column
	for i := first; i <= index; i++ {
		l := hier.Levels[i]
		ordinals = append(ordinals, dc.columnFor(l, firstNonEmpty(l.OrdinalColumn, l.Column, l.NameColumn, l.Name)))
	}

	selects := make([]string, 0, len(fields))
	for _, f := range fields {
		selects = append(selects, c.renderField(f))
	}
	sql := "SELECT " + strings.Join(selects, ", ") + " FROM " + from
	if groupBy := c.groupBy(fields, ordinals); groupBy != "" {
		sql += " GROUP BY " + groupBy
	} else {
		sql += " GROUP BY 1"
	}
	return sql + " ORDER BY " + c.orderColumns(ordinals, ""), nil
}

// DimensionMembers renders the member statements of every level of the
// hierarchy ref names. Entities mapped from a bare table enumerate the
// distinct values of the column instead.
func DimensionMembers(et *domain.EntityType, d dialect.Dialect, ref domain.DimensionRef, opts Options) ([]domain.MemberStatement, error) {
	c := newQueryContext(et, d, opts)
	if et.Semantics == domain.EntityTable {
		dim := et.Dimension(ref.Dimension)
		if dim == nil {
			return nil, domain.ErrResolution("dimension %q not found in %q", ref.Dimension, et.Name)
		}
		return []domain.MemberStatement{{Level: dim.Name, SQL: c.tableColumnMembers(dim)}}, nil
	}

	dc, err := c.dimension(ref)
	if err != nil {
		return nil, err
	}
	out := make([]domain.MemberStatement, 0, len(dc.hier.Levels))
	for i, level := range dc.hier.Levels {
		sql, err := dc.levelMembers(i)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.MemberStatement{Level: level.UniqueName, SQL: sql})
	}
	return out, nil
}

func (c *queryContext) tableColumnMembers(dim *domain.RuntimeDimension) string {
	column := dim.Plain
	table := c.et.Name
	if c.cube != nil && len(c.cube.Tables) > 0 {
		table = c.cube.Tables[0].Name
	}
	return "SELECT DISTINCT " + c.d.Quote(column) + " AS " + c.d.Quote(MemberKeyAlias) +
		" FROM " + c.d.QuoteTable(c.catalog, table)
}

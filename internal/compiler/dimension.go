package compiler

import (
	"strings"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
	"cubesql/internal/naming"
)

// dimensionContext binds one dimension slot of a compile call to a
// hierarchy, and carries the levels selected on an axis.
type dimensionContext struct {
	c    *queryContext
	ref  domain.DimensionRef
	dim  *domain.RuntimeDimension
	hier *domain.RuntimeHierarchy

	// prefix scopes table aliases; table is the alias of unqualified level
	// columns.
	prefix string
	table  string

	axis    domain.AxisRole
	order   domain.OrderDirection
	levels  []*levelContext
	slicers []domain.Slicer
	parent  *parentJoin
}

// levelContext is the select list of one level of an axis dimension.
type levelContext struct {
	dc           *dimensionContext
	level        *domain.RuntimeLevel
	index        int
	fields       []field
	ordinals     []column
	keyAlias     string
	captionAlias string
	parentAlias  string
}

// parentJoin is the self-join of a parent-child level.
type parentJoin struct {
	table     string
	alias     string
	left      string
	parentCol string
	keyCol    string
}

func newDimensionContext(c *queryContext, ref domain.DimensionRef, dim *domain.RuntimeDimension, hier *domain.RuntimeHierarchy) *dimensionContext {
	dc := &dimensionContext{c: c, ref: ref, dim: dim, hier: hier}
	if dc.hasTables() {
		dc.prefix = hier.AliasPrefix
		dc.table = naming.TableAlias(dc.prefix, hier.DimensionTable())
	} else {
		dc.prefix = c.cubeName
		dc.table = c.factAlias
	}
	return dc
}

func (dc *dimensionContext) hasTables() bool {
	return len(dc.hier.Tables) > 0
}

// physicalTable returns the unaliased table holding the columns of level.
func (dc *dimensionContext) physicalTable(level *domain.RuntimeLevel) string {
	if level.Table != "" {
		return level.Table
	}
	if ref := naming.ParseColumn(level.Column); ref.Table != "" {
		return ref.Table
	}
	if dc.hasTables() {
		return dc.hier.DimensionTable()
	}
	if dc.c.cube != nil && len(dc.c.cube.Tables) > 0 {
		return dc.c.cube.Tables[0].Name
	}
	return dc.c.et.Name
}

// columnFor resolves a level column reference. level.Table wins over a
// table qualifier in ref, which wins over the dimension table.
func (dc *dimensionContext) columnFor(level *domain.RuntimeLevel, ref string) column {
	parsed := naming.ParseColumn(ref)
	col := column{table: dc.table, name: parsed.Column}
	switch {
	case level.Table != "":
		col.table = naming.TableAlias(dc.prefix, level.Table)
	case parsed.Table != "":
		col.table = naming.TableAlias(dc.prefix, parsed.Table)
	}
	return col
}

func keyRef(level *domain.RuntimeLevel) string {
	return firstNonEmpty(level.NameColumn, level.Column, level.Name)
}

func (dc *dimensionContext) keyColumn(level *domain.RuntimeLevel) column {
	col := dc.columnFor(level, keyRef(level))
	col.cast = level.Type != domain.LevelTypeString
	return col
}

func (dc *dimensionContext) allSegment() column {
	return column{expression: dc.c.d.String(dc.hier.AllMemberName)}
}

// keyColumns returns the member key segments of the level at index: the All
// segment when the hierarchy has one, then every data level down to index.
func (dc *dimensionContext) keyColumns(index int) []column {
	var cols []column
	if dc.hier.HasAll {
		cols = append(cols, dc.allSegment())
	}
	for i := 0; i <= index && i < len(dc.hier.Levels); i++ {
		level := dc.hier.Levels[i]
		if level.IsAll {
			continue
		}
		cols = append(cols, dc.keyColumn(level))
	}
	return cols
}

// captionColumn returns the caption of level. A caption expression is used
// only when it applies to the dialect.
func (dc *dimensionContext) captionColumn(level *domain.RuntimeLevel) column {
	if level.IsAll {
		return column{expression: dc.c.d.String(dc.hier.AllMemberCaption)}
	}
	col := dc.columnFor(level, firstNonEmpty(level.CaptionColumn, level.NameColumn, level.Column, level.Name))
	if level.CaptionExpression.AppliesTo(dc.c.d.Name) {
		col.expression = level.CaptionExpression.Content
	}
	return col
}

func (dc *dimensionContext) ordinalColumn(level *domain.RuntimeLevel) column {
	return dc.columnFor(level, firstNonEmpty(level.OrdinalColumn, level.NameColumn, level.Column, level.Name))
}

// selectLevels builds the level contexts of an axis. Several names span the
// axis over several levels; none selects the first level.
func (dc *dimensionContext) selectLevels(names []string) error {
	if len(names) == 0 {
		names = []string{""}
	}
	multi := len(names) > 1
	for _, name := range names {
		level, index := dc.hier.Level(name)
		if level == nil {
			return domain.ErrResolution("level %q not found in hierarchy %q of dimension %q", name, dc.hier.Name, dc.dim.Plain)
		}
		lc, err := dc.buildLevel(level, index, multi)
		if err != nil {
			return err
		}
		dc.levels = append(dc.levels, lc)
	}
	return nil
}

func (dc *dimensionContext) buildLevel(level *domain.RuntimeLevel, index int, multi bool) (*levelContext, error) {
	d := dc.c.d
	lc := &levelContext{
		dc:           dc,
		level:        level,
		index:        index,
		keyAlias:     level.UniqueName,
		captionAlias: level.MemberCaption,
	}
	if multi {
		lc.keyAlias = dc.hier.Name
		lc.captionAlias = dc.hier.MemberCaption
	}

	keys := dc.keyColumns(index)
	lc.fields = append(lc.fields,
		field{key: keys, isKey: true, alias: lc.keyAlias},
		field{col: dc.captionColumn(level), alias: lc.captionAlias},
	)
	if level.IsAll {
		return lc, nil
	}
	lc.ordinals = append(lc.ordinals, dc.ordinalColumn(level))
	if multi {
		return lc, nil
	}

	if level.ParentColumn != "" {
		pj := &parentJoin{
			table:     dc.physicalTable(level),
			left:      dc.keyColumn(level).table,
			parentCol: naming.ParseColumn(level.ParentColumn).Column,
			keyCol:    naming.ParseColumn(level.Column).Column,
		}
		if pj.keyCol == "" {
			pj.keyCol = dc.keyColumn(level).name
		}
		pj.alias = pj.left + "(1)"
		dc.parent = pj

		parents := make([]column, 0, len(keys))
		for _, col := range keys {
			if col.expression == "" {
				col.table = pj.alias
			}
			parents = append(parents, col)
		}
		lc.parentAlias = naming.Intrinsic(d, level.UniqueName, naming.ParentUniqueName)
		lc.fields = append(lc.fields, field{key: parents, isKey: true, alias: lc.parentAlias})
	}

	for _, name := range dc.ref.Properties {
		prop := findProperty(level, name, d)
		if prop == nil {
			return nil, domain.ErrResolution("property %q not found on level %q of dimension %q", name, level.Name, dc.dim.Plain)
		}
		lc.fields = append(lc.fields, field{
			col:   dc.columnFor(level, firstNonEmpty(prop.Column, prop.Name)),
			alias: prop.UniqueName,
		})
	}
	return lc, nil
}

func findProperty(level *domain.RuntimeLevel, name string, d dialect.Dialect) *domain.RuntimeLevelProperty {
	for i := range level.Props {
		p := &level.Props[i]
		if p.Name == name || p.UniqueName == name || (d.CaseInsensitive && strings.EqualFold(p.UniqueName, name)) {
			return p
		}
	}
	return nil
}

// from renders the tables of the hierarchy on their own, as used by member
// enumeration and dimension statements.
func (dc *dimensionContext) from() (string, error) {
	var from string
	var err error
	if dc.hasTables() {
		from, err = dc.c.tablesJoin(dc.prefix, dc.hier.Tables)
	} else {
		from, err = dc.c.baseFrom()
	}
	if err != nil {
		return "", err
	}
	return from + dc.c.parentJoins([]*dimensionContext{dc}), nil
}

// outputColumns describes the select list of the first level of the axis.
func (dc *dimensionContext) outputColumns() []domain.OutputColumn {
	if len(dc.levels) == 0 {
		return nil
	}
	lc := dc.levels[0]
	level := lc.level.Name
	if len(dc.levels) > 1 {
		level = ""
	}
	base := domain.OutputColumn{Axis: dc.axis, Dimension: dc.dim.Name, Hierarchy: dc.hier.Name, Level: level}
	var out []domain.OutputColumn
	for _, f := range lc.fields {
		col := base
		col.Name = f.alias
		switch f.alias {
		case lc.keyAlias:
			col.Role = domain.RoleMemberKey
		case lc.captionAlias:
			col.Role = domain.RoleMemberCaption
		case lc.parentAlias:
			col.Role = domain.RoleParentKey
		default:
			col.Role = domain.RoleProperty
		}
		out = append(out, col)
	}
	return out
}

func (dc *dimensionContext) axisSchema() domain.AxisSchema {
	lc := dc.levels[0]
	return domain.AxisSchema{
		Axis:          dc.axis,
		Dimension:     dc.dim.Name,
		Hierarchy:     dc.hier.Name,
		MemberCaption: dc.dim.MemberCaption,
		KeyColumn:     lc.keyAlias,
		CaptionColumn: lc.captionAlias,
		ParentColumn:  lc.parentAlias,
	}
}

// CompileDimension compiles the members of one dimension level, with its
// caption, parent key and requested properties, into a standalone statement
// ordered by the level's ordinal column.
func CompileDimension(et *domain.EntityType, d dialect.Dialect, ref domain.DimensionRef, opts Options) (*domain.Statement, error) {
	c := newQueryContext(et, d, opts)
	dc, err := c.dimension(ref)
	if err != nil {
		return nil, err
	}
	dc.axis = domain.AxisRows
	if err := dc.selectLevels([]string{ref.Level}); err != nil {
		return nil, err
	}
	from, err := dc.from()
	if err != nil {
		return nil, err
	}
	lc := dc.levels[0]

	selects := make([]string, 0, len(lc.fields))
	for _, f := range lc.fields {
		selects = append(selects, c.renderField(f))
	}
	sql := "SELECT " + strings.Join(selects, ", ") + " FROM " + from
	if groupBy := c.groupBy(lc.fields, lc.ordinals); groupBy != "" {
		sql += " GROUP BY " + groupBy
	} else {
		sql += " GROUP BY 1"
	}
	if len(lc.ordinals) > 0 {
		sql += " ORDER BY " + c.orderColumns(lc.ordinals, "")
	}
	return &domain.Statement{
		SQL:     sql,
		Columns: dc.outputColumns(),
		Axes:    []domain.AxisSchema{dc.axisSchema()},
	}, nil
}

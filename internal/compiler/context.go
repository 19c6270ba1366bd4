// Package compiler turns a resolved entity type and a structured analytical
// query into dialect-specific SQL, and pivots the flat result rows into a
// crosstab. Every function is a pure transformation; a fresh context is
// built for each call.
package compiler

import (
	"strings"

	"github.com/benbjohnson/clock"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
	"cubesql/internal/naming"
)

// column is a table column, or a raw expression standing in for one.
// table holds the unquoted alias.
type column struct {
	table      string
	name       string
	expression string
	// cast marks non-string level keys; dialects with CastUnassigned cast
	// them inside the unassigned-member guard.
	cast bool
}

// field is one SELECT item: a single column, or a member-key composite.
type field struct {
	col   column
	key   []column
	isKey bool
	alias string
}

// Options carries the collaborators of a compile call.
type Options struct {
	// Clock anchors relative time ranges. Defaults to the wall clock.
	Clock clock.Clock
	// Catalog qualifies physical tables. Defaults to the entity's catalog.
	Catalog string
}

type queryContext struct {
	et        *domain.EntityType
	d         dialect.Dialect
	cube      *domain.Cube
	cubeName  string
	factAlias string
	catalog   string
	clock     clock.Clock

	dims  []*dimensionContext
	byDim map[string]*dimensionContext
	// visiting guards calculated-measure recursion.
	visiting map[string]bool
	// restriction is the condition of an enclosing restricted measure,
	// applied inside every aggregate serialized while it is set.
	restriction string
}

func newQueryContext(et *domain.EntityType, d dialect.Dialect, opts Options) *queryContext {
	c := &queryContext{
		et:       et,
		d:        d,
		cube:     et.Cube,
		catalog:  opts.Catalog,
		clock:    opts.Clock,
		byDim:    map[string]*dimensionContext{},
		visiting: map[string]bool{},
	}
	if c.catalog == "" {
		c.catalog = et.Catalog
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.cube != nil {
		c.cubeName = c.cube.Name
		switch {
		case c.cube.View != nil:
			c.factAlias = naming.TableAlias(c.cubeName, firstNonEmpty(c.cube.View.Alias, c.cubeName))
		case len(c.cube.Tables) > 0:
			c.factAlias = naming.TableAlias(c.cubeName, c.cube.Tables[0].Name)
		}
	}
	return c
}

func (c *queryContext) ref(col column) string {
	return c.d.Column(col.table, col.name)
}

// guard renders a key column so NULL becomes the unassigned member "#".
func (c *queryContext) guard(col column) string {
	ref := c.ref(col)
	value := ref
	if c.d.CastUnassigned && col.cast {
		value = c.d.Cast(ref, c.d.StringType)
	}
	return "CASE WHEN " + ref + " IS NULL THEN '#' ELSE " + value + " END"
}

func (c *queryContext) renderField(f field) string {
	var expr string
	if f.isKey {
		segments := make([]string, 0, len(f.key))
		for _, col := range f.key {
			if col.expression != "" {
				segments = append(segments, col.expression)
			} else {
				segments = append(segments, c.guard(col))
			}
		}
		expr = c.d.MemberKey(segments...)
	} else if f.col.expression != "" {
		expr = f.col.expression
	} else {
		expr = c.ref(f.col)
	}
	return expr + " AS " + c.d.Quote(f.alias)
}

// groupColumns returns the physical columns underlying f.
func groupColumns(f field) []column {
	if f.isKey {
		out := make([]column, 0, len(f.key))
		for _, col := range f.key {
			if col.name != "" && col.expression == "" {
				out = append(out, col)
			}
		}
		return out
	}
	if f.col.name == "" {
		return nil
	}
	return []column{f.col}
}

// groupBy renders the deduplicated GROUP BY list of fields and extra columns.
func (c *queryContext) groupBy(fields []field, extra []column) string {
	seen := map[string]bool{}
	var refs []string
	add := func(col column) {
		r := c.ref(col)
		if !seen[r] {
			seen[r] = true
			refs = append(refs, r)
		}
	}
	for _, f := range fields {
		for _, col := range groupColumns(f) {
			add(col)
		}
	}
	for _, col := range extra {
		if col.name != "" {
			add(col)
		}
	}
	return strings.Join(refs, ", ")
}

// dimension returns the context of the dimension ref names, creating it on
// first use. A dimension slot binds one hierarchy per compile call.
func (c *queryContext) dimension(ref domain.DimensionRef) (*dimensionContext, error) {
	dim := c.et.Dimension(ref.Dimension)
	if dim == nil {
		return nil, domain.ErrResolution("dimension %q not found in %q", ref.Dimension, c.et.Name)
	}
	hier := dim.Hierarchy(ref.Hierarchy)
	if hier == nil {
		return nil, domain.ErrResolution("hierarchy %q not found in dimension %q of %q", ref.Hierarchy, dim.Plain, c.et.Name)
	}
	if dc, ok := c.byDim[dim.Name]; ok {
		if dc.hier != hier {
			return nil, domain.ErrCompilation("cannot query hierarchies %q and %q of dimension %q at the same time", dc.hier.Name, hier.Name, dim.Plain)
		}
		return dc, nil
	}
	dc := newDimensionContext(c, ref, dim, hier)
	c.byDim[dim.Name] = dc
	c.dims = append(c.dims, dc)
	return dc, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

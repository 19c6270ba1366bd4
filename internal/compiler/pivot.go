package compiler

import (
	"fmt"
	"strings"

	"cubesql/internal/domain"
)

// rowKeySeparator joins the key values of the row axes into one row key.
const rowKeySeparator = "\x00"

type pivotBuilder struct {
	stmt    *domain.Statement
	columns []*domain.PivotColumn
	nodes   map[string]*domain.PivotColumn
	axes    []domain.AxisSchema
}

// Pivot transposes flat result rows of stmt into a crosstab: one output row
// per distinct combination of row-axis members, one field per path of
// column-axis members. A measures axis may sit at any position among the
// column axes; a leaf takes the value of the nearest measure above it, else
// of the default measure. Without column axes rows are returned unchanged.
func Pivot(stmt *domain.Statement, rows []map[string]any) *domain.PivotResult {
	var rowAxes, colAxes []domain.AxisSchema
	for _, ax := range stmt.Axes {
		if ax.Axis == domain.AxisColumns {
			colAxes = append(colAxes, ax)
		} else {
			rowAxes = append(rowAxes, ax)
		}
	}

	result := &domain.PivotResult{}
	for _, ax := range rowAxes {
		if ax.ParentColumn != "" {
			result.RowHierarchy = ax.Hierarchy
			break
		}
	}
	if len(colAxes) == 0 {
		result.Data = rows
		return result
	}

	b := &pivotBuilder{stmt: stmt, nodes: map[string]*domain.PivotColumn{}, axes: colAxes}
	byKey := map[string]map[string]any{}
	for _, item := range rows {
		row := make(map[string]any, len(item)+2*len(rowAxes))
		for k, v := range item {
			row[k] = v
		}
		keys := make([]string, 0, len(rowAxes))
		for _, ax := range rowAxes {
			if ax.IsMeasures() {
				if len(ax.Measures) > 0 {
					row[domain.MeasuresDimension] = ax.Measures[0].Label()
				}
				continue
			}
			row[ax.Dimension] = item[ax.KeyColumn]
			if ax.CaptionColumn != "" {
				row[ax.MemberCaption] = item[ax.CaptionColumn]
			}
			keys = append(keys, valueString(item[ax.KeyColumn]))
		}

		rowKey := strings.Join(keys, rowKeySeparator)
		out, ok := byKey[rowKey]
		if !ok {
			out = row
			byKey[rowKey] = out
			result.Data = append(result.Data, out)
		}
		b.walk(0, item, out, nil, &b.columns, "")
	}

	result.Columns = b.columns
	result.ColumnAxes = colAxes
	return result
}

// walk descends the column axes for one source row, creating the column
// nodes of its path and writing the leaf value into out.
func (b *pivotBuilder) walk(i int, item, out map[string]any, parent *domain.PivotColumn, siblings *[]*domain.PivotColumn, measure string) {
	ax := b.axes[i]
	last := i == len(b.axes)-1
	prefix := ""
	if parent != nil {
		prefix = parent.Name + "/"
	}

	if ax.IsMeasures() {
		for _, m := range ax.Measures {
			key := m.MemberKey()
			node := b.node(prefix+key, siblings, func() *domain.PivotColumn {
				return &domain.PivotColumn{
					Caption:    m.Label(),
					UniqueName: key,
					Measure:    key,
					Member:     domain.Member{Key: key, Value: key, Caption: m.Label()},
				}
			})
			if last {
				out[node.Name] = item[key]
				continue
			}
			b.walk(i+1, item, out, node, &node.Columns, key)
		}
		return
	}

	key := valueString(item[ax.KeyColumn])
	caption := key
	if ax.CaptionColumn != "" && item[ax.CaptionColumn] != nil {
		caption = valueString(item[ax.CaptionColumn])
	}
	node := b.node(prefix+key, siblings, func() *domain.PivotColumn {
		col := &domain.PivotColumn{
			Caption:    caption,
			UniqueName: key,
			Measure:    measure,
			Member:     domain.Member{Key: key, Value: key, Caption: caption},
		}
		if ax.ParentColumn != "" {
			col.ParentUniqueName = valueString(item[ax.ParentColumn])
		}
		return col
	})
	if last {
		out[node.Name] = item[firstNonEmpty(measure, b.stmt.DefaultMeasure)]
		return
	}
	b.walk(i+1, item, out, node, &node.Columns, measure)
}

// node returns the column at path, appending a new one to siblings first.
func (b *pivotBuilder) node(path string, siblings *[]*domain.PivotColumn, create func() *domain.PivotColumn) *domain.PivotColumn {
	if n, ok := b.nodes[path]; ok {
		return n
	}
	n := create()
	n.Name = path
	b.nodes[path] = n
	*siblings = append(*siblings, n)
	return n
}

func valueString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

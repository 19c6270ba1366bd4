package domain

// ColumnRole describes what an output column of a compiled statement carries.
type ColumnRole string

// Output column roles.
const (
	RoleMemberKey     ColumnRole = "key"
	RoleMemberCaption ColumnRole = "caption"
	RoleParentKey     ColumnRole = "parent"
	RoleProperty      ColumnRole = "property"
	RoleMeasure       ColumnRole = "measure"
)

// AxisRole places a dimension on the rows or the columns of a crosstab.
type AxisRole string

// Axis roles. Dimensions only referenced by filters have no role.
const (
	AxisRows    AxisRole = "rows"
	AxisColumns AxisRole = "columns"
)

// OutputColumn maps one alias of the compiled SELECT to its semantic role.
type OutputColumn struct {
	Name      string     `json:"name"`
	Role      ColumnRole `json:"role"`
	Axis      AxisRole   `json:"axis,omitempty"`
	Dimension string     `json:"dimension,omitempty"`
	Hierarchy string     `json:"hierarchy,omitempty"`
	Level     string     `json:"level,omitempty"`
	Measure   string     `json:"measure,omitempty"`
}

// AxisSchema describes one axis entry of the compiled query: the aliases of
// a dimension's key, caption and parent columns, or the measures of a
// measures axis.
type AxisSchema struct {
	Axis          AxisRole `json:"axis"`
	Dimension     string   `json:"dimension,omitempty"`
	Hierarchy     string   `json:"hierarchy,omitempty"`
	MemberCaption string   `json:"memberCaption,omitempty"`
	KeyColumn     string   `json:"keyColumn,omitempty"`
	CaptionColumn string   `json:"captionColumn,omitempty"`
	ParentColumn  string   `json:"parentColumn,omitempty"`
	Measures      []Member `json:"measures,omitempty"`
}

// IsMeasures reports whether the axis entry lists measures.
func (a AxisSchema) IsMeasures() bool {
	return a.Dimension == MeasuresDimension
}

// Statement is the compiled SQL of a query and its output-column schema.
type Statement struct {
	SQL            string         `json:"sql"`
	Columns        []OutputColumn `json:"columns"`
	Axes           []AxisSchema   `json:"axes"`
	DefaultMeasure string         `json:"defaultMeasure,omitempty"`
}

// PivotColumn is a node of the crosstab column tree.
type PivotColumn struct {
	Name             string         `json:"name"`
	Caption          string         `json:"caption,omitempty"`
	UniqueName       string         `json:"uniqueName"`
	ParentUniqueName string         `json:"parentUniqueName,omitempty"`
	Measure          string         `json:"measure,omitempty"`
	Member           Member         `json:"member"`
	Columns          []*PivotColumn `json:"columns,omitempty"`
}

// PivotResult is the crosstab shape of a flat row set.
type PivotResult struct {
	Data         []map[string]any `json:"data"`
	Columns      []*PivotColumn   `json:"columns,omitempty"`
	RowHierarchy string           `json:"rowHierarchy,omitempty"`
	ColumnAxes   []AxisSchema     `json:"columnAxes,omitempty"`
}

// MemberStatement is the enumeration SQL of one hierarchy level.
type MemberStatement struct {
	Level string `json:"level"`
	SQL   string `json:"sql"`
}

// MemberRow is one enumerated member of a hierarchy level.
type MemberRow struct {
	Key       string `json:"key"`
	Caption   string `json:"caption,omitempty"`
	ParentKey string `json:"parentKey,omitempty"`
}

// LevelMembers holds the enumerated members of one level.
type LevelMembers struct {
	Level   string      `json:"level"`
	Members []MemberRow `json:"members"`
}

package domain

import "strings"

// Aggregators accepted on measures, calculated members and indicators.
const (
	AggregatorSum           = "sum"
	AggregatorCount         = "count"
	AggregatorDistinctCount = "distinct-count"
	AggregatorAvg           = "avg"
	AggregatorMin           = "min"
	AggregatorMax           = "max"
)

// Level data types. Members of Numeric and Integer levels are compared unquoted.
const (
	LevelTypeString  = "String"
	LevelTypeNumeric = "Numeric"
	LevelTypeInteger = "Integer"
	LevelTypeBoolean = "Boolean"
	LevelTypeDate    = "Date"
)

// Calendar semantics attached to time levels and dimensions.
const (
	SemanticCalendar        = "Calendar"
	SemanticCalendarYear    = "Calendar.Year"
	SemanticCalendarQuarter = "Calendar.Quarter"
	SemanticCalendarMonth   = "Calendar.Month"
	SemanticCalendarWeek    = "Calendar.Week"
	SemanticCalendarDay     = "Calendar.Day"
)

// Join types for chained tables.
const (
	JoinInner = "Inner"
	JoinLeft  = "Left"
	JoinRight = "Right"
	JoinFull  = "Full"
)

// DialectGeneric marks an SQL expression valid for every dialect.
const DialectGeneric = "generic"

// Schema is an authored semantic model: cubes, shared dimensions, indicators
// and per-entity type overrides.
//
// A Schema value reachable from a published snapshot is never mutated; updates
// build new slices and maps.
type Schema struct {
	Name       string                    `yaml:"name,omitempty" json:"name,omitempty"`
	Cubes      []Cube                    `yaml:"cubes,omitempty" json:"cubes,omitempty"`
	Dimensions []Dimension               `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	Indicators []Indicator               `yaml:"indicators,omitempty" json:"indicators,omitempty"`
	EntitySets map[string]EntityOverride `yaml:"entitySets,omitempty" json:"entitySets,omitempty"`
}

// Cube returns the cube with the given name, or nil.
func (s *Schema) Cube(name string) *Cube {
	if s == nil {
		return nil
	}
	for i := range s.Cubes {
		if s.Cubes[i].Name == name {
			return &s.Cubes[i]
		}
	}
	return nil
}

// Dimension returns the shared dimension with the given name, or nil.
func (s *Schema) Dimension(name string) *Dimension {
	if s == nil {
		return nil
	}
	for i := range s.Dimensions {
		if s.Dimensions[i].Name == name {
			return &s.Dimensions[i]
		}
	}
	return nil
}

// ViewCube returns the cube whose fact view is exposed under alias, or nil.
func (s *Schema) ViewCube(alias string) *Cube {
	if s == nil {
		return nil
	}
	for i := range s.Cubes {
		if v := s.Cubes[i].View; v != nil && v.Alias == alias {
			return &s.Cubes[i]
		}
	}
	return nil
}

// IndicatorsFor returns the indicators bound to entity, in declaration order.
func (s *Schema) IndicatorsFor(entity string) []Indicator {
	if s == nil {
		return nil
	}
	var out []Indicator
	for _, ind := range s.Indicators {
		if ind.Entity == entity {
			out = append(out, ind)
		}
	}
	return out
}

// Cube is a fact-table-centered analytical entity.
type Cube struct {
	ID                string             `yaml:"__id__,omitempty" json:"__id__,omitempty"`
	Name              string             `yaml:"name" json:"name"`
	Caption           string             `yaml:"caption,omitempty" json:"caption,omitempty"`
	Tables            []Table            `yaml:"tables,omitempty" json:"tables,omitempty"`
	View              *View              `yaml:"view,omitempty" json:"view,omitempty"`
	DefaultMeasure    string             `yaml:"defaultMeasure,omitempty" json:"defaultMeasure,omitempty"`
	Dimensions        []Dimension        `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	DimensionUsages   []DimensionUsage   `yaml:"dimensionUsages,omitempty" json:"dimensionUsages,omitempty"`
	Measures          []Measure          `yaml:"measures,omitempty" json:"measures,omitempty"`
	CalculatedMembers []CalculatedMember `yaml:"calculatedMembers,omitempty" json:"calculatedMembers,omitempty"`
}

// Table is a physical table, joined to the previous table in its chain by Join.
type Table struct {
	Name    string `yaml:"name" json:"name"`
	Catalog string `yaml:"catalog,omitempty" json:"catalog,omitempty"`
	Join    *Join  `yaml:"join,omitempty" json:"join,omitempty"`
}

// Join describes how a table attaches to its left neighbour.
type Join struct {
	Type   string      `yaml:"type,omitempty" json:"type,omitempty"`
	Fields []JoinField `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// JoinField pairs a column of the left table with a column of the joined table.
type JoinField struct {
	LeftKey  string `yaml:"leftKey" json:"leftKey"`
	RightKey string `yaml:"rightKey" json:"rightKey"`
}

// ValidFields returns the join fields that name both keys.
func (j *Join) ValidFields() []JoinField {
	if j == nil {
		return nil
	}
	var out []JoinField
	for _, f := range j.Fields {
		if strings.TrimSpace(f.LeftKey) != "" && strings.TrimSpace(f.RightKey) != "" {
			out = append(out, f)
		}
	}
	return out
}

// View is a cube fact defined by SQL text instead of a table.
type View struct {
	Alias string        `yaml:"alias" json:"alias"`
	SQL   SQLExpression `yaml:"sql" json:"sql"`
}

// SQLExpression is raw SQL tagged with the dialect it was written for.
type SQLExpression struct {
	Dialect string `yaml:"dialect,omitempty" json:"dialect,omitempty"`
	Content string `yaml:"content" json:"content"`
}

// AppliesTo reports whether the expression can be used for dialect.
func (e *SQLExpression) AppliesTo(dialect string) bool {
	if e == nil || strings.TrimSpace(e.Content) == "" {
		return false
	}
	return e.Dialect == "" || e.Dialect == DialectGeneric || e.Dialect == dialect
}

// DimensionUsage references a shared schema dimension from a cube.
type DimensionUsage struct {
	Name       string `yaml:"name" json:"name"`
	Caption    string `yaml:"caption,omitempty" json:"caption,omitempty"`
	Source     string `yaml:"source" json:"source"`
	ForeignKey string `yaml:"foreignKey,omitempty" json:"foreignKey,omitempty"`
}

// Dimension is an authored dimension with its hierarchies.
type Dimension struct {
	Name             string      `yaml:"name" json:"name"`
	Caption          string      `yaml:"caption,omitempty" json:"caption,omitempty"`
	ForeignKey       string      `yaml:"foreignKey,omitempty" json:"foreignKey,omitempty"`
	Semantic         string      `yaml:"semantic,omitempty" json:"semantic,omitempty"`
	DefaultHierarchy string      `yaml:"defaultHierarchy,omitempty" json:"defaultHierarchy,omitempty"`
	Visible          *bool       `yaml:"visible,omitempty" json:"visible,omitempty"`
	Hierarchies      []Hierarchy `yaml:"hierarchies,omitempty" json:"hierarchies,omitempty"`
}

// Hierarchy is an ordered drill path within a dimension.
type Hierarchy struct {
	Name             string  `yaml:"name,omitempty" json:"name,omitempty"`
	Caption          string  `yaml:"caption,omitempty" json:"caption,omitempty"`
	HasAll           bool    `yaml:"hasAll,omitempty" json:"hasAll,omitempty"`
	AllLevelName     string  `yaml:"allLevelName,omitempty" json:"allLevelName,omitempty"`
	AllMemberName    string  `yaml:"allMemberName,omitempty" json:"allMemberName,omitempty"`
	AllMemberCaption string  `yaml:"allMemberCaption,omitempty" json:"allMemberCaption,omitempty"`
	PrimaryKey       string  `yaml:"primaryKey,omitempty" json:"primaryKey,omitempty"`
	PrimaryKeyTable  string  `yaml:"primaryKeyTable,omitempty" json:"primaryKeyTable,omitempty"`
	Tables           []Table `yaml:"tables,omitempty" json:"tables,omitempty"`
	Levels           []Level `yaml:"levels,omitempty" json:"levels,omitempty"`
}

// Level is one step of a hierarchy. Column references may be table-qualified
// ("table.column").
type Level struct {
	Name              string          `yaml:"name" json:"name"`
	Caption           string          `yaml:"caption,omitempty" json:"caption,omitempty"`
	Table             string          `yaml:"table,omitempty" json:"table,omitempty"`
	Column            string          `yaml:"column,omitempty" json:"column,omitempty"`
	NameColumn        string          `yaml:"nameColumn,omitempty" json:"nameColumn,omitempty"`
	CaptionColumn     string          `yaml:"captionColumn,omitempty" json:"captionColumn,omitempty"`
	OrdinalColumn     string          `yaml:"ordinalColumn,omitempty" json:"ordinalColumn,omitempty"`
	ParentColumn      string          `yaml:"parentColumn,omitempty" json:"parentColumn,omitempty"`
	Type              string          `yaml:"type,omitempty" json:"type,omitempty"`
	LevelType         string          `yaml:"levelType,omitempty" json:"levelType,omitempty"`
	UniqueMembers     bool            `yaml:"uniqueMembers,omitempty" json:"uniqueMembers,omitempty"`
	Semantics         *LevelSemantics `yaml:"semantics,omitempty" json:"semantics,omitempty"`
	CaptionExpression *SQLExpression  `yaml:"captionExpression,omitempty" json:"captionExpression,omitempty"`
	Properties        []LevelProperty `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// Quoted reports whether member values of the level are rendered as string literals.
func (l *Level) Quoted() bool {
	return l.Type != LevelTypeNumeric && l.Type != LevelTypeInteger
}

// LevelSemantics tags a level with a calendar granularity and its member format.
type LevelSemantics struct {
	Semantic  string `yaml:"semantic" json:"semantic"`
	Formatter string `yaml:"formatter,omitempty" json:"formatter,omitempty"`
}

// LevelProperty is a member attribute selectable next to the level key.
type LevelProperty struct {
	Name    string `yaml:"name" json:"name"`
	Caption string `yaml:"caption,omitempty" json:"caption,omitempty"`
	Column  string `yaml:"column,omitempty" json:"column,omitempty"`
}

// Measure is an aggregatable fact column. Column holds a literal number,
// a plain column name or a table-qualified reference.
type Measure struct {
	Name              string         `yaml:"name" json:"name"`
	Caption           string         `yaml:"caption,omitempty" json:"caption,omitempty"`
	Column            string         `yaml:"column,omitempty" json:"column,omitempty"`
	Aggregator        string         `yaml:"aggregator,omitempty" json:"aggregator,omitempty"`
	FormatString      string         `yaml:"formatString,omitempty" json:"formatString,omitempty"`
	Visible           *bool          `yaml:"visible,omitempty" json:"visible,omitempty"`
	MeasureExpression *SQLExpression `yaml:"measureExpression,omitempty" json:"measureExpression,omitempty"`
}

// CalculatedMember is the authored form of a calculation. CalculationType
// selects which of the remaining fields apply; see Calculation for the
// runtime form.
type CalculatedMember struct {
	Name            string          `yaml:"name" json:"name"`
	Caption         string          `yaml:"caption,omitempty" json:"caption,omitempty"`
	CalculationType CalculationType `yaml:"calculationType,omitempty" json:"calculationType,omitempty"`
	Formula         string          `yaml:"formula,omitempty" json:"formula,omitempty"`
	Measure         string          `yaml:"measure,omitempty" json:"measure,omitempty"`
	Slicers         []Filter        `yaml:"slicers,omitempty" json:"slicers,omitempty"`
	Aggregator      string          `yaml:"aggregator,omitempty" json:"aggregator,omitempty"`
	Operation       string          `yaml:"operation,omitempty" json:"operation,omitempty"`
	Value           float64         `yaml:"value,omitempty" json:"value,omitempty"`
	Dimensions      []DimensionRef  `yaml:"aggregationDimensions,omitempty" json:"aggregationDimensions,omitempty"`
	CompareA        *Slicer         `yaml:"compareA,omitempty" json:"compareA,omitempty"`
	ToB             *Slicer         `yaml:"toB,omitempty" json:"toB,omitempty"`
	FormatString    string          `yaml:"formatString,omitempty" json:"formatString,omitempty"`
	Visible         *bool           `yaml:"visible,omitempty" json:"visible,omitempty"`
}

// Indicator is a named KPI bound to an entity.
type Indicator struct {
	ID         string   `yaml:"id,omitempty" json:"id,omitempty"`
	Code       string   `yaml:"code" json:"code"`
	Name       string   `yaml:"name,omitempty" json:"name,omitempty"`
	Entity     string   `yaml:"entity" json:"entity"`
	Formula    string   `yaml:"formula,omitempty" json:"formula,omitempty"`
	Measure    string   `yaml:"measure,omitempty" json:"measure,omitempty"`
	Aggregator string   `yaml:"aggregator,omitempty" json:"aggregator,omitempty"`
	Filters    []Filter `yaml:"filters,omitempty" json:"filters,omitempty"`
	Unit       string   `yaml:"unit,omitempty" json:"unit,omitempty"`
	Visible    *bool    `yaml:"visible,omitempty" json:"visible,omitempty"`
}

// EntityOverride carries authored enhancements applied on top of a
// discovered or compiled entity type.
type EntityOverride struct {
	Caption           string                      `yaml:"caption,omitempty" json:"caption,omitempty"`
	DefaultMeasure    string                      `yaml:"defaultMeasure,omitempty" json:"defaultMeasure,omitempty"`
	Measures          map[string]PropertyOverride `yaml:"measures,omitempty" json:"measures,omitempty"`
	Dimensions        map[string]PropertyOverride `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	CalculatedMembers []CalculatedMember          `yaml:"calculatedMembers,omitempty" json:"calculatedMembers,omitempty"`
}

// PropertyOverride adjusts presentation attributes of an existing property.
type PropertyOverride struct {
	Caption      string `yaml:"caption,omitempty" json:"caption,omitempty"`
	FormatString string `yaml:"formatString,omitempty" json:"formatString,omitempty"`
	Visible      *bool  `yaml:"visible,omitempty" json:"visible,omitempty"`
}

// BoolValue dereferences b, returning def when b is nil.
func BoolValue(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

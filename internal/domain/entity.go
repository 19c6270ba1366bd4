package domain

import (
	"sort"
	"strings"
)

// EntitySemantics classifies what backs an entity type.
type EntitySemantics string

// Entity semantics.
const (
	EntityCube      EntitySemantics = "cube"
	EntityDimension EntitySemantics = "dimension"
	EntityTable     EntitySemantics = "table"
)

// SyntaxSQL is the syntax tag of entity types compiled to SQL.
const SyntaxSQL = "sql"

// EntityType is the merged, queryable view of an entity: compiled or
// discovered dimensions and measures, plus indicators and ad hoc calculations.
// Dimensions are keyed by qualified name, measures by name.
type EntityType struct {
	Name           string
	Caption        string
	Semantics      EntitySemantics
	Dialect        string
	Syntax         string
	Catalog        string
	DefaultMeasure string
	// Cube is the resolved cube backing the entity; nil for dimension entities.
	Cube       *Cube
	Dimensions map[string]*RuntimeDimension
	Measures   map[string]*RuntimeMeasure
	Indicators []Indicator
}

// NewEntityType returns an empty entity type ready for properties.
func NewEntityType(name string, semantics EntitySemantics) *EntityType {
	return &EntityType{
		Name:       name,
		Caption:    name,
		Semantics:  semantics,
		Syntax:     SyntaxSQL,
		Dimensions: map[string]*RuntimeDimension{},
		Measures:   map[string]*RuntimeMeasure{},
	}
}

// Clone returns a copy whose property maps can be modified without affecting e.
// Property values are shared.
func (e *EntityType) Clone() *EntityType {
	out := *e
	out.Dimensions = make(map[string]*RuntimeDimension, len(e.Dimensions))
	for k, v := range e.Dimensions {
		out.Dimensions[k] = v
	}
	out.Measures = make(map[string]*RuntimeMeasure, len(e.Measures))
	for k, v := range e.Measures {
		out.Measures[k] = v
	}
	out.Indicators = append([]Indicator(nil), e.Indicators...)
	return &out
}

// DimensionNames returns dimension keys in sorted order.
func (e *EntityType) DimensionNames() []string {
	names := make([]string, 0, len(e.Dimensions))
	for k := range e.Dimensions {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MeasureNames returns measure keys in sorted order.
func (e *EntityType) MeasureNames() []string {
	names := make([]string, 0, len(e.Measures))
	for k := range e.Measures {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// LookupMeasure finds a measure by name, accepting "[Measures].[Name]" and
// bracketed forms, and case-insensitively when fold is set.
func (e *EntityType) LookupMeasure(name string, fold bool) *RuntimeMeasure {
	name = strings.TrimSpace(name)
	if m, ok := e.Measures[name]; ok {
		return m
	}
	bare := name
	if i := strings.Index(bare, "].["); i >= 0 && strings.EqualFold(strings.TrimPrefix(bare[:i], "["), MeasuresDimension) {
		bare = bare[i+3:]
	}
	bare = strings.TrimSuffix(strings.TrimPrefix(bare, "["), "]")
	if m, ok := e.Measures[bare]; ok {
		return m
	}
	if fold {
		for k, m := range e.Measures {
			if strings.EqualFold(k, bare) {
				return m
			}
		}
	}
	return nil
}

// RuntimeDimension is a compiled dimension with qualified names.
type RuntimeDimension struct {
	// Name is the qualified name, e.g. "[Time]".
	Name             string
	Plain            string
	Caption          string
	Entity           string
	ForeignKey       string
	Semantic         string
	DefaultHierarchy string
	MemberCaption    string
	Visible          bool
	Hierarchies      []*RuntimeHierarchy
}

// RuntimeHierarchy is a compiled hierarchy. When HasAll is set, Levels[0]
// is the synthetic All level.
type RuntimeHierarchy struct {
	// Name is the qualified name, e.g. "[Time]" or "[Time.Fiscal]".
	Name             string
	Plain            string
	Caption          string
	Dimension        string
	Entity           string
	AliasPrefix      string
	HasAll           bool
	AllMemberName    string
	AllMemberCaption string
	PrimaryKey       string
	PrimaryKeyTable  string
	Tables           []Table
	MemberCaption    string
	Levels           []*RuntimeLevel
}

// DataLevels returns the levels backed by data, skipping the All level.
func (h *RuntimeHierarchy) DataLevels() []*RuntimeLevel {
	if h.HasAll && len(h.Levels) > 0 {
		return h.Levels[1:]
	}
	return h.Levels
}

// DimensionTable returns the table the hierarchy joins the fact through.
func (h *RuntimeHierarchy) DimensionTable() string {
	if h.PrimaryKeyTable != "" {
		return h.PrimaryKeyTable
	}
	if len(h.Tables) > 0 {
		return h.Tables[0].Name
	}
	return ""
}

// RuntimeLevel is a compiled level. The embedded Level keeps the authored
// column references; UniqueName is the qualified name.
type RuntimeLevel struct {
	Level
	UniqueName    string
	LevelNumber   int
	Hierarchy     string
	Dimension     string
	MemberCaption string
	IsAll         bool
	Props         []RuntimeLevelProperty
}

// RuntimeLevelProperty is a level property with its qualified name.
type RuntimeLevelProperty struct {
	UniqueName string
	LevelProperty
}

// RuntimeMeasure is a base or calculated measure of an entity type.
// Calculation is nil for base measures.
type RuntimeMeasure struct {
	Name         string
	Caption      string
	Entity       string
	Column       string
	Aggregator   string
	FormatString string
	Unit         string
	Expression   *SQLExpression
	Visible      bool
	Calculation  Calculation
}

// IsCalculated reports whether the measure is derived from other measures.
func (m *RuntimeMeasure) IsCalculated() bool {
	return m.Calculation != nil
}

// Dimension finds a dimension by qualified ("[Time]") or plain ("Time") name.
func (e *EntityType) Dimension(name string) *RuntimeDimension {
	if d, ok := e.Dimensions[name]; ok {
		return d
	}
	bare := trimBrackets(name)
	for _, d := range e.Dimensions {
		if d.Plain == bare || trimBrackets(d.Name) == bare {
			return d
		}
	}
	for _, d := range e.Dimensions {
		if strings.EqualFold(d.Plain, bare) {
			return d
		}
	}
	return nil
}

// CalendarDimension returns the first dimension, by name, tagged with the
// calendar semantic.
func (e *EntityType) CalendarDimension() *RuntimeDimension {
	for _, name := range e.DimensionNames() {
		if d := e.Dimensions[name]; strings.EqualFold(d.Semantic, SemanticCalendar) {
			return d
		}
	}
	return nil
}

// Hierarchy finds a hierarchy by qualified or plain name. An empty name
// selects the default hierarchy: the declared default, else the hierarchy
// named after the dimension, else the first.
func (d *RuntimeDimension) Hierarchy(name string) *RuntimeHierarchy {
	if len(d.Hierarchies) == 0 {
		return nil
	}
	if name == "" || name == d.Name || trimBrackets(name) == d.Plain {
		if d.DefaultHierarchy != "" && d.DefaultHierarchy != name {
			if h := d.Hierarchy(d.DefaultHierarchy); h != nil {
				return h
			}
		}
		for _, h := range d.Hierarchies {
			if h.Plain == "" || h.Plain == d.Plain {
				return h
			}
		}
		return d.Hierarchies[0]
	}
	bare := trimBrackets(name)
	for _, h := range d.Hierarchies {
		if h.Name == name || h.Plain == bare || trimBrackets(h.Name) == bare {
			return h
		}
	}
	return nil
}

// Level finds a level by unique or plain name and returns it with its index.
// An empty name selects the first level.
func (h *RuntimeHierarchy) Level(name string) (*RuntimeLevel, int) {
	if len(h.Levels) == 0 {
		return nil, -1
	}
	if name == "" {
		return h.Levels[0], 0
	}
	bare := trimBrackets(name)
	for i, l := range h.Levels {
		if l.UniqueName == name || l.Name == bare || strings.EqualFold(l.UniqueName, name) {
			return l, i
		}
	}
	return nil, -1
}

// LevelBySemantic returns the level tagged with semantic, or nil.
func (h *RuntimeHierarchy) LevelBySemantic(semantic string) *RuntimeLevel {
	for _, l := range h.Levels {
		if l.Semantics != nil && strings.EqualFold(l.Semantics.Semantic, semantic) {
			return l
		}
	}
	return nil
}

func trimBrackets(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") && !strings.Contains(name, "].[") {
		return name[1 : len(name)-1]
	}
	return name
}

package domain

import "strings"

// MeasuresDimension is the pseudo-dimension holding measures on a query axis.
const MeasuresDimension = "Measures"

// RowCountMeasure is the synthetic measure counting fact rows.
const RowCountMeasure = "__rows__"

// FilterOperator compares slicer members with level values.
type FilterOperator string

// Slicer operators. An empty operator means EQ.
const (
	OperatorEQ FilterOperator = "EQ"
	OperatorNE FilterOperator = "NE"
	OperatorGT FilterOperator = "GT"
	OperatorGE FilterOperator = "GE"
	OperatorLT FilterOperator = "LT"
	OperatorLE FilterOperator = "LE"
	OperatorBT FilterOperator = "BT"
)

// FuzzyOperator matches a member caption by pattern instead of by key.
type FuzzyOperator string

// Fuzzy member operators.
const (
	FuzzyContains    FuzzyOperator = "Contains"
	FuzzyNotContains FuzzyOperator = "NotContains"
	FuzzyStartsWith  FuzzyOperator = "StartsWith"
	FuzzyEndsWith    FuzzyOperator = "EndsWith"
)

// FilteringLogic combines the children of an advanced filter.
type FilteringLogic string

// Filtering logics.
const (
	LogicAnd FilteringLogic = "And"
	LogicOr  FilteringLogic = "Or"
)

// OrderDirection is an ORDER BY direction.
type OrderDirection string

// Order directions.
const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// DimensionRef names a dimension, and optionally one of its hierarchies and levels.
// Names may be plain ("Time", "Month") or qualified ("[Time]", "[Time].[Month]").
type DimensionRef struct {
	Dimension  string   `yaml:"dimension" json:"dimension"`
	Hierarchy  string   `yaml:"hierarchy,omitempty" json:"hierarchy,omitempty"`
	Level      string   `yaml:"level,omitempty" json:"level,omitempty"`
	Properties []string `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// IsMeasures reports whether the reference targets the measures pseudo-dimension.
func (d DimensionRef) IsMeasures() bool {
	name := strings.Trim(d.Dimension, "[]")
	return strings.EqualFold(name, MeasuresDimension)
}

// Member is a dimension member, or a measure name on the measures axis.
type Member struct {
	Key      string        `yaml:"key,omitempty" json:"key,omitempty"`
	Value    string        `yaml:"value,omitempty" json:"value,omitempty"`
	Caption  string        `yaml:"caption,omitempty" json:"caption,omitempty"`
	Operator FuzzyOperator `yaml:"operator,omitempty" json:"operator,omitempty"`
}

// MemberKey returns the member's key, falling back to its value.
func (m Member) MemberKey() string {
	if m.Key != "" {
		return m.Key
	}
	return m.Value
}

// Label returns the member's caption, falling back to its key.
func (m Member) Label() string {
	if m.Caption != "" {
		return m.Caption
	}
	return m.MemberKey()
}

// Slicer binds a dimension to member values.
type Slicer struct {
	Dimension DimensionRef   `yaml:"dimension" json:"dimension"`
	Members   []Member       `yaml:"members,omitempty" json:"members,omitempty"`
	Operator  FilterOperator `yaml:"operator,omitempty" json:"operator,omitempty"`
	Exclude   bool           `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// Filter is either a slicer or, when Children or FilteringLogic is set,
// an advanced filter combining its children.
type Filter struct {
	Slicer         `yaml:",inline"`
	FilteringLogic FilteringLogic `yaml:"filteringLogic,omitempty" json:"filteringLogic,omitempty"`
	Children       []Filter       `yaml:"children,omitempty" json:"children,omitempty"`
}

// IsAdvanced reports whether the filter is an AND/OR node.
func (f Filter) IsAdvanced() bool {
	return f.FilteringLogic != "" || len(f.Children) > 0
}

// SlicerFilter wraps s as a leaf filter.
func SlicerFilter(s Slicer) Filter {
	return Filter{Slicer: s}
}

// TimeGranularity is the period unit of a time range.
type TimeGranularity string

// Time granularities.
const (
	GranularityYear    TimeGranularity = "Year"
	GranularityQuarter TimeGranularity = "Quarter"
	GranularityMonth   TimeGranularity = "Month"
	GranularityWeek    TimeGranularity = "Week"
	GranularityDay     TimeGranularity = "Day"
)

// TimeRangeType selects how a range window is anchored.
type TimeRangeType string

// Time range types.
const (
	TimeRangeStandard TimeRangeType = "Standard"
	TimeRangeOffset   TimeRangeType = "Offset"
)

// OffsetDirection is the sign of a time offset.
type OffsetDirection string

// Offset directions.
const (
	LookBack  OffsetDirection = "LookBack"
	LookAhead OffsetDirection = "LookAhead"
)

// CurrentDatePolicy selects the reference date of a time slicer.
type CurrentDatePolicy string

// Current date policies.
const (
	CurrentDateToday      CurrentDatePolicy = "TODAY"
	CurrentDateSystemTime CurrentDatePolicy = "SYSTEMTIME"
)

// TimeOffset shifts the reference date of an Offset range.
type TimeOffset struct {
	Direction OffsetDirection `yaml:"direction" json:"direction"`
	Amount    int             `yaml:"amount" json:"amount"`
}

// TimeRange is one relative or absolute calendar window.
type TimeRange struct {
	Type        TimeRangeType   `yaml:"type" json:"type"`
	Granularity TimeGranularity `yaml:"granularity" json:"granularity"`
	Current     *TimeOffset     `yaml:"current,omitempty" json:"current,omitempty"`
	LookBack    *int            `yaml:"lookBack,omitempty" json:"lookBack,omitempty"`
	LookAhead   *int            `yaml:"lookAhead,omitempty" json:"lookAhead,omitempty"`
	Start       string          `yaml:"start,omitempty" json:"start,omitempty"`
	End         string          `yaml:"end,omitempty" json:"end,omitempty"`
	Formatter   string          `yaml:"formatter,omitempty" json:"formatter,omitempty"`
}

// TimeRangesSlicer restricts a calendar dimension to one or more time ranges.
type TimeRangesSlicer struct {
	Dimension   DimensionRef      `yaml:"dimension" json:"dimension"`
	CurrentDate CurrentDatePolicy `yaml:"currentDate,omitempty" json:"currentDate,omitempty"`
	Ranges      []TimeRange       `yaml:"ranges" json:"ranges"`
}

// Axis is one entry of a query's rows or columns: a dimension reference, or
// the measures pseudo-dimension listing measures as members.
type Axis struct {
	DimensionRef `yaml:",inline"`
	// Levels spans the axis over several levels of the hierarchy; each
	// combination of levels across axes becomes one SELECT of a UNION.
	Levels []string `yaml:"levels,omitempty" json:"levels,omitempty"`
	// Measure names a single measure axis entry.
	Measure string `yaml:"measure,omitempty" json:"measure,omitempty"`
	// Members restrict a dimension axis, or list the measures of a measures axis.
	Members  []Member       `yaml:"members,omitempty" json:"members,omitempty"`
	Operator FilterOperator `yaml:"operator,omitempty" json:"operator,omitempty"`
	Exclude  bool           `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Order    OrderDirection `yaml:"order,omitempty" json:"order,omitempty"`
}

// IsMeasure reports whether the axis holds measures.
func (a Axis) IsMeasure() bool {
	return a.Measure != "" || a.DimensionRef.IsMeasures()
}

// MeasureNames lists the measures carried by a measure axis.
func (a Axis) MeasureNames() []string {
	if a.Measure != "" {
		return []string{a.Measure}
	}
	names := make([]string, 0, len(a.Members))
	for _, m := range a.Members {
		names = append(names, m.MemberKey())
	}
	return names
}

// OrderBy orders the outer result by an output column.
type OrderBy struct {
	By    string         `yaml:"by" json:"by"`
	Order OrderDirection `yaml:"order,omitempty" json:"order,omitempty"`
}

// Paging limits the result window.
type Paging struct {
	Top  int `yaml:"top,omitempty" json:"top,omitempty"`
	Skip int `yaml:"skip,omitempty" json:"skip,omitempty"`
}

// Query is a structured analytical query against one entity.
type Query struct {
	Rows               []Axis             `yaml:"rows,omitempty" json:"rows,omitempty"`
	Columns            []Axis             `yaml:"columns,omitempty" json:"columns,omitempty"`
	Filters            []Filter           `yaml:"filters,omitempty" json:"filters,omitempty"`
	TimeRanges         []TimeRangesSlicer `yaml:"timeRanges,omitempty" json:"timeRanges,omitempty"`
	OrderBys           []OrderBy          `yaml:"orderBys,omitempty" json:"orderBys,omitempty"`
	Paging             *Paging            `yaml:"paging,omitempty" json:"paging,omitempty"`
	CalculatedMeasures []CalculatedMember `yaml:"calculatedMeasures,omitempty" json:"calculatedMeasures,omitempty"`
	FilterString       string             `yaml:"filterString,omitempty" json:"filterString,omitempty"`
}

// Validate checks that the query is well-formed.
func (q *Query) Validate() error {
	if len(q.Rows) == 0 && len(q.Columns) == 0 {
		return ErrValidation("query must request at least one row or column")
	}
	for _, axis := range append(append([]Axis{}, q.Rows...), q.Columns...) {
		if !axis.IsMeasure() && strings.TrimSpace(axis.Dimension) == "" {
			return ErrValidation("axis dimension is required")
		}
		if axis.Order != "" && !validOrder(axis.Order) {
			return ErrValidation("invalid order %q on %q", axis.Order, axis.Dimension)
		}
	}
	for _, ob := range q.OrderBys {
		if strings.TrimSpace(ob.By) == "" {
			return ErrValidation("order by column is required")
		}
		if ob.Order != "" && !validOrder(ob.Order) {
			return ErrValidation("invalid order %q for %q", ob.Order, ob.By)
		}
	}
	if q.Paging != nil && (q.Paging.Top < 0 || q.Paging.Skip < 0) {
		return ErrValidation("paging top and skip must not be negative")
	}
	for _, ts := range q.TimeRanges {
		if len(ts.Ranges) == 0 {
			return ErrValidation("time slicer on %q has no ranges", ts.Dimension.Dimension)
		}
	}
	return nil
}

func validOrder(o OrderDirection) bool {
	switch OrderDirection(strings.ToUpper(string(o))) {
	case OrderAsc, OrderDesc:
		return true
	}
	return false
}

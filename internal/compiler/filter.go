package compiler

import (
	"strings"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
	"cubesql/internal/naming"
)

// unassignedMember is the key segment of members whose column is NULL.
const unassignedMember = "#"

// matchNone is a predicate no row satisfies.
const matchNone = "1 = 0"

// condition compares one level column with one value. raw conditions are
// complete predicates and ignore the comparison operator.
type condition struct {
	column string
	op     string
	value  string
	raw    string
}

func (cd condition) render(op string) string {
	if cd.raw != "" {
		return cd.raw
	}
	if cd.op != "" {
		op = cd.op
	}
	return cd.column + " " + op + " " + cd.value
}

// compileFilters AND-combines filters, each parenthesized.
func (c *queryContext) compileFilters(filters []domain.Filter) (string, error) {
	conds := make([]string, 0, len(filters))
	for _, f := range filters {
		cond, err := c.compileFilter(f)
		if err != nil {
			return "", err
		}
		conds = append(conds, cond)
	}
	return and(parens(conds...)...), nil
}

func (c *queryContext) compileFilter(f domain.Filter) (string, error) {
	if !f.IsAdvanced() {
		return c.compileSlicer(f.Slicer)
	}
	children := make([]string, 0, len(f.Children))
	for _, child := range f.Children {
		cond, err := c.compileFilter(child)
		if err != nil {
			return "", err
		}
		children = append(children, cond)
	}
	switch f.FilteringLogic {
	case domain.LogicOr:
		return or(parens(children...)...), nil
	case domain.LogicAnd, "":
		return and(parens(children...)...), nil
	default:
		return "", domain.ErrValidation("unsupported filtering logic %q", f.FilteringLogic)
	}
}

// compileSlicer compiles the members of s into one predicate. Members are
// OR-ed; with exclude each member is negated and the negations are AND-ed.
func (c *queryContext) compileSlicer(s domain.Slicer) (string, error) {
	if s.Dimension.IsMeasures() {
		return "", domain.ErrValidation("cannot filter on the measures dimension")
	}
	dc, err := c.dimension(s.Dimension)
	if err != nil {
		return "", err
	}
	if len(s.Members) == 0 {
		return "", nil
	}

	op := domain.FilterOperator(strings.ToUpper(string(s.Operator)))
	if op == domain.OperatorBT {
		if len(s.Members) != 2 {
			return "", domain.ErrValidation("between filter on %q needs 2 members, got %d", dc.dim.Plain, len(s.Members))
		}
		low, err := dc.memberConditions(s.Dimension.Level, s.Members[0])
		if err != nil {
			return "", err
		}
		high, err := dc.memberConditions(s.Dimension.Level, s.Members[1])
		if err != nil {
			return "", err
		}
		stmt := and(parens(compare(low, domain.OperatorGE), compare(high, domain.OperatorLE))...)
		if s.Exclude && stmt != "" {
			return not(stmt), nil
		}
		return stmt, nil
	}

	conds := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		mc, err := dc.memberConditions(s.Dimension.Level, m)
		if err != nil {
			return "", err
		}
		if len(mc) == 0 {
			// The All member holds every row.
			if s.Exclude {
				return matchNone, nil
			}
			return "", nil
		}
		var cond string
		switch op {
		case domain.OperatorGT, domain.OperatorGE, domain.OperatorLT, domain.OperatorLE:
			cond = compare(mc, op)
		case domain.OperatorNE:
			cond = not(equal(mc))
		case domain.OperatorEQ, "":
			cond = equal(mc)
		default:
			return "", domain.ErrValidation("unsupported filter operator %q on %q", s.Operator, dc.dim.Plain)
		}
		conds = append(conds, cond)
	}

	if s.Exclude {
		negated := make([]string, 0, len(conds))
		for _, cond := range conds {
			negated = append(negated, not(cond))
		}
		return and(negated...), nil
	}
	return or(parens(conds...)...), nil
}

// memberConditions decomposes a member into one condition per level.
//
// Key segments map left to right onto the data levels. When the slicer
// names a level the segments end on that level instead, so "[202205]"
// against the Month level compares the month column only. A leading All
// segment is dropped; a member with no remaining segments is the All member
// and yields no condition.
func (dc *dimensionContext) memberConditions(levelName string, m domain.Member) ([]condition, error) {
	data := dc.hier.DataLevels()
	target := -1
	if levelName != "" {
		level, _ := dc.hier.Level(levelName)
		if level == nil {
			return nil, domain.ErrResolution("level %q not found in hierarchy %q of dimension %q", levelName, dc.hier.Name, dc.dim.Plain)
		}
		if level.IsAll {
			return nil, nil
		}
		for i, l := range data {
			if l == level {
				target = i
			}
		}
	}

	if m.Operator != "" {
		return dc.fuzzyConditions(data, target, m)
	}

	key := m.MemberKey()
	if key == "" {
		return nil, domain.ErrValidation("member of %q has no key", dc.dim.Plain)
	}
	segments := naming.SplitMemberKey(key)
	if dc.hier.HasAll && len(segments) > 0 && segments[0] == dc.hier.AllMemberName {
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return nil, nil
	}

	start := 0
	if target >= 0 {
		start = target - len(segments) + 1
	}
	if start < 0 || start+len(segments) > len(data) {
		return nil, domain.ErrResolution("member %q has more segments than the levels of hierarchy %q", key, dc.hier.Name)
	}

	d := dc.c.d
	conds := make([]condition, 0, len(segments))
	for i, value := range segments {
		level := data[start+i]
		col := dc.c.ref(dc.keyColumn(level))
		if value == unassignedMember {
			conds = append(conds, condition{raw: col + " IS NULL"})
			continue
		}
		literal, err := memberLiteral(d, level, value)
		if err != nil {
			return nil, err
		}
		conds = append(conds, condition{column: col, value: literal})
	}
	return conds, nil
}

// fuzzyConditions matches the member caption against the named level, or
// against every data level when the slicer names none.
func (dc *dimensionContext) fuzzyConditions(data []*domain.RuntimeLevel, target int, m domain.Member) ([]condition, error) {
	value := firstNonEmpty(m.Caption, m.Value, m.Key)
	var pattern, op string
	switch m.Operator {
	case domain.FuzzyContains:
		pattern, op = "%"+value+"%", "LIKE"
	case domain.FuzzyNotContains:
		pattern, op = "%"+value+"%", "NOT LIKE"
	case domain.FuzzyStartsWith:
		pattern, op = value+"%", "LIKE"
	case domain.FuzzyEndsWith:
		pattern, op = "%"+value, "LIKE"
	default:
		return nil, domain.ErrValidation("unsupported member operator %q on %q", m.Operator, dc.dim.Plain)
	}

	levels := data
	if target >= 0 {
		levels = data[target : target+1]
	}
	d := dc.c.d
	conds := make([]condition, 0, len(levels))
	for _, level := range levels {
		col := dc.columnFor(level, firstNonEmpty(level.CaptionColumn, level.NameColumn, level.Column, level.Name))
		conds = append(conds, condition{column: dc.c.ref(col), op: op, value: d.String(pattern)})
	}
	return conds, nil
}

// memberLiteral renders a key segment for comparison with the level column.
// Numeric levels compare plain decimals unquoted and reject anything else.
func memberLiteral(d dialect.Dialect, level *domain.RuntimeLevel, value string) (string, error) {
	if level.Quoted() {
		return d.String(value), nil
	}
	if !isNumber(value) {
		return "", domain.ErrValidation("member %q is not a number on level %q", value, level.Name)
	}
	return value, nil
}

func equal(conds []condition) string {
	parts := make([]string, 0, len(conds))
	for _, cd := range conds {
		parts = append(parts, cd.render("="))
	}
	return and(parts...)
}

// compare builds a lexicographic tuple comparison: the first level
// compares strictly, or it is equal and the next level compares, and so on.
// GE and LE also accept the exact tuple.
func compare(conds []condition, op domain.FilterOperator) string {
	symbol := "="
	switch op {
	case domain.OperatorGT, domain.OperatorGE:
		symbol = ">"
	case domain.OperatorLT, domain.OperatorLE:
		symbol = "<"
	}
	groups := make([]string, 0, len(conds)+1)
	for i, cd := range conds {
		group := make([]string, 0, i+1)
		for _, prev := range conds[:i] {
			group = append(group, prev.render("="))
		}
		group = append(group, cd.render(symbol))
		if len(group) == 1 {
			groups = append(groups, group[0])
		} else {
			groups = append(groups, "( "+and(group...)+" )")
		}
	}
	if op == domain.OperatorGE || op == domain.OperatorLE {
		groups = append(groups, "( "+equal(conds)+" )")
	}
	return or(groups...)
}

// CompileFilters compiles filters against et into one WHERE predicate.
func CompileFilters(et *domain.EntityType, d dialect.Dialect, filters []domain.Filter) (string, error) {
	c := newQueryContext(et, d, Options{})
	return c.compileFilters(filters)
}

// Package naming builds the qualified ("unique") names of schema elements and
// the table aliases used in generated SQL. Every function is a pure function
// of its inputs.
package naming

import (
	"regexp"
	"strings"

	"cubesql/internal/dialect"
)

// Intrinsic member properties appended to level and hierarchy names.
const (
	MemberCaption    = "MEMBER_CAPTION"
	ParentUniqueName = "PARENT_UNIQUE_NAME"
)

// Defaults of the synthetic All member.
const (
	AllMemberName    = "(All)"
	AllMemberCaption = "All"
)

// QualifiedName is the name path of a schema element. Rendering is deferred
// to String so the same path yields the dialect-specific text.
type QualifiedName struct {
	Dimension string
	Hierarchy string
	Level     string
	Intrinsic string
}

// String renders the name for d: "[Dim]" or "[Dim.Hier]", then ".[Level]"
// and ".[Intrinsic]". Case-insensitive dialects get lower case.
func (q QualifiedName) String(d dialect.Dialect) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(q.Dimension)
	if q.Hierarchy != "" && q.Hierarchy != q.Dimension {
		b.WriteString(d.NameSeparator)
		b.WriteString(q.Hierarchy)
	}
	b.WriteByte(']')
	if q.Intrinsic != "" {
		b.WriteString(d.NameConnector + "[" + q.Level + "]")
		b.WriteString(d.NameConnector + "[" + q.Intrinsic + "]")
	} else if q.Level != "" {
		b.WriteString(d.NameConnector + "[" + q.Level + "]")
	}
	return d.Fold(b.String())
}

// Unique renders the qualified name of a dimension, hierarchy or level.
func Unique(d dialect.Dialect, dimension, hierarchy, level string) string {
	return QualifiedName{Dimension: dimension, Hierarchy: hierarchy, Level: level}.String(d)
}

// Intrinsic appends an intrinsic property to an already rendered name.
func Intrinsic(d dialect.Dialect, base, intrinsic string) string {
	return d.Fold(base + d.NameConnector + "[" + intrinsic + "]")
}

// TableAlias derives the alias of table within the scope of prefix (a cube or
// hierarchy name): whitespace becomes "_", the prefix is lower-cased.
// An empty prefix leaves the table name unchanged.
func TableAlias(prefix, table string) string {
	if strings.TrimSpace(prefix) == "" {
		return table
	}
	return strings.ToLower(whitespace.ReplaceAllString(prefix, "_")) + "_" + table
}

var whitespace = regexp.MustCompile(`\s`)

// ColumnRef is a parsed column reference.
type ColumnRef struct {
	Table  string
	Column string
}

// ParseColumn splits "table.column", "[table].[column]" or "column".
func ParseColumn(ref string) ColumnRef {
	ref = strings.TrimSpace(ref)
	if parts := strings.Split(ref, "."); len(parts) == 2 {
		return ColumnRef{Table: CleanDelimiters(parts[0]), Column: CleanDelimiters(parts[1])}
	}
	return ColumnRef{Column: CleanDelimiters(ref)}
}

// CleanDelimiters strips one layer of brackets, double quotes, backticks and
// single quotes, in that order.
func CleanDelimiters(name string) string {
	s := strings.TrimSpace(name)
	for _, pair := range [][2]string{{"[", "]"}, {`"`, `"`}, {"`", "`"}, {"'", "'"}} {
		if len(s) >= 2 && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			s = s[1 : len(s)-1]
		}
	}
	return s
}

// SplitMemberKey splits "[a].[b]" into its segments. A key without brackets
// is a single segment.
func SplitMemberKey(key string) []string {
	key = strings.TrimPrefix(key, "[")
	key = strings.TrimSuffix(key, "]")
	return strings.Split(key, "].[")
}

// JoinMemberKey is the inverse of SplitMemberKey.
func JoinMemberKey(segments ...string) string {
	return "[" + strings.Join(segments, "].[") + "]"
}

// AllLevelCaption returns the caption of a hierarchy's synthetic All level.
func AllLevelCaption(allLevelName, hierarchy, dimension string) string {
	if allLevelName != "" {
		return allLevelName
	}
	if hierarchy == "" {
		hierarchy = dimension
	}
	return "(All " + hierarchy + "s)"
}

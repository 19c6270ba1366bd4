// Package dialect describes the SQL syntax variants the compiler targets.
// A Dialect is pure data plus rendering helpers; no compiler code branches on
// a dialect name.
package dialect

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cubesql/internal/domain"
)

// PagingStyle selects how a result window is rendered.
type PagingStyle int

const (
	// PagingLimit renders LIMIT n OFFSET m.
	PagingLimit PagingStyle = iota
	// PagingOffsetFetch renders OFFSET m ROWS FETCH NEXT n ROWS ONLY.
	PagingOffsetFetch
)

// Dialect holds the identifier and expression rules of one database.
type Dialect struct {
	Name string
	// QuoteOpen and QuoteClose delimit identifiers.
	QuoteOpen  string
	QuoteClose string
	// CaseInsensitive dialects fold qualified names and result keys to lower case.
	CaseInsensitive bool
	// NameSeparator joins dimension and hierarchy inside one bracket pair;
	// NameConnector joins bracket pairs.
	NameSeparator string
	NameConnector string
	// ConcatOperator renders string concatenation with || instead of concat().
	ConcatOperator bool
	// CastUnassigned casts level keys inside the unassigned-member guard.
	CastUnassigned bool
	// StringType is the CAST target for level keys.
	StringType string
	Paging     PagingStyle
	// OrderedUnionOperands allows parenthesized UNION operands that carry
	// their own ORDER BY.
	OrderedUnionOperands bool
	// UnorderedDerivedTables rejects ORDER BY inside a derived table that
	// has no row window.
	UnorderedDerivedTables bool
}

var registry = map[string]Dialect{}

func register(d Dialect) {
	if d.QuoteOpen == "" {
		d.QuoteOpen, d.QuoteClose = "`", "`"
	}
	if d.NameSeparator == "" {
		d.NameSeparator = "."
	}
	if d.StringType == "" {
		d.StringType = "VARCHAR"
	}
	registry[d.Name] = d
}

func init() {
	ansi := func(name string) Dialect {
		return Dialect{Name: name, QuoteOpen: `"`, QuoteClose: `"`, NameConnector: ".", OrderedUnionOperands: true}
	}

	pg := ansi("pg")
	pg.CastUnassigned = true
	register(pg)
	register(ansi("duckdb"))
	register(ansi("trino"))
	register(ansi("presto"))

	hana := ansi("hana")
	hana.ConcatOperator = true
	hana.StringType = "NVARCHAR"
	register(hana)

	mssql := ansi("mssql")
	mssql.Paging = PagingOffsetFetch
	mssql.OrderedUnionOperands = false
	mssql.UnorderedDerivedTables = true
	mssql.StringType = "NVARCHAR(MAX)"
	register(mssql)

	register(Dialect{Name: "sqlite", NameConnector: ".", ConcatOperator: true, StringType: "TEXT"})
	register(Dialect{Name: "mysql", NameConnector: ".", StringType: "CHAR", OrderedUnionOperands: true})
	register(Dialect{Name: "doris", NameConnector: ".", StringType: "CHAR", OrderedUnionOperands: true})
	register(Dialect{Name: "starrocks", NameConnector: ".", StringType: "VARCHAR", OrderedUnionOperands: true})
	register(Dialect{Name: "clickhouse", NameConnector: ".", StringType: "String"})
	register(Dialect{Name: "hive", NameSeparator: "|", NameConnector: "", CaseInsensitive: true, StringType: "STRING"})
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, error) {
	d, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Dialect{}, domain.ErrValidation("unsupported dialect %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return d, nil
}

// MustLookup is Lookup for dialect names known at compile time.
func MustLookup(name string) Dialect {
	d, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return d
}

// Names lists the registered dialect names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Quote delimits an identifier, doubling embedded closing delimiters.
func (d Dialect) Quote(name string) string {
	escaped := strings.ReplaceAll(name, d.QuoteClose, d.QuoteClose+d.QuoteClose)
	return d.QuoteOpen + escaped + d.QuoteClose
}

// QuoteTable delimits a table name, qualified by catalog when one is set.
func (d Dialect) QuoteTable(catalog, name string) string {
	if catalog == "" {
		return d.Quote(name)
	}
	return d.Quote(catalog) + "." + d.Quote(name)
}

// Column renders table.column with both parts delimited.
func (d Dialect) Column(table, column string) string {
	if table == "" {
		return d.Quote(column)
	}
	return d.Quote(table) + "." + d.Quote(column)
}

// Fold lower-cases name for case-insensitive dialects.
func (d Dialect) Fold(name string) string {
	if d.CaseInsensitive {
		return strings.ToLower(name)
	}
	return name
}

// Cast renders CAST(expr AS typ).
func (d Dialect) Cast(expr, typ string) string {
	return fmt.Sprintf("CAST(%s AS %s)", expr, typ)
}

// MemberKey concatenates key segments into "[a].[b]" form. No segments
// renders an empty string literal.
func (d Dialect) MemberKey(segments ...string) string {
	if len(segments) == 0 {
		return "''"
	}
	if d.ConcatOperator {
		return "'[' || " + strings.Join(segments, " || '].[' || ") + " || ']'"
	}
	return "concat('[', " + strings.Join(segments, ",'].[',") + ", ']')"
}

// String renders a string literal, doubling single quotes.
func (d Dialect) String(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// Union combines SELECT statements with UNION ALL. orders holds the ORDER
// BY list of each statement, empty for none; it is kept only where the
// dialect allows ordered operands.
func (d Dialect) Union(selects, orders []string) string {
	if len(selects) == 1 {
		return withOrder(selects[0], orders[0])
	}
	if !d.OrderedUnionOperands {
		return strings.Join(selects, " UNION ALL ")
	}
	parts := make([]string, len(selects))
	for i, s := range selects {
		parts[i] = "(" + withOrder(s, orders[i]) + ")"
	}
	return strings.Join(parts, " UNION ALL ")
}

// Derived wraps statement as the derived table alias. order is the ORDER BY
// list of statement, dropped where the dialect rejects it inside a derived
// table.
func (d Dialect) Derived(statement, order, alias string) string {
	if d.UnorderedDerivedTables {
		order = ""
	}
	return "SELECT * FROM (" + withOrder(statement, order) + ") AS " + alias
}

func withOrder(statement, order string) string {
	if order == "" {
		return statement
	}
	return statement + " ORDER BY " + order
}

// Page applies a result window to a complete statement. ordered reports
// whether the statement already ends with ORDER BY.
func (d Dialect) Page(statement string, top, skip int, ordered bool) string {
	if top <= 0 && skip <= 0 {
		return statement
	}
	switch d.Paging {
	case PagingOffsetFetch:
		if !ordered {
			statement += " ORDER BY (SELECT NULL)"
		}
		statement += " OFFSET " + strconv.Itoa(skip) + " ROWS"
		if top > 0 {
			statement += " FETCH NEXT " + strconv.Itoa(top) + " ROWS ONLY"
		}
		return statement
	default:
		if top > 0 {
			statement += " LIMIT " + strconv.Itoa(top)
		}
		if skip > 0 {
			statement += " OFFSET " + strconv.Itoa(skip)
		}
		return statement
	}
}

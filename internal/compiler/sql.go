package compiler

import (
	"strings"

	"cubesql/internal/domain"
)

func and(conds ...string) string {
	return strings.Join(compact(conds), " AND ")
}

func or(conds ...string) string {
	return strings.Join(compact(conds), " OR ")
}

func not(cond string) string {
	return "NOT (" + cond + ")"
}

// parens wraps each non-empty condition in parentheses.
func parens(conds ...string) []string {
	out := make([]string, 0, len(conds))
	for _, c := range conds {
		if c != "" {
			out = append(out, "("+c+")")
		}
	}
	return out
}

func compact(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func caseWhen(cond, value string) string {
	if cond == "" {
		return value
	}
	return "CASE WHEN " + cond + " THEN " + value + " ELSE NULL END"
}

// aggregateExpr wraps expr in the SQL function of aggregator; an empty
// aggregator sums.
func aggregateExpr(expr, aggregator, measure string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(aggregator)) {
	case "", domain.AggregatorSum:
		return "SUM(" + expr + ")", nil
	case domain.AggregatorCount:
		return "COUNT(" + expr + ")", nil
	case domain.AggregatorDistinctCount, "distinctcount", "count-distinct":
		return "COUNT(DISTINCT " + expr + ")", nil
	case domain.AggregatorAvg, "average":
		return "AVG(" + expr + ")", nil
	case domain.AggregatorMin:
		return "MIN(" + expr + ")", nil
	case domain.AggregatorMax:
		return "MAX(" + expr + ")", nil
	default:
		return "", domain.ErrCompilation("unsupported aggregator %q on measure %q", aggregator, measure)
	}
}

package dataset

import (
	"fmt"
	"strings"
)

// Canonical tabular expressions the interpreter agent can emit.
const (
	ExprMean     = "df.mean()"
	ExprSum      = "df.sum()"
	ExprCount    = "df.count()"
	ExprDescribe = "df.describe()"
	ExprHead     = "df.head()"
)

const headRows = 5

// Eval executes one canonical tabular expression against a table and
// renders the result as text.
func Eval(t *Table, expr string) (string, error) {
	switch strings.TrimSpace(expr) {
	case ExprMean:
		return renderFloats("mean", t.Mean()), nil
	case ExprSum:
		return renderFloats("sum", t.Sum()), nil
	case ExprCount:
		return renderCounts(t.Count()), nil
	case ExprDescribe:
		return renderDescribe(t.Describe()), nil
	case ExprHead:
		return t.RenderHead(headRows), nil
	default:
		return "", fmt.Errorf("unknown tabular expression: %q", expr)
	}
}

func renderFloats(label string, values map[string]float64) string {
	if len(values) == 0 {
		return fmt.Sprintf("no numeric columns to compute %s over", label)
	}
	var b strings.Builder
	for _, col := range sortedKeys(values) {
		fmt.Fprintf(&b, "%s: %s\n", col, formatFloat(values[col]))
	}
	return b.String()
}

func renderCounts(values map[string]int) string {
	var b strings.Builder
	for _, col := range sortedKeys(values) {
		fmt.Fprintf(&b, "%s: %d\n", col, values[col])
	}
	return b.String()
}

func renderDescribe(stats map[string]ColumnStats) string {
	if len(stats) == 0 {
		return "no numeric columns to describe"
	}
	var b strings.Builder
	for _, col := range sortedKeys(stats) {
		s := stats[col]
		fmt.Fprintf(&b, "%s: count=%d mean=%s std=%s min=%s max=%s\n",
			col, s.Count, formatFloat(s.Mean), formatFloat(s.Std),
			formatFloat(s.Min), formatFloat(s.Max))
	}
	return b.String()
}

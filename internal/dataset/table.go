// Package dataset holds the normalized tabular structure uploaded files are
// loaded into, and the small set of canonical computations the query
// pipeline evaluates against it.
package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Table is a normalized, column-named dataset. After loading, numeric
// columns hold float64 values and text columns hold strings; nulls are
// already filled (0 for numeric, "N/A" for text).
type Table struct {
	Columns []string
	Rows    [][]any
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.Rows) }

// Head returns a copy of the first n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	head := &Table{Columns: append([]string(nil), t.Columns...)}
	for _, row := range t.Rows[:n] {
		head.Rows = append(head.Rows, append([]any(nil), row...))
	}
	return head
}

// Preview returns up to n rows as column-keyed maps with NaN/Inf coerced to
// null, safe to hand straight to a JSON encoder.
func (t *Table) Preview(n int) []map[string]any {
	head := t.Head(n)
	out := make([]map[string]any, 0, len(head.Rows))
	for _, row := range head.Rows {
		record := make(map[string]any, len(t.Columns))
		for i, col := range head.Columns {
			record[col] = jsonSafe(row[i])
		}
		out = append(out, record)
	}
	return out
}

// NumericColumns returns the names of columns holding float64 values,
// in table order.
func (t *Table) NumericColumns() []string {
	var cols []string
	for i, col := range t.Columns {
		if t.columnIsNumeric(i) {
			cols = append(cols, col)
		}
	}
	return cols
}

func (t *Table) columnIsNumeric(idx int) bool {
	for _, row := range t.Rows {
		if _, ok := row[idx].(float64); ok {
			return true
		}
	}
	return false
}

func (t *Table) columnValues(idx int) []float64 {
	var vals []float64
	for _, row := range t.Rows {
		if f, ok := row[idx].(float64); ok {
			vals = append(vals, f)
		}
	}
	return vals
}

// Mean computes the average of each numeric column.
func (t *Table) Mean() map[string]float64 {
	return t.aggregate(func(vals []float64) float64 {
		if len(vals) == 0 {
			return math.NaN()
		}
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals))
	})
}

// Sum computes the total of each numeric column.
func (t *Table) Sum() map[string]float64 {
	return t.aggregate(func(vals []float64) float64 {
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum
	})
}

// Count returns the number of values in each column.
func (t *Table) Count() map[string]int {
	out := make(map[string]int, len(t.Columns))
	for _, col := range t.Columns {
		out[col] = len(t.Rows)
	}
	return out
}

func (t *Table) aggregate(fn func([]float64) float64) map[string]float64 {
	out := make(map[string]float64)
	for i, col := range t.Columns {
		if !t.columnIsNumeric(i) {
			continue
		}
		out[col] = fn(t.columnValues(i))
	}
	return out
}

// ColumnStats summarizes one numeric column.
type ColumnStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Describe computes descriptive statistics for every numeric column.
func (t *Table) Describe() map[string]ColumnStats {
	out := make(map[string]ColumnStats)
	for i, col := range t.Columns {
		if !t.columnIsNumeric(i) {
			continue
		}
		vals := t.columnValues(i)
		if len(vals) == 0 {
			continue
		}
		stats := ColumnStats{Count: len(vals), Min: vals[0], Max: vals[0]}
		var sum float64
		for _, v := range vals {
			sum += v
			if v < stats.Min {
				stats.Min = v
			}
			if v > stats.Max {
				stats.Max = v
			}
		}
		stats.Mean = sum / float64(len(vals))
		var sq float64
		for _, v := range vals {
			d := v - stats.Mean
			sq += d * d
		}
		if len(vals) > 1 {
			stats.Std = math.Sqrt(sq / float64(len(vals)-1))
		}
		out[col] = stats
	}
	return out
}

// RenderHead formats the first n rows as aligned text.
func (t *Table) RenderHead(n int) string {
	head := t.Head(n)
	var b strings.Builder
	b.WriteString(strings.Join(head.Columns, " | "))
	b.WriteString("\n")
	for _, row := range head.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	return b.String()
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return formatFloat(val)
	default:
		return fmt.Sprint(val)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%.4f", f)
}

func jsonSafe(v any) any {
	if f, ok := v.(float64); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
	}
	return v
}

// sortedKeys keeps map renderings deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

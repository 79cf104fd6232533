package grid

import (
	"strings"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
	"github.com/nestgrid-labs/nestgrid/pkg/format"
)

// ValueFunc resolves a row's display value for a column.
type ValueFunc func(row *core.Row, columnID string) string

// ApplyFilters returns the rows satisfying every filter (AND semantics).
func ApplyFilters(rows []*core.Row, filters []*core.Filter, value ValueFunc) []*core.Row {
	if len(filters) == 0 {
		return rows
	}
	out := make([]*core.Row, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, f := range filters {
			if !Matches(f, value(row, f.ColumnID)) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

// ApplySearch keeps rows where any column's display value contains the
// query, case-insensitively.
func ApplySearch(rows []*core.Row, columns []*core.Column, query string, value ValueFunc) []*core.Row {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return rows
	}
	out := make([]*core.Row, 0, len(rows))
	for _, row := range rows {
		for _, col := range columns {
			if strings.Contains(strings.ToLower(value(row, col.ID)), q) {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// Matches evaluates a single filter against a display value.
func Matches(f *core.Filter, v string) bool {
	switch f.Operator {
	case core.OpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(f.Value))
	case core.OpEquals:
		return strings.EqualFold(v, f.Value)
	case core.OpStartsWith:
		return strings.HasPrefix(strings.ToLower(v), strings.ToLower(f.Value))
	case core.OpEndsWith:
		return strings.HasSuffix(strings.ToLower(v), strings.ToLower(f.Value))
	case core.OpIsEmpty:
		return strings.TrimSpace(v) == ""
	case core.OpIsNotEmpty:
		return strings.TrimSpace(v) != ""

	case core.OpEq, core.OpGt, core.OpLt, core.OpBetween:
		return matchesNumeric(f, v)

	case core.OpIsTrue:
		return format.Truthy(v)
	case core.OpIsFalse:
		return !format.Truthy(v)

	case core.OpDateBefore, core.OpDateAfter, core.OpDateBetween:
		return matchesDate(f, v)
	}
	return false
}

func matchesNumeric(f *core.Filter, v string) bool {
	n, ok := format.ParseNumber(v)
	if !ok {
		return false
	}
	bound, ok := format.ParseNumber(f.Value)
	if !ok {
		return false
	}
	switch f.Operator {
	case core.OpEq:
		return n == bound
	case core.OpGt:
		return n > bound
	case core.OpLt:
		return n < bound
	case core.OpBetween:
		upper, ok := format.ParseNumber(f.ValueTo)
		if !ok {
			return false
		}
		return n >= bound && n <= upper
	}
	return false
}

func matchesDate(f *core.Filter, v string) bool {
	d, ok := format.SortValue(v, core.DataDate).(float64)
	if !ok {
		return false
	}
	bound, ok := format.SortValue(f.Value, core.DataDate).(float64)
	if !ok {
		return false
	}
	switch f.Operator {
	case core.OpDateBefore:
		return d < bound
	case core.OpDateAfter:
		return d > bound
	case core.OpDateBetween:
		upper, ok := format.SortValue(f.ValueTo, core.DataDate).(float64)
		if !ok {
			return false
		}
		return d >= bound && d <= upper
	}
	return false
}

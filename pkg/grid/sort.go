package grid

import (
	"sort"
	"strings"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
	"github.com/nestgrid-labs/nestgrid/pkg/format"
)

// ApplySorts orders rows by the workspace's sort list. Keys are tried in
// list order and the first non-zero comparison wins. Empty values always
// sort to the end regardless of direction. The sort is stable so equal
// rows keep their incoming order.
func ApplySorts(rows []*core.Row, columns []*core.Column, sorts []*core.Sort, value ValueFunc) []*core.Row {
	if len(sorts) == 0 {
		return rows
	}
	byID := make(map[string]*core.Column, len(columns))
	for _, c := range columns {
		byID[c.ID] = c
	}

	out := make([]*core.Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		for _, s := range sorts {
			col := byID[s.ColumnID]
			if col == nil {
				continue
			}
			c := compareValues(value(out[i], s.ColumnID), value(out[j], s.ColumnID), col, s.Direction)
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return out
}

// compareValues orders two display values for one sort key. Empties sort
// last in both directions; otherwise the result is negated when
// descending.
func compareValues(a, b string, col *core.Column, dir core.SortDirection) int {
	aEmpty := strings.TrimSpace(a) == ""
	bEmpty := strings.TrimSpace(b) == ""
	switch {
	case aEmpty && bEmpty:
		return 0
	case aEmpty:
		return 1
	case bEmpty:
		return -1
	}

	c := compareTyped(a, b, col)
	if dir == core.SortDesc {
		c = -c
	}
	return c
}

func compareTyped(a, b string, col *core.Column) int {
	// Field columns with a non-text data type use the typed sort value.
	if col.Type == core.ColumnField && col.Config.DataType != "" && col.Config.DataType != core.DataText {
		av := format.SortValue(a, col.Config.DataType)
		bv := format.SortValue(b, col.Config.DataType)
		if af, aok := av.(float64); aok {
			if bf, bok := bv.(float64); bok {
				return compareFloats(af, bf)
			}
		}
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	}

	// Otherwise detect the type per compared pair.
	if af, aok := format.ParseNumber(a); aok {
		if bf, bok := format.ParseNumber(b); bok {
			return compareFloats(af, bf)
		}
	}
	if format.DateLike(a) && format.DateLike(b) {
		af, _ := format.SortValue(a, core.DataDate).(float64)
		bf, _ := format.SortValue(b, core.DataDate).(float64)
		return compareFloats(af, bf)
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// CycleSort advances a column through unset -> asc -> desc -> unset,
// replacing the whole sort list with the result. Header clicks use this.
func CycleSort(sorts []*core.Sort, workspaceID, columnID string) []*core.Sort {
	current := findSort(sorts, columnID)
	switch {
	case current == nil:
		return []*core.Sort{{WorkspaceID: workspaceID, ColumnID: columnID, Direction: core.SortAsc}}
	case current.Direction == core.SortAsc:
		return []*core.Sort{{WorkspaceID: workspaceID, ColumnID: columnID, Direction: core.SortDesc}}
	default:
		return nil
	}
}

// AppendSort adds or advances a column as an additional tie-break key,
// keeping the rest of the list. Shift-clicks use this.
func AppendSort(sorts []*core.Sort, workspaceID, columnID string) []*core.Sort {
	current := findSort(sorts, columnID)
	if current == nil {
		return append(sorts, &core.Sort{WorkspaceID: workspaceID, ColumnID: columnID, Direction: core.SortAsc})
	}
	out := make([]*core.Sort, 0, len(sorts))
	for _, s := range sorts {
		if s.ColumnID != columnID {
			out = append(out, s)
			continue
		}
		if s.Direction == core.SortAsc {
			out = append(out, &core.Sort{WorkspaceID: workspaceID, ColumnID: columnID, Direction: core.SortDesc})
		}
		// desc drops the key
	}
	return out
}

func findSort(sorts []*core.Sort, columnID string) *core.Sort {
	for _, s := range sorts {
		if s.ColumnID == columnID {
			return s
		}
	}
	return nil
}

// Pipeline runs the full stage order: filters, then search, then sorts.
func Pipeline(rows []*core.Row, columns []*core.Column, filters []*core.Filter, search string, sorts []*core.Sort, value ValueFunc) []*core.Row {
	rows = ApplyFilters(rows, filters, value)
	rows = ApplySearch(rows, columns, search, value)
	return ApplySorts(rows, columns, sorts, value)
}

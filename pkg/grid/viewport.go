// Package grid implements the presentation math of the data grid: the
// virtualized viewport window and the filter/search/sort pipeline that
// produces the final ordered row list.
package grid

import "math"

// Layout constants.
const (
	// RowHeight is the fixed pixel height of every row.
	RowHeight = 40
	// RowNumWidth is the width of the row-number gutter.
	RowNumWidth = 50
	// DefaultColWidth is the initial width of a new column.
	DefaultColWidth = 180
	// MinColWidth is the resize floor.
	MinColWidth = 80
	// Overscan is the number of rows rendered beyond each edge of the
	// visible window.
	Overscan = 10
)

// VisibleRange computes the half-open row window [start, end) for the
// given scroll offset and viewport height. The computation is index
// arithmetic only, O(1) in the total row count.
func VisibleRange(scrollTop, viewportHeight float64, rowCount int) (start, end int) {
	start = int(math.Floor(scrollTop/RowHeight)) - Overscan
	if start < 0 {
		start = 0
	}
	end = int(math.Ceil((scrollTop+viewportHeight)/RowHeight)) + Overscan
	if end > rowCount {
		end = rowCount
	}
	if end < start {
		end = start
	}
	return start, end
}

// RowOffset returns the absolute pixel offset of a row index.
func RowOffset(index int) int {
	return index * RowHeight
}

// ContentHeight returns the total scrollable height for a row count.
func ContentHeight(rowCount int) int {
	return rowCount * RowHeight
}

// ClampWidth applies the minimum column width floor.
func ClampWidth(width int) int {
	if width < MinColWidth {
		return MinColWidth
	}
	return width
}

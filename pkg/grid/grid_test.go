package grid

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

func TestVisibleRange(t *testing.T) {
	// At the top of a tall grid only the buffer extends downward.
	start, end := VisibleRange(0, 600, 1000)
	assert.Equal(t, 0, start)
	assert.Equal(t, 15+Overscan, end)

	// Scrolled into the middle, the buffer extends both ways.
	start, end = VisibleRange(4000, 600, 1000)
	assert.Equal(t, 100-Overscan, start)
	assert.Equal(t, 115+Overscan, end)

	// Near the bottom the window clamps to the row count.
	start, end = VisibleRange(39800, 600, 1000)
	assert.Equal(t, 1000, end)
	assert.Less(t, start, end)

	// Empty grid.
	start, end = VisibleRange(0, 600, 0)
	assert.Equal(t, 0, start)
	assert.Equal(t, 0, end)
}

func TestRowGeometry(t *testing.T) {
	assert.Equal(t, 400, RowOffset(10))
	assert.Equal(t, 40000, ContentHeight(1000))
	assert.Equal(t, MinColWidth, ClampWidth(12))
	assert.Equal(t, 200, ClampWidth(200))
}

type fixture struct {
	rows    []*core.Row
	columns []*core.Column
	values  map[string]string // rowID:colID -> display value
}

func (f *fixture) value(row *core.Row, columnID string) string {
	return f.values[row.ID+":"+columnID]
}

func newFixture(t *testing.T, data []map[string]string) *fixture {
	t.Helper()
	f := &fixture{values: make(map[string]string)}
	if len(data) == 0 {
		return f
	}
	for name := range data[0] {
		f.columns = append(f.columns, &core.Column{ID: "col-" + name, Name: name, Type: core.ColumnField})
	}
	for i, rec := range data {
		row := &core.Row{ID: fmt.Sprintf("row-%d", i+1), Position: i}
		f.rows = append(f.rows, row)
		for name, v := range rec {
			f.values[row.ID+":col-"+name] = v
		}
	}
	return f
}

func TestApplyFilters_ANDSemantics(t *testing.T) {
	f := newFixture(t, []map[string]string{
		{"Status": "active", "Score": "75"},
		{"Status": "active", "Score": "20"},
		{"Status": "closed", "Score": "90"},
	})
	filters := []*core.Filter{
		{ColumnID: "col-Status", Operator: core.OpEquals, Value: "active"},
		{ColumnID: "col-Score", Operator: core.OpGt, Value: "50"},
	}

	got := ApplyFilters(f.rows, filters, f.value)
	require.Len(t, got, 1)
	assert.Equal(t, "row-1", got[0].ID)

	// Result is always a subset satisfying every filter.
	for _, row := range got {
		for _, flt := range filters {
			assert.True(t, Matches(flt, f.value(row, flt.ColumnID)))
		}
	}
}

func TestMatches_Operators(t *testing.T) {
	tests := []struct {
		op      core.FilterOperator
		value   string
		valueTo string
		cell    string
		want    bool
	}{
		{core.OpContains, "ada", "", "Ada Lovelace", true},
		{core.OpEquals, "Ada", "", "ada", true},
		{core.OpStartsWith, "ada", "", "Ada Lovelace", true},
		{core.OpEndsWith, "lace", "", "Ada Lovelace", true},
		{core.OpIsEmpty, "", "", "  ", true},
		{core.OpIsNotEmpty, "", "", "x", true},
		{core.OpEq, "42", "", "42", true},
		{core.OpGt, "50", "", "75", true},
		{core.OpGt, "50", "", "20", false},
		{core.OpLt, "50", "", "20", true},
		{core.OpBetween, "10", "30", "20", true},
		{core.OpBetween, "10", "30", "40", false},
		{core.OpIsTrue, "", "", "yes", true},
		{core.OpIsFalse, "", "", "no", true},
		{core.OpDateBefore, "2024-06-01", "", "2024-01-15", true},
		{core.OpDateAfter, "2024-06-01", "", "2024-07-15", true},
		{core.OpDateBetween, "2024-01-01", "2024-12-31", "2024-07-15", true},
	}
	for _, tt := range tests {
		f := &core.Filter{Operator: tt.op, Value: tt.value, ValueTo: tt.valueTo}
		assert.Equal(t, tt.want, Matches(f, tt.cell), "%s %q vs %q", tt.op, tt.value, tt.cell)
	}
}

func TestApplySearch(t *testing.T) {
	f := newFixture(t, []map[string]string{
		{"Name": "Ada Lovelace", "City": "London"},
		{"Name": "Grace Hopper", "City": "New York"},
	})

	got := ApplySearch(f.rows, f.columns, "york", f.value)
	require.Len(t, got, 1)
	assert.Equal(t, "row-2", got[0].ID)

	assert.Len(t, ApplySearch(f.rows, f.columns, "", f.value), 2)
}

func TestApplySorts_EmptyLastAndTieBreak(t *testing.T) {
	f := newFixture(t, []map[string]string{
		{"Company": "Acme", "Score": "10"},
		{"Company": "", "Score": "99"},
		{"Company": "Acme", "Score": "5"},
		{"Company": "Zeta", "Score": "50"},
	})
	sorts := []*core.Sort{
		{ColumnID: "col-Company", Direction: core.SortAsc},
		{ColumnID: "col-Score", Direction: core.SortAsc},
	}

	got := ApplySorts(f.rows, f.columns, sorts, f.value)
	ids := []string{got[0].ID, got[1].ID, got[2].ID, got[3].ID}
	// Acme/5, Acme/10 (secondary key), Zeta, then the empty company last.
	assert.Equal(t, []string{"row-3", "row-1", "row-4", "row-2"}, ids)

	// Empties stay last when descending too.
	sorts[0].Direction = core.SortDesc
	got = ApplySorts(f.rows, f.columns, sorts, f.value)
	assert.Equal(t, "row-2", got[3].ID)
}

func TestApplySorts_NumericDetection(t *testing.T) {
	f := newFixture(t, []map[string]string{
		{"Score": "9"},
		{"Score": "100"},
		{"Score": "25"},
	})
	sorts := []*core.Sort{{ColumnID: "col-Score", Direction: core.SortAsc}}

	got := ApplySorts(f.rows, f.columns, sorts, f.value)
	// Numeric, not lexicographic: 9 < 25 < 100.
	assert.Equal(t, []string{"row-1", "row-3", "row-2"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestApplySorts_TypedSortValue(t *testing.T) {
	f := newFixture(t, []map[string]string{
		{"Price": "$900.00"},
		{"Price": "$1,000.00"},
	})
	f.columns[0].Config = core.ColumnConfig{DataType: core.DataCurrency}
	sorts := []*core.Sort{{ColumnID: "col-Price", Direction: core.SortAsc}}

	got := ApplySorts(f.rows, f.columns, sorts, f.value)
	assert.Equal(t, "row-1", got[0].ID)
}

func TestCycleSort(t *testing.T) {
	var sorts []*core.Sort

	sorts = CycleSort(sorts, "ws", "c1")
	require.Len(t, sorts, 1)
	assert.Equal(t, core.SortAsc, sorts[0].Direction)

	sorts = CycleSort(sorts, "ws", "c1")
	assert.Equal(t, core.SortDesc, sorts[0].Direction)

	sorts = CycleSort(sorts, "ws", "c1")
	assert.Empty(t, sorts)
}

func TestAppendSort(t *testing.T) {
	sorts := []*core.Sort{{WorkspaceID: "ws", ColumnID: "c1", Direction: core.SortAsc}}

	sorts = AppendSort(sorts, "ws", "c2")
	require.Len(t, sorts, 2)
	assert.Equal(t, "c1", sorts[0].ColumnID)
	assert.Equal(t, "c2", sorts[1].ColumnID)

	sorts = AppendSort(sorts, "ws", "c2")
	assert.Equal(t, core.SortDesc, sorts[1].Direction)

	sorts = AppendSort(sorts, "ws", "c2")
	require.Len(t, sorts, 1)
	assert.Equal(t, "c1", sorts[0].ColumnID)
}

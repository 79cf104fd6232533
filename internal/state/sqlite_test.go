package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore()
	require.NoError(t, s.Open(":memory:"))
	require.NoError(t, s.InitSchema())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWorkspaceCRUD(t *testing.T) {
	s := newTestStore(t)

	ws, err := s.CreateWorkspace("Prospects Q3")
	require.NoError(t, err)
	require.NotEmpty(t, ws.ID)

	got, err := s.GetWorkspace(ws.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Prospects Q3", got.Name)
	assert.False(t, got.AutoRun)

	require.NoError(t, s.RenameWorkspace(ws.ID, "Prospects Q4"))
	require.NoError(t, s.UpdateWorkspaceSettings(ws.ID, true, true, "nest-1"))

	got, err = s.GetWorkspace(ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "Prospects Q4", got.Name)
	assert.True(t, got.AutoRun)
	assert.True(t, got.Sandbox)
	assert.Equal(t, "nest-1", got.NestID)

	list, err := s.ListWorkspaces()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteWorkspace(ws.ID))
	got, err = s.GetWorkspace(ws.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestColumnCRUD(t *testing.T) {
	s := newTestStore(t)
	ws, err := s.CreateWorkspace("ws")
	require.NoError(t, err)

	col := &core.Column{
		WorkspaceID: ws.ID,
		Name:        "Email",
		Type:        core.ColumnField,
		Config:      core.ColumnConfig{SourceField: "email", DataType: core.DataEmail},
	}
	require.NoError(t, s.CreateColumn(col))
	assert.Equal(t, 1, col.Position)
	assert.Equal(t, 180, col.Width)

	second := &core.Column{WorkspaceID: ws.ID, Name: "Score", Type: core.ColumnField}
	require.NoError(t, s.CreateColumn(second))
	assert.Equal(t, 2, second.Position)

	got, err := s.GetColumn(col.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "email", got.Config.SourceField)
	assert.Equal(t, core.DataEmail, got.Config.DataType)

	require.NoError(t, s.SaveColumnWidth(col.ID, 240))
	require.NoError(t, s.RenameColumn(col.ID, "Work Email"))
	require.NoError(t, s.UpdateColumnConfig(col.ID, core.ColumnConfig{SourceField: "work_email"}))

	got, err = s.GetColumn(col.ID)
	require.NoError(t, err)
	assert.Equal(t, 240, got.Width)
	assert.Equal(t, "Work Email", got.Name)
	assert.Equal(t, "work_email", got.Config.SourceField)

	cols, err := s.ListColumns(ws.ID)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "Work Email", cols[0].Name)

	require.NoError(t, s.DeleteColumn(col.ID))
	cols, err = s.ListColumns(ws.ID)
	require.NoError(t, err)
	assert.Len(t, cols, 1)
}

func TestRowsAndCells(t *testing.T) {
	s := newTestStore(t)
	ws, err := s.CreateWorkspace("ws")
	require.NoError(t, err)

	col := &core.Column{WorkspaceID: ws.ID, Name: "Company", Type: core.ColumnEnrichment}
	require.NoError(t, s.CreateColumn(col))

	rows := []*core.Row{
		{WorkspaceID: ws.ID, SourceData: map[string]any{"name": "Ada"}},
		{WorkspaceID: ws.ID, SourceData: map[string]any{"name": "Grace"}},
	}
	require.NoError(t, s.CreateRows(rows))
	assert.Equal(t, 1, rows[0].Position)
	assert.Equal(t, 2, rows[1].Position)

	n, err := s.CountRows(ws.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	listed, err := s.ListRows(ws.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Ada", listed[0].SourceData["name"])

	// Upsert writes pending first, then the final value over it.
	cell := &core.Cell{
		WorkspaceID: ws.ID,
		RowID:       rows[0].ID,
		ColumnID:    col.ID,
		Status:      core.CellPending,
	}
	require.NoError(t, s.UpsertCell(cell))

	cell.Status = core.CellComplete
	cell.Value = core.ObjectValue(map[string]any{"company": "Acme"})
	require.NoError(t, s.UpsertCell(cell))

	got, err := s.GetCell(rows[0].ID, col.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, core.CellComplete, got.Status)
	assert.Equal(t, "Acme", got.Value.Fields["company"])

	missing, err := s.GetCell(rows[1].ID, col.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := s.ListCells(ws.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Deleting the row cascades to its cells.
	require.NoError(t, s.DeleteRow(rows[0].ID))
	all, err = s.ListCells(ws.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCellValueMetaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ws, err := s.CreateWorkspace("ws")
	require.NoError(t, err)
	col := &core.Column{WorkspaceID: ws.ID, Name: "WF", Type: core.ColumnWaterfall}
	require.NoError(t, s.CreateColumn(col))
	row := &core.Row{WorkspaceID: ws.ID}
	require.NoError(t, s.CreateRow(row))

	v := core.ObjectValue(map[string]any{"company": "Acme"})
	v.Meta = &core.ValueMeta{SourceUsed: "enrichCompanyOnly", Attempts: 3}
	require.NoError(t, s.UpsertCell(&core.Cell{
		WorkspaceID: ws.ID, RowID: row.ID, ColumnID: col.ID,
		Status: core.CellComplete, Value: v,
	}))

	got, err := s.GetCell(row.ID, col.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Value.Meta)
	assert.Equal(t, "enrichCompanyOnly", got.Value.Meta.SourceUsed)
	assert.Equal(t, 3, got.Value.Meta.Attempts)
	assert.Equal(t, "Acme", got.Value.Fields["company"])
}

func TestFiltersAndSorts(t *testing.T) {
	s := newTestStore(t)
	ws, err := s.CreateWorkspace("ws")
	require.NoError(t, err)

	filters := []*core.Filter{
		{ColumnID: "c1", Operator: core.OpEquals, Value: "active"},
		{ColumnID: "c2", Operator: core.OpBetween, Value: "1", ValueTo: "10"},
	}
	require.NoError(t, s.SaveFilters(ws.ID, filters))

	got, err := s.ListFilters(ws.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.OpEquals, got[0].Operator)
	assert.Equal(t, "10", got[1].ValueTo)

	// Saving again replaces the list.
	require.NoError(t, s.SaveFilters(ws.ID, filters[:1]))
	got, err = s.ListFilters(ws.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	sorts := []*core.Sort{
		{ColumnID: "c1", Direction: core.SortAsc},
		{ColumnID: "c2", Direction: core.SortDesc},
	}
	require.NoError(t, s.SaveSorts(ws.ID, sorts))

	gotSorts, err := s.ListSorts(ws.ID)
	require.NoError(t, err)
	require.Len(t, gotSorts, 2)
	assert.Equal(t, "c1", gotSorts[0].ColumnID)
	assert.Equal(t, core.SortDesc, gotSorts[1].Direction)
}

func TestRunsAndCellRuns(t *testing.T) {
	s := newTestStore(t)
	ws, err := s.CreateWorkspace("ws")
	require.NoError(t, err)

	run := &core.Run{WorkspaceID: ws.ID, ColumnID: "c1", Kind: core.RunManual, Total: 7}
	require.NoError(t, s.CreateRun(run))
	assert.Equal(t, core.RunRunning, run.Status)

	cr := &core.CellRun{RunID: run.ID, RowID: "r1", ColumnID: "c1"}
	require.NoError(t, s.RecordCellRun(cr))
	require.NoError(t, s.UpdateCellRun(cr.ID, core.CellRunSuccess, 1, "", 120, ""))

	crs, err := s.ListCellRuns(run.ID)
	require.NoError(t, err)
	require.Len(t, crs, 1)
	assert.Equal(t, core.CellRunSuccess, crs[0].Status)
	assert.Equal(t, int64(120), crs[0].ExecutionMS)
	require.NotNil(t, crs[0].CompletedAt)

	require.NoError(t, s.CompleteRun(run.ID, core.RunPartial, 6, 1, ""))
	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunPartial, got.Status)
	assert.Equal(t, 6, got.Succeeded)
	assert.Equal(t, 1, got.Failed)
	require.NotNil(t, got.CompletedAt)

	list, err := s.ListRuns(ws.ID, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestChatTranscript(t *testing.T) {
	s := newTestStore(t)
	ws, err := s.CreateWorkspace("ws")
	require.NoError(t, err)

	require.NoError(t, s.AppendChatMessage(&core.ChatMessage{
		WorkspaceID: ws.ID, Role: "user", Content: "summarize the grid",
	}))
	require.NoError(t, s.AppendChatMessage(&core.ChatMessage{
		WorkspaceID: ws.ID, Role: "assistant", Content: "42 rows, 6 columns",
	}))

	msgs, err := s.ListChatMessages(ws.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
}

func TestNotOpened(t *testing.T) {
	s := NewSQLiteStore()
	_, err := s.ListWorkspaces()
	assert.Error(t, err)
}

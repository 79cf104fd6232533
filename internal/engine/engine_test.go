package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestgrid-labs/nestgrid/internal/provider"
	"github.com/nestgrid-labs/nestgrid/internal/state"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// fakeProvider scripts enrichment responses and tracks concurrency.
type fakeProvider struct {
	mu          sync.Mutex
	calls       []string
	inflight    int
	maxInflight int
	delay       time.Duration
	respond     func(kind provider.Kind, input string) (map[string]any, error)
}

func (f *fakeProvider) Enrich(ctx context.Context, kind provider.Kind, input string) (map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, kind.String()+":"+input)
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()

	if f.respond != nil {
		return f.respond(kind, input)
	}
	return map[string]any{"input": input}, nil
}

func newTestEngine(t *testing.T, p provider.Provider, opts ...func(*Config)) (*Engine, *state.SQLiteStore) {
	t.Helper()
	s := state.NewSQLiteStore()
	require.NoError(t, s.Open(":memory:"))
	require.NoError(t, s.InitSchema())
	t.Cleanup(func() { s.Close() })

	cfg := Config{Store: s, Provider: p}
	for _, o := range opts {
		o(&cfg)
	}
	eng, err := New(cfg)
	require.NoError(t, err)
	return eng, s
}

// seedEnrichment creates a workspace with a LinkedIn input column, an
// enrichment column reading it, and one row per input value.
func seedEnrichment(t *testing.T, s *state.SQLiteStore, inputs []string) (wsID string, inputCol, enrichCol *core.Column, rows []*core.Row) {
	t.Helper()
	ws, err := s.CreateWorkspace("ws")
	require.NoError(t, err)

	inputCol = &core.Column{
		WorkspaceID: ws.ID, Name: "LinkedIn", Type: core.ColumnField,
		Config: core.ColumnConfig{SourceField: "linkedin", DataType: core.DataURL},
	}
	require.NoError(t, s.CreateColumn(inputCol))

	enrichCol = &core.Column{
		WorkspaceID: ws.ID, Name: "Profile", Type: core.ColumnEnrichment,
		Config: core.ColumnConfig{Provider: "fullEnrichFromLinkedIn", InputColumnID: inputCol.ID},
	}
	require.NoError(t, s.CreateColumn(enrichCol))

	for _, in := range inputs {
		rows = append(rows, &core.Row{WorkspaceID: ws.ID, SourceData: map[string]any{"linkedin": in}})
	}
	require.NoError(t, s.CreateRows(rows))
	return ws.ID, inputCol, enrichCol, rows
}

func TestRunColumn_PartialFailureIsolation(t *testing.T) {
	p := &fakeProvider{respond: func(_ provider.Kind, input string) (map[string]any, error) {
		if input == "boom" {
			return nil, fmt.Errorf("provider exploded")
		}
		return map[string]any{"name": "ok"}, nil
	}}
	eng, s := newTestEngine(t, p)

	inputs := []string{"in1", "in2", "in3", "boom", "in5", "in6", "in7"}
	wsID, _, col, rows := seedEnrichment(t, s, inputs)

	run, err := eng.RunColumn(context.Background(), wsID, col.ID, core.RunManual)
	require.NoError(t, err)

	assert.Equal(t, core.RunPartial, run.Status)
	assert.Equal(t, 7, run.Total)
	assert.Equal(t, 6, run.Succeeded)
	assert.Equal(t, 1, run.Failed)

	for i, row := range rows {
		cell, err := s.GetCell(row.ID, col.ID)
		require.NoError(t, err)
		require.NotNil(t, cell, "row %d has no cell", i)
		if inputs[i] == "boom" {
			assert.Equal(t, core.CellError, cell.Status)
			assert.Contains(t, cell.ErrorMessage, "provider exploded")
		} else {
			assert.Equal(t, core.CellComplete, cell.Status)
			assert.Equal(t, "ok", cell.Value.Fields["name"])
		}
	}

	crs, err := s.ListCellRuns(run.ID)
	require.NoError(t, err)
	assert.Len(t, crs, 7)
}

func TestRunColumn_EmptyInputResets(t *testing.T) {
	p := &fakeProvider{}
	eng, s := newTestEngine(t, p)
	wsID, _, col, rows := seedEnrichment(t, s, []string{"in1", "", "in3"})

	// Stale value that must be cleared when the input is empty.
	require.NoError(t, s.UpsertCell(&core.Cell{
		WorkspaceID: wsID, RowID: rows[1].ID, ColumnID: col.ID,
		Status: core.CellComplete, Value: core.ScalarValue("stale"),
	}))

	run, err := eng.RunColumn(context.Background(), wsID, col.ID, core.RunManual)
	require.NoError(t, err)

	assert.Equal(t, core.RunSuccess, run.Status)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 2, run.Succeeded)
	assert.Equal(t, 0, run.Failed)

	cell, err := s.GetCell(rows[1].ID, col.ID)
	require.NoError(t, err)
	require.NotNil(t, cell)
	assert.Equal(t, core.CellEmpty, cell.Status)

	crs, err := s.ListCellRuns(run.ID)
	require.NoError(t, err)
	skipped := 0
	for _, cr := range crs {
		if cr.Status == core.CellRunSkipped {
			skipped++
		}
	}
	assert.Equal(t, 1, skipped)

	// The provider was never called for the empty row.
	assert.Len(t, p.calls, 2)
}

func TestRunColumn_BatchConcurrencyBound(t *testing.T) {
	p := &fakeProvider{delay: 10 * time.Millisecond}
	eng, s := newTestEngine(t, p)

	inputs := make([]string, 12)
	for i := range inputs {
		inputs[i] = fmt.Sprintf("in%d", i)
	}
	wsID, _, col, _ := seedEnrichment(t, s, inputs)

	run, err := eng.RunColumn(context.Background(), wsID, col.ID, core.RunManual)
	require.NoError(t, err)

	assert.Equal(t, core.RunSuccess, run.Status)
	assert.Equal(t, 12, run.Succeeded)
	assert.LessOrEqual(t, p.maxInflight, DefaultBatchSize)
}

func TestRunColumn_Sandbox(t *testing.T) {
	p := &fakeProvider{}
	eng, s := newTestEngine(t, p)
	wsID, _, col, rows := seedEnrichment(t, s, []string{"in1", "in2"})
	require.NoError(t, s.UpdateWorkspaceSettings(wsID, false, true, ""))

	run, err := eng.RunColumn(context.Background(), wsID, col.ID, core.RunManual)
	require.NoError(t, err)

	assert.True(t, run.Sandbox)
	assert.Equal(t, core.RunSuccess, run.Status)
	assert.Equal(t, 2, run.Succeeded)

	// Nothing persisted; the overlay holds the mock values.
	cells, err := s.ListCells(wsID)
	require.NoError(t, err)
	assert.Empty(t, cells)
	assert.True(t, eng.Overlay().HasData())

	// No real provider calls in sandbox mode.
	assert.Empty(t, p.calls)

	// Re-running yields identical mock values.
	v1, ok := eng.Overlay().Get(rows[0].ID, col.ID)
	require.True(t, ok)
	_, err = eng.RunColumn(context.Background(), wsID, col.ID, core.RunManual)
	require.NoError(t, err)
	v2, ok := eng.Overlay().Get(rows[0].ID, col.ID)
	require.True(t, ok)
	assert.Equal(t, v1.Display(), v2.Display())
}

func TestRunColumn_ProgressEvents(t *testing.T) {
	p := &fakeProvider{}
	var mu sync.Mutex
	var events []ProgressEvent
	eng, s := newTestEngine(t, p, func(c *Config) {
		c.OnProgress = func(ev ProgressEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}
	})
	wsID, _, col, _ := seedEnrichment(t, s, []string{"in1", "in2"})

	_, err := eng.RunColumn(context.Background(), wsID, col.ID, core.RunManual)
	require.NoError(t, err)

	require.Len(t, events, 3)
	// Cells inside one batch settle concurrently, so the first event may
	// already see both done; the second always does.
	assert.Contains(t, events[0].Message(), "Running Profile: ")
	assert.Equal(t, "Running Profile: 2/2", events[1].Message())
	assert.True(t, events[2].Final)
	assert.Equal(t, "Profile: 2 succeeded, 0 failed", events[2].Message())
}

func TestRunColumn_NotRunnable(t *testing.T) {
	eng, s := newTestEngine(t, &fakeProvider{})
	ws, err := s.CreateWorkspace("ws")
	require.NoError(t, err)
	col := &core.Column{
		WorkspaceID: ws.ID, Name: "Greeting", Type: core.ColumnFormula,
		Config: core.ColumnConfig{Expression: `CONCAT("hi")`},
	}
	require.NoError(t, s.CreateColumn(col))

	_, err = eng.RunColumn(context.Background(), ws.ID, col.ID, core.RunManual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be run")
}

func TestRunAll_SequentialByPosition(t *testing.T) {
	p := &fakeProvider{respond: func(kind provider.Kind, input string) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	}}
	eng, s := newTestEngine(t, p)
	wsID, inputCol, _, _ := seedEnrichment(t, s, []string{"a", "b"})

	second := &core.Column{
		WorkspaceID: wsID, Name: "Company", Type: core.ColumnEnrichment,
		Config: core.ColumnConfig{Provider: "enrichCompanyOnly", InputColumnID: inputCol.ID},
	}
	require.NoError(t, s.CreateColumn(second))

	runs, err := eng.RunAll(context.Background(), wsID)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, core.RunAll, runs[0].Kind)

	// Both calls for the first column precede both calls for the second.
	require.Len(t, p.calls, 4)
	for _, c := range p.calls[:2] {
		assert.Contains(t, c, "fullEnrichFromLinkedIn:")
	}
	for _, c := range p.calls[2:] {
		assert.Contains(t, c, "enrichCompanyOnly:")
	}
}

func TestWaterfall_SourceUsedAndAttempts(t *testing.T) {
	// Source order: LinkedIn fails, Email yields an empty result, the
	// company lookup succeeds. The winner records three attempts.
	p := &fakeProvider{respond: func(kind provider.Kind, input string) (map[string]any, error) {
		switch kind {
		case provider.LinkedInFull:
			return nil, fmt.Errorf("upstream 500")
		case provider.EmailFull:
			return map[string]any{}, nil
		default:
			return map[string]any{"company": "Acme"}, nil
		}
	}}
	eng, s := newTestEngine(t, p)
	ws, err := s.CreateWorkspace("ws")
	require.NoError(t, err)

	in := &core.Column{
		WorkspaceID: ws.ID, Name: "Contact", Type: core.ColumnField,
		Config: core.ColumnConfig{SourceField: "contact"},
	}
	require.NoError(t, s.CreateColumn(in))

	wf := &core.Column{
		WorkspaceID: ws.ID, Name: "Enriched", Type: core.ColumnWaterfall,
		Config: core.ColumnConfig{Sources: []core.WaterfallSource{
			{Provider: "fullEnrichFromLinkedIn", InputColumnID: in.ID},
			{Provider: "fullEnrichFromEmail", InputColumnID: in.ID},
			{Provider: "enrichCompanyOnly", InputColumnID: in.ID},
		}},
	}
	require.NoError(t, s.CreateColumn(wf))

	row := &core.Row{WorkspaceID: ws.ID, SourceData: map[string]any{"contact": "ada@acme.test"}}
	require.NoError(t, s.CreateRow(row))

	run, err := eng.RunColumn(context.Background(), ws.ID, wf.ID, core.RunManual)
	require.NoError(t, err)
	assert.Equal(t, core.RunSuccess, run.Status)

	cell, err := s.GetCell(row.ID, wf.ID)
	require.NoError(t, err)
	require.NotNil(t, cell)
	require.NotNil(t, cell.Value.Meta)
	assert.Equal(t, "enrichCompanyOnly", cell.Value.Meta.SourceUsed)
	assert.Equal(t, 3, cell.Value.Meta.Attempts)
	assert.Equal(t, "Acme", cell.Value.Fields["company"])

	crs, err := s.ListCellRuns(run.ID)
	require.NoError(t, err)
	require.Len(t, crs, 1)
	assert.Equal(t, "enrichCompanyOnly", crs[0].SourceUsed)
	assert.Equal(t, 3, crs[0].Attempts)
}

func TestWaterfall_AllFail(t *testing.T) {
	p := &fakeProvider{respond: func(provider.Kind, string) (map[string]any, error) {
		return nil, fmt.Errorf("no match")
	}}
	eng, s := newTestEngine(t, p)
	ws, err := s.CreateWorkspace("ws")
	require.NoError(t, err)

	in := &core.Column{WorkspaceID: ws.ID, Name: "Email", Type: core.ColumnField,
		Config: core.ColumnConfig{SourceField: "email"}}
	require.NoError(t, s.CreateColumn(in))

	wf := &core.Column{
		WorkspaceID: ws.ID, Name: "Enriched", Type: core.ColumnWaterfall,
		Config: core.ColumnConfig{Sources: []core.WaterfallSource{
			{Provider: "fullEnrichFromEmail", InputColumnID: in.ID},
			{Provider: "matchProspect", InputColumnID: in.ID},
		}},
	}
	require.NoError(t, s.CreateColumn(wf))
	row := &core.Row{WorkspaceID: ws.ID, SourceData: map[string]any{"email": "x@y.test"}}
	require.NoError(t, s.CreateRow(row))

	run, err := eng.RunColumn(context.Background(), ws.ID, wf.ID, core.RunManual)
	require.NoError(t, err)
	assert.Equal(t, core.RunFailed, run.Status)

	cell, err := s.GetCell(row.ID, wf.ID)
	require.NoError(t, err)
	require.NotNil(t, cell)
	assert.Equal(t, core.CellError, cell.Status)
	assert.Contains(t, cell.ErrorMessage, "all 2 sources failed")
}

func TestRunColumnRows_Subset(t *testing.T) {
	p := &fakeProvider{}
	eng, s := newTestEngine(t, p)
	wsID, _, col, rows := seedEnrichment(t, s, []string{"in1", "in2", "in3"})

	run, err := eng.RunColumnRows(context.Background(), wsID, col.ID, []string{rows[2].ID}, core.RunManual)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Total)
	assert.Equal(t, 1, run.Succeeded)

	cell, err := s.GetCell(rows[0].ID, col.ID)
	require.NoError(t, err)
	assert.Nil(t, cell)
}

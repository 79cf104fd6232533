package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nestgrid-labs/nestgrid/internal/sandbox"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
	"github.com/nestgrid-labs/nestgrid/pkg/formula"
)

// cellOutcome is one runner result for one cell.
type cellOutcome struct {
	value *core.CellValue
	// sourceUsed names the provider that produced a waterfall value.
	sourceUsed string
	// attempts counts provider calls made for this cell.
	attempts int
}

// RunColumn executes an enrichment run over every row of a column.
func (e *Engine) RunColumn(ctx context.Context, workspaceID, columnID string, kind core.RunKind) (*core.Run, error) {
	return e.RunColumnRows(ctx, workspaceID, columnID, nil, kind)
}

// RunColumnRows executes an enrichment run over a column, restricted to
// the given rows. A nil rowIDs runs every row. Batches execute
// concurrently inside and strictly sequentially between; one row's
// failure never aborts the others.
func (e *Engine) RunColumnRows(ctx context.Context, workspaceID, columnID string, rowIDs []string, kind core.RunKind) (*core.Run, error) {
	snap, err := e.LoadSnapshot(workspaceID)
	if err != nil {
		return nil, err
	}
	col := snap.Column(columnID)
	if col == nil {
		return nil, fmt.Errorf("column %s: %w", columnID, core.ErrNotFound)
	}
	if !col.Type.Enrichable() {
		return nil, fmt.Errorf("column %q (%s) is computed on read and cannot be run", col.Name, col.Type)
	}

	rows := snap.Rows
	if rowIDs != nil {
		want := make(map[string]bool, len(rowIDs))
		for _, id := range rowIDs {
			want[id] = true
		}
		selected := make([]*core.Row, 0, len(rowIDs))
		for _, r := range snap.Rows {
			if want[r.ID] {
				selected = append(selected, r)
			}
		}
		rows = selected
	}

	run := &core.Run{
		WorkspaceID: workspaceID,
		ColumnID:    columnID,
		Kind:        kind,
		Sandbox:     snap.Workspace.Sandbox,
		Total:       len(rows),
	}
	if err := e.store.CreateRun(run); err != nil {
		return nil, err
	}

	e.runBatches(ctx, snap, run, col, rows)
	e.notifyChange(workspaceID)
	return run, nil
}

// RunAll runs every enrichable column of a workspace, one column at a
// time in position order, so later columns see the values earlier
// columns produced.
func (e *Engine) RunAll(ctx context.Context, workspaceID string) ([]*core.Run, error) {
	snap, err := e.LoadSnapshot(workspaceID)
	if err != nil {
		return nil, err
	}

	var runs []*core.Run
	for _, col := range snap.Columns {
		if !col.Type.Enrichable() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		run, err := e.RunColumnRows(ctx, workspaceID, col.ID, nil, core.RunAll)
		if err != nil {
			return runs, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (e *Engine) runBatches(ctx context.Context, snap *Snapshot, run *core.Run, col *core.Column, rows []*core.Row) {
	batch := e.batchSize
	if col.Type == core.ColumnAI && col.Config.BatchSize > 0 {
		batch = col.Config.BatchSize
	}

	var done, succeeded, failed atomic.Int64
	var cancelled bool

	for start := 0; start < len(rows); start += batch {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		end := min(start+batch, len(rows))

		var g errgroup.Group
		for _, row := range rows[start:end] {
			g.Go(func() error {
				ok, skipped := e.processCell(ctx, snap, run, col, row)
				done.Add(1)
				if !skipped {
					if ok {
						succeeded.Add(1)
					} else {
						failed.Add(1)
					}
				}
				e.reportProgress(ProgressEvent{
					WorkspaceID: run.WorkspaceID,
					RunID:       run.ID,
					ColumnName:  col.Name,
					Done:        int(done.Load()),
					Total:       run.Total,
					Succeeded:   int(succeeded.Load()),
					Failed:      int(failed.Load()),
				})
				return nil
			})
		}
		g.Wait()
	}

	run.Succeeded = int(succeeded.Load())
	run.Failed = int(failed.Load())
	errMsg := ""
	switch {
	case cancelled:
		run.Status = core.RunFailed
		errMsg = "run cancelled"
		if err := ctx.Err(); err != nil {
			errMsg = err.Error()
		}
	case run.Failed == 0:
		run.Status = core.RunSuccess
	case run.Succeeded == 0:
		run.Status = core.RunFailed
	default:
		run.Status = core.RunPartial
	}
	run.Error = errMsg

	if err := e.store.CompleteRun(run.ID, run.Status, run.Succeeded, run.Failed, errMsg); err != nil {
		e.logger.Error("failed to record run completion", "run", run.ID, "error", err)
	}
	e.reportProgress(ProgressEvent{
		WorkspaceID: run.WorkspaceID,
		RunID:       run.ID,
		ColumnName:  col.Name,
		Done:        int(done.Load()),
		Total:       run.Total,
		Succeeded:   run.Succeeded,
		Failed:      run.Failed,
		Final:       true,
	})
}

// processCell settles one cell of a run. It returns (success, skipped);
// a skipped cell had empty input and counts toward neither succeeded
// nor failed.
func (e *Engine) processCell(ctx context.Context, snap *Snapshot, run *core.Run, col *core.Column, row *core.Row) (bool, bool) {
	start := time.Now()
	cr := &core.CellRun{RunID: run.ID, RowID: row.ID, ColumnID: col.ID, Status: core.CellRunRunning}
	if err := e.store.RecordCellRun(cr); err != nil {
		e.logger.Error("failed to record cell run", "row", row.ID, "column", col.ID, "error", err)
	}
	settle := func(status core.CellRunStatus, attempts int, sourceUsed, errMsg string) {
		execMS := time.Since(start).Milliseconds()
		if err := e.store.UpdateCellRun(cr.ID, status, attempts, sourceUsed, execMS, errMsg); err != nil {
			e.logger.Error("failed to update cell run", "row", row.ID, "column", col.ID, "error", err)
		}
	}

	// Empty input resets the cell instead of calling anything.
	if snap.InputEmpty(row, col) {
		e.resetCell(snap, run, row, col)
		settle(core.CellRunSkipped, 0, "", "")
		return false, true
	}

	// Sandbox runs never touch the store: the mock value lands in the
	// overlay only.
	if run.Sandbox {
		v := sandbox.Mock(row.ID, col.ID, col.Type)
		e.overlay.Set(row.ID, col.ID, v)
		settle(core.CellRunSuccess, 1, "", "")
		return true, false
	}

	// Mark pending optimistically so the grid shows progress while the
	// provider call is in flight.
	cell := &core.Cell{
		WorkspaceID: run.WorkspaceID,
		RowID:       row.ID,
		ColumnID:    col.ID,
		Status:      core.CellPending,
	}
	snap.SetCell(cell)
	if err := e.store.UpsertCell(cell); err != nil {
		e.logger.Error("failed to persist pending cell", "row", row.ID, "column", col.ID, "error", err)
	}

	outcome, err := e.runCell(ctx, snap, row, col)
	if err != nil {
		cell.Status = core.CellError
		cell.ErrorMessage = err.Error()
		cell.Value = nil
		snap.SetCell(cell)
		if perr := e.store.UpsertCell(cell); perr != nil {
			e.logger.Error("failed to persist cell error", "row", row.ID, "column", col.ID, "error", perr)
		}
		settle(core.CellRunFailed, max(outcome.attempts, 1), outcome.sourceUsed, err.Error())
		return false, false
	}

	cell.Status = core.CellComplete
	cell.ErrorMessage = ""
	cell.Value = outcome.value
	snap.SetCell(cell)
	if perr := e.store.UpsertCell(cell); perr != nil {
		// Keep the optimistic in-memory value; the grid stays correct
		// and the write is retried on the next settle.
		e.logger.Error("failed to persist cell value", "row", row.ID, "column", col.ID, "error", perr)
		e.notifyChange(run.WorkspaceID)
	}
	settle(core.CellRunSuccess, max(outcome.attempts, 1), outcome.sourceUsed, "")
	return true, false
}

// resetCell clears a cell whose input went empty.
func (e *Engine) resetCell(snap *Snapshot, run *core.Run, row *core.Row, col *core.Column) {
	if run.Sandbox {
		e.overlay.Set(row.ID, col.ID, nil)
		return
	}
	cell := &core.Cell{
		WorkspaceID: run.WorkspaceID,
		RowID:       row.ID,
		ColumnID:    col.ID,
		Status:      core.CellEmpty,
	}
	snap.SetCell(cell)
	if err := e.store.UpsertCell(cell); err != nil {
		e.logger.Error("failed to reset cell", "row", row.ID, "column", col.ID, "error", err)
	}
}

// runCell dispatches to the runner for the column's type.
func (e *Engine) runCell(ctx context.Context, snap *Snapshot, row *core.Row, col *core.Column) (cellOutcome, error) {
	switch col.Type {
	case core.ColumnEnrichment:
		return e.runEnrichment(ctx, snap, row, col)
	case core.ColumnAI:
		return e.runAI(ctx, snap, row, col)
	case core.ColumnWaterfall:
		return e.runWaterfall(ctx, snap, row, col)
	case core.ColumnHTTP:
		return e.runHTTP(ctx, snap, row, col)
	}
	return cellOutcome{}, fmt.Errorf("column type %s has no runner", col.Type)
}

// InputEmpty reports whether a cell's configured inputs all resolve
// empty for this row; such cells reset instead of running.
func (s *Snapshot) InputEmpty(row *core.Row, col *core.Column) bool {
	cfg := col.Config
	switch col.Type {
	case core.ColumnEnrichment:
		return s.ColumnRawValue(row, cfg.InputColumnID) == ""
	case core.ColumnWaterfall:
		for _, src := range cfg.Sources {
			if s.ColumnRawValue(row, src.InputColumnID) != "" {
				return false
			}
		}
		return true
	case core.ColumnAI:
		return s.templateEmpty(row, cfg.Prompt)
	case core.ColumnHTTP:
		return s.templateEmpty(row, cfg.URL+"\n"+cfg.Body)
	}
	return false
}

// templateEmpty reports whether a template references columns and every
// referenced value resolves empty for this row. Templates with no
// references always run.
func (s *Snapshot) templateEmpty(row *core.Row, template string) bool {
	refs := formula.References(template)
	if len(refs) == 0 {
		return false
	}
	for _, name := range refs {
		if col := s.ColumnByName(name); col != nil && s.RawValue(row, col) != "" {
			return false
		}
	}
	return true
}

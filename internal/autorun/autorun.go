// Package autorun watches workspace data changes and re-triggers
// enrichment for missing cells: when rows or enrichable columns grow,
// or an input column is edited, a debounced sweep runs every enrichable
// column over the rows whose cells still need values.
package autorun

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nestgrid-labs/nestgrid/internal/engine"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// DefaultDebounce is the quiet period before a sweep fires.
const DefaultDebounce = 2 * time.Second

// baseline holds the last observed population of a workspace.
type baseline struct {
	rows           int
	enrichableCols int
}

// Detector schedules automatic enrichment sweeps per workspace.
type Detector struct {
	eng      *engine.Engine
	debounce time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	baselines map[string]baseline
	timers    map[string]*time.Timer
	sweeping  map[string]bool

	// OnSweep is invoked after a sweep completes. Optional.
	OnSweep func(workspaceID string, runs []*core.Run)
}

// New creates a detector. A zero debounce uses DefaultDebounce; a nil
// logger discards logs.
func New(eng *engine.Engine, debounce time.Duration, logger *slog.Logger) *Detector {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Detector{
		eng:       eng,
		debounce:  debounce,
		logger:    logger,
		baselines: make(map[string]baseline),
		timers:    make(map[string]*time.Timer),
		sweeping:  make(map[string]bool),
	}
}

// NotifyChange records the workspace's current row/column population
// and schedules a sweep when either count grew past a non-zero
// baseline. The baseline requirement keeps the initial load from
// triggering a sweep.
func (d *Detector) NotifyChange(workspaceID string) {
	snap, err := d.eng.LoadSnapshot(workspaceID)
	if err != nil {
		d.logger.Error("auto-run change check failed", "workspace", workspaceID, "error", err)
		return
	}
	if !snap.Workspace.AutoRun {
		return
	}

	cur := baseline{rows: len(snap.Rows)}
	for _, col := range snap.Columns {
		if col.Type.Enrichable() {
			cur.enrichableCols++
		}
	}

	d.mu.Lock()
	prev, seen := d.baselines[workspaceID]
	d.baselines[workspaceID] = cur
	d.mu.Unlock()

	if !seen {
		return
	}
	grew := (prev.rows > 0 && cur.rows > prev.rows) ||
		(prev.enrichableCols > 0 && cur.enrichableCols > prev.enrichableCols)
	if grew {
		d.schedule(workspaceID)
	}
}

// NotifyInputEdit schedules a sweep when the edited column feeds any
// dependent column, so driver-field edits cascade without a manual run.
func (d *Detector) NotifyInputEdit(workspaceID, columnID string) {
	snap, err := d.eng.LoadSnapshot(workspaceID)
	if err != nil {
		d.logger.Error("auto-run edit check failed", "workspace", workspaceID, "error", err)
		return
	}
	if !snap.Workspace.AutoRun {
		return
	}
	if len(snap.Graph().Dependents(columnID)) == 0 {
		return
	}
	d.schedule(workspaceID)
}

func (d *Detector) schedule(workspaceID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[workspaceID]; ok {
		t.Stop()
	}
	d.timers[workspaceID] = time.AfterFunc(d.debounce, func() {
		d.Sweep(workspaceID)
	})
}

// Sweep runs every enrichable column over the rows whose cells are
// neither complete nor pending and whose inputs are non-empty. A single
// in-flight guard prevents overlapping automatic sweeps; manual runs
// are not affected.
func (d *Detector) Sweep(workspaceID string) {
	d.mu.Lock()
	if d.sweeping[workspaceID] {
		d.mu.Unlock()
		return
	}
	d.sweeping[workspaceID] = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.sweeping[workspaceID] = false
		d.mu.Unlock()
	}()

	snap, err := d.eng.LoadSnapshot(workspaceID)
	if err != nil {
		d.logger.Error("auto-run sweep failed", "workspace", workspaceID, "error", err)
		return
	}

	var runs []*core.Run
	for _, col := range snap.Columns {
		if !col.Type.Enrichable() {
			continue
		}
		var rowIDs []string
		for _, row := range snap.Rows {
			c := snap.StoredCell(row.ID, col.ID)
			if c != nil && (c.Status == core.CellComplete || c.Status == core.CellPending) {
				continue
			}
			if snap.InputEmpty(row, col) {
				continue
			}
			rowIDs = append(rowIDs, row.ID)
		}
		if len(rowIDs) == 0 {
			continue
		}
		run, err := d.eng.RunColumnRows(context.Background(), workspaceID, col.ID, rowIDs, core.RunAuto)
		if err != nil {
			d.logger.Error("auto-run column failed", "workspace", workspaceID, "column", col.Name, "error", err)
			continue
		}
		runs = append(runs, run)
	}

	if len(runs) > 0 {
		d.logger.Info("auto-run sweep finished", "workspace", workspaceID, "runs", len(runs))
	}
	if d.OnSweep != nil {
		d.OnSweep(workspaceID, runs)
	}
}

// Stop cancels all pending sweeps.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}

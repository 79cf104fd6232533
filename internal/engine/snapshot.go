package engine

import (
	"fmt"
	"sync"

	"github.com/nestgrid-labs/nestgrid/internal/dag"
	"github.com/nestgrid-labs/nestgrid/internal/sandbox"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
	"github.com/nestgrid-labs/nestgrid/pkg/formula"
	"github.com/nestgrid-labs/nestgrid/pkg/grid"
)

// Snapshot is an in-memory view of one workspace: columns in position
// order, rows in position order, cells keyed by (row, column), and the
// column dependency graph. Value computation reads from the snapshot
// only; runs mutate it as cells settle.
type Snapshot struct {
	Workspace *core.Workspace
	Columns   []*core.Column
	Rows      []*core.Row

	mu      sync.RWMutex
	cells   map[string]*core.Cell
	overlay *sandbox.Overlay

	graph     *dag.Graph
	tainted   map[string]bool
	cyclePath string

	byID   map[string]*core.Column
	byName map[string]*core.Column
}

// LoadSnapshot reads a workspace and all of its state into a snapshot.
func (e *Engine) LoadSnapshot(workspaceID string) (*Snapshot, error) {
	ws, err := e.store.GetWorkspace(workspaceID)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, fmt.Errorf("workspace %s: %w", workspaceID, core.ErrNotFound)
	}

	columns, err := e.store.ListColumns(workspaceID)
	if err != nil {
		return nil, err
	}
	rows, err := e.store.ListRows(workspaceID)
	if err != nil {
		return nil, err
	}
	cells, err := e.store.ListCells(workspaceID)
	if err != nil {
		return nil, err
	}

	s := &Snapshot{
		Workspace: ws,
		Columns:   columns,
		Rows:      rows,
		cells:     make(map[string]*core.Cell, len(cells)),
		overlay:   e.overlay,
		byID:      make(map[string]*core.Column, len(columns)),
		byName:    make(map[string]*core.Column, len(columns)),
	}
	for _, c := range cells {
		s.cells[core.CellKey(c.RowID, c.ColumnID)] = c
	}
	for _, col := range columns {
		s.byID[col.ID] = col
		s.byName[col.Name] = col
	}

	s.buildGraph()
	return s, nil
}

// buildGraph wires the column dependency graph from every column's
// configured references and flags the columns a cycle taints.
func (s *Snapshot) buildGraph() {
	g := dag.NewGraph()
	for _, col := range s.Columns {
		g.AddColumn(col.ID, col.Name)
	}

	addByName := func(dependent *core.Column, names []string) {
		for _, name := range names {
			if src, ok := s.byName[name]; ok {
				g.AddDependency(src.ID, dependent.ID)
			}
		}
	}
	addByID := func(dependent *core.Column, ids ...string) {
		for _, id := range ids {
			if id == "" {
				continue
			}
			if _, ok := s.byID[id]; ok {
				g.AddDependency(id, dependent.ID)
			}
		}
	}

	for _, col := range s.Columns {
		cfg := col.Config
		switch col.Type {
		case core.ColumnFormula:
			addByName(col, formula.References(cfg.Expression))
		case core.ColumnMerge:
			addByID(col, cfg.MergeColumnIDs...)
		case core.ColumnAI:
			addByName(col, formula.References(cfg.Prompt))
		case core.ColumnHTTP:
			addByName(col, formula.References(cfg.URL))
			addByName(col, formula.References(cfg.Body))
			for _, v := range cfg.Headers {
				addByName(col, formula.References(v))
			}
		case core.ColumnEnrichment:
			addByID(col, cfg.InputColumnID)
		case core.ColumnWaterfall:
			for _, src := range cfg.Sources {
				addByID(col, src.InputColumnID)
			}
		}
	}

	s.graph = g
	if ok, path := g.HasCycle(); ok {
		s.tainted = g.OnCycle()
		s.cyclePath = dag.JoinPath(path)
	} else {
		s.tainted = map[string]bool{}
	}
}

// Graph returns the column dependency graph.
func (s *Snapshot) Graph() *dag.Graph {
	return s.graph
}

// Tainted reports whether a column sits on, or downstream of, a
// reference cycle.
func (s *Snapshot) Tainted(columnID string) bool {
	return s.tainted[columnID]
}

// Column resolves a column by id.
func (s *Snapshot) Column(id string) *core.Column {
	return s.byID[id]
}

// ColumnByName resolves a column by display name.
func (s *Snapshot) ColumnByName(name string) *core.Column {
	return s.byName[name]
}

// Cell returns the effective cell value for a (row, column) pair: the
// sandbox overlay shadows the persisted cell when it holds a value.
func (s *Snapshot) Cell(rowID, columnID string) (*core.CellValue, core.CellStatus) {
	if v, ok := s.overlay.Get(rowID, columnID); ok {
		return v, core.CellComplete
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cells[core.CellKey(rowID, columnID)]
	if !ok || c == nil {
		return nil, core.CellEmpty
	}
	return c.Value, c.Status
}

// StoredCell returns the persisted cell record, ignoring the overlay.
func (s *Snapshot) StoredCell(rowID, columnID string) *core.Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cells[core.CellKey(rowID, columnID)]
}

// SetCell replaces the in-memory cell record as a run settles it.
func (s *Snapshot) SetCell(c *core.Cell) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells[core.CellKey(c.RowID, c.ColumnID)] = c
}

// ValueFunc adapts the snapshot to the filter/sort pipeline.
func (s *Snapshot) ValueFunc() grid.ValueFunc {
	return func(row *core.Row, columnID string) string {
		col := s.byID[columnID]
		if col == nil {
			return ""
		}
		return s.DisplayValue(row, col)
	}
}

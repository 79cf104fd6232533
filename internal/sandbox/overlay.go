package sandbox

import (
	"sync"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// Overlay is the non-persisted cell map holding sandbox results. It
// shadows real cells for display and export but never reaches the store.
type Overlay struct {
	mu    sync.RWMutex
	cells map[string]*core.CellValue
}

// NewOverlay creates an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{cells: make(map[string]*core.CellValue)}
}

// Set records a sandbox value for a cell.
func (o *Overlay) Set(rowID, columnID string, v *core.CellValue) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cells[core.CellKey(rowID, columnID)] = v
}

// Get returns the sandbox value for a cell, if any.
func (o *Overlay) Get(rowID, columnID string) (*core.CellValue, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.cells[core.CellKey(rowID, columnID)]
	return v, ok
}

// HasData reports whether any sandbox values exist; exports use this to
// flag their filenames.
func (o *Overlay) HasData() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.cells) > 0
}

// Clear drops all sandbox values.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cells = make(map[string]*core.CellValue)
}

// Package gridview provides the virtualized grid window, cell edit,
// filter/sort, and CSV import/export handlers.
package gridview

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nestgrid-labs/nestgrid/internal/autorun"
	"github.com/nestgrid-labs/nestgrid/internal/csvio"
	"github.com/nestgrid-labs/nestgrid/internal/engine"
	"github.com/nestgrid-labs/nestgrid/internal/ui/features/common"
	"github.com/nestgrid-labs/nestgrid/internal/ui/notifier"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
	"github.com/nestgrid-labs/nestgrid/pkg/grid"
)

// Handlers holds the feature's dependencies.
type Handlers struct {
	eng      *engine.Engine
	store    core.Store
	detector *autorun.Detector
	notify   *notifier.Notifier
}

// NewHandlers creates the grid handlers.
func NewHandlers(eng *engine.Engine, store core.Store, detector *autorun.Detector, notify *notifier.Notifier) *Handlers {
	return &Handlers{eng: eng, store: store, detector: detector, notify: notify}
}

type cellOut struct {
	Display string          `json:"display"`
	Status  core.CellStatus `json:"status"`
	Error   string          `json:"error,omitempty"`
}

type rowOut struct {
	ID       string             `json:"id"`
	Position int                `json:"position"`
	Offset   int                `json:"offset"`
	Cells    map[string]cellOut `json:"cells"`
}

// Grid handles GET /api/workspaces/{workspaceID}/grid. The response is
// a virtualized window: only rows overlapping the viewport (plus
// overscan) are materialized, regardless of total row count.
func (h *Handlers) Grid(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	snap, err := h.eng.LoadSnapshot(workspaceID)
	if err != nil {
		common.Error(w, http.StatusNotFound, "%v", err)
		return
	}

	filters, err := h.store.ListFilters(workspaceID)
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	sorts, err := h.store.ListSorts(workspaceID)
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}

	q := r.URL.Query()
	search := q.Get("search")
	scrollTop := parseFloat(q.Get("scroll_top"), 0)
	viewportHeight := parseFloat(q.Get("viewport_height"), float64(grid.RowHeight*25))

	rows := grid.Pipeline(snap.Rows, snap.Columns, filters, search, sorts, snap.ValueFunc())
	start, end := grid.VisibleRange(scrollTop, viewportHeight, len(rows))

	out := make([]rowOut, 0, end-start)
	for i := start; i < end; i++ {
		row := rows[i]
		cells := make(map[string]cellOut, len(snap.Columns))
		for _, col := range snap.Columns {
			c := cellOut{Display: snap.DisplayValue(row, col)}
			if cell := snap.StoredCell(row.ID, col.ID); cell != nil {
				c.Status = cell.Status
				c.Error = cell.ErrorMessage
			}
			cells[col.ID] = c
		}
		out = append(out, rowOut{
			ID:       row.ID,
			Position: i,
			Offset:   grid.RowOffset(i),
			Cells:    cells,
		})
	}

	common.JSON(w, http.StatusOK, map[string]any{
		"total":          len(rows),
		"start":          start,
		"end":            end,
		"content_height": grid.ContentHeight(len(rows)),
		"rows":           out,
	})
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// CreateRow handles POST /api/workspaces/{workspaceID}/rows.
func (h *Handlers) CreateRow(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	var req struct {
		SourceData map[string]any `json:"source_data"`
	}
	if err := common.Decode(r, &req); err != nil {
		common.Error(w, http.StatusBadRequest, "%v", err)
		return
	}
	row := &core.Row{WorkspaceID: workspaceID, SourceData: req.SourceData}
	if err := h.store.CreateRow(row); err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	h.changed(workspaceID)
	common.JSON(w, http.StatusCreated, map[string]string{"id": row.ID})
}

// DeleteRow handles DELETE /api/workspaces/{workspaceID}/rows/{rowID}.
func (h *Handlers) DeleteRow(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	if err := h.store.DeleteRow(chi.URLParam(r, "rowID")); err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	h.changed(workspaceID)
	w.WriteHeader(http.StatusNoContent)
}

// EditCell handles PUT /api/workspaces/{workspaceID}/cells/{rowID}/{columnID}:
// a manual cell override. Editing a cell other columns read from
// cascades through the auto-run detector.
func (h *Handlers) EditCell(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	rowID := chi.URLParam(r, "rowID")
	columnID := chi.URLParam(r, "columnID")

	var req struct {
		Value any `json:"value"`
	}
	if err := common.Decode(r, &req); err != nil {
		common.Error(w, http.StatusBadRequest, "%v", err)
		return
	}

	col, err := h.store.GetColumn(columnID)
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if col == nil || col.WorkspaceID != workspaceID {
		common.Error(w, http.StatusNotFound, "column not found")
		return
	}
	if col.Type.Computed() {
		common.Error(w, http.StatusBadRequest, "%s columns are computed and cannot be edited", col.Type)
		return
	}

	cell := &core.Cell{
		WorkspaceID: workspaceID,
		RowID:       rowID,
		ColumnID:    columnID,
		Status:      core.CellComplete,
		Value:       core.ScalarValue(fmt.Sprintf("%v", req.Value)),
	}
	if req.Value == nil || req.Value == "" {
		cell.Status = core.CellEmpty
		cell.Value = nil
	}
	if err := h.store.UpsertCell(cell); err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}

	h.notify.Broadcast(notifier.Event{WorkspaceID: workspaceID, Kind: "change"})
	if h.detector != nil {
		h.detector.NotifyInputEdit(workspaceID, columnID)
	}
	common.JSON(w, http.StatusOK, map[string]string{"status": string(cell.Status)})
}

// SaveFilters handles PUT /api/workspaces/{workspaceID}/filters,
// replacing the workspace's filter list.
func (h *Handlers) SaveFilters(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	var req []struct {
		ColumnID string              `json:"column_id"`
		Operator core.FilterOperator `json:"operator"`
		Value    string              `json:"value"`
		ValueTo  string              `json:"value_to"`
	}
	if err := common.Decode(r, &req); err != nil {
		common.Error(w, http.StatusBadRequest, "%v", err)
		return
	}
	filters := make([]*core.Filter, 0, len(req))
	for i, f := range req {
		filters = append(filters, &core.Filter{
			WorkspaceID: workspaceID,
			ColumnID:    f.ColumnID,
			Operator:    f.Operator,
			Value:       f.Value,
			ValueTo:     f.ValueTo,
			Position:    i,
		})
	}
	if err := h.store.SaveFilters(workspaceID, filters); err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	h.notify.Broadcast(notifier.Event{WorkspaceID: workspaceID, Kind: "change"})
	common.JSON(w, http.StatusOK, map[string]int{"count": len(filters)})
}

// SaveSorts handles PUT /api/workspaces/{workspaceID}/sorts, replacing
// the workspace's ordered sort list.
func (h *Handlers) SaveSorts(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	var req []struct {
		ColumnID  string             `json:"column_id"`
		Direction core.SortDirection `json:"direction"`
	}
	if err := common.Decode(r, &req); err != nil {
		common.Error(w, http.StatusBadRequest, "%v", err)
		return
	}
	sorts := make([]*core.Sort, 0, len(req))
	for i, s := range req {
		sorts = append(sorts, &core.Sort{
			WorkspaceID: workspaceID,
			ColumnID:    s.ColumnID,
			Direction:   s.Direction,
			Position:    i,
		})
	}
	if err := h.store.SaveSorts(workspaceID, sorts); err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	h.notify.Broadcast(notifier.Event{WorkspaceID: workspaceID, Kind: "change"})
	common.JSON(w, http.StatusOK, map[string]int{"count": len(sorts)})
}

// Import handles POST /api/workspaces/{workspaceID}/import with a CSV
// request body.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	res, err := csvio.Import(r.Body, h.store, workspaceID)
	if err != nil {
		common.Error(w, http.StatusBadRequest, "%v", err)
		return
	}
	h.changed(workspaceID)
	common.JSON(w, http.StatusOK, map[string]int{
		"columns_created": len(res.Columns),
		"rows_imported":   len(res.Rows),
	})
}

// Export handles GET /api/workspaces/{workspaceID}/export. The
// download filename carries a -SANDBOX suffix when the workspace is in
// sandbox mode.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	ws, err := h.store.GetWorkspace(workspaceID)
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if ws == nil {
		common.Error(w, http.StatusNotFound, "workspace not found")
		return
	}
	snap, err := h.eng.LoadSnapshot(workspaceID)
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	filters, err := h.store.ListFilters(workspaceID)
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	sorts, err := h.store.ListSorts(workspaceID)
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	rows := grid.Pipeline(snap.Rows, snap.Columns, filters, "", sorts, snap.ValueFunc())

	filename := csvio.ExportFilename(ws.Name, ws.Sandbox)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	// Headers are already written; an export error mid-stream aborts
	// the response body.
	_ = csvio.Export(w, snap.Columns, rows, snap.DisplayValue)
}

// changed broadcasts a grid change and feeds the auto-run detector.
func (h *Handlers) changed(workspaceID string) {
	h.notify.Broadcast(notifier.Event{WorkspaceID: workspaceID, Kind: "change"})
	if h.detector != nil {
		h.detector.NotifyChange(workspaceID)
	}
}

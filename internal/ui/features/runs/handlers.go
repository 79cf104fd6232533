// Package runs provides the enrichment run API handlers.
package runs

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nestgrid-labs/nestgrid/internal/engine"
	"github.com/nestgrid-labs/nestgrid/internal/ui/features/common"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// Handlers holds the feature's dependencies.
type Handlers struct {
	eng   *engine.Engine
	store core.Store
}

// NewHandlers creates the run handlers.
func NewHandlers(eng *engine.Engine, store core.Store) *Handlers {
	return &Handlers{eng: eng, store: store}
}

type runInfo struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	ColumnID    string `json:"column_id,omitempty"`
	Kind        string `json:"kind"`
	Sandbox     bool   `json:"sandbox"`
	Status      string `json:"status"`
	Total       int    `json:"total"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	Error       string `json:"error,omitempty"`
}

func toInfo(run *core.Run) runInfo {
	return runInfo{
		ID:          run.ID,
		WorkspaceID: run.WorkspaceID,
		ColumnID:    run.ColumnID,
		Kind:        string(run.Kind),
		Sandbox:     run.Sandbox,
		Status:      string(run.Status),
		Total:       run.Total,
		Succeeded:   run.Succeeded,
		Failed:      run.Failed,
		Error:       run.Error,
	}
}

// Start handles POST /api/workspaces/{workspaceID}/runs. The request
// names one column, or sets all=true to run every enrichable column in
// position order. Progress streams out on /api/events while this
// request is in flight.
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")

	var req struct {
		ColumnID string   `json:"column_id"`
		All      bool     `json:"all"`
		RowIDs   []string `json:"row_ids"`
	}
	if err := common.Decode(r, &req); err != nil {
		common.Error(w, http.StatusBadRequest, "%v", err)
		return
	}

	if req.All {
		runs, err := h.eng.RunAll(r.Context(), workspaceID)
		if err != nil {
			common.Error(w, http.StatusInternalServerError, "%v", err)
			return
		}
		infos := make([]runInfo, 0, len(runs))
		for _, run := range runs {
			infos = append(infos, toInfo(run))
		}
		common.JSON(w, http.StatusOK, infos)
		return
	}

	if req.ColumnID == "" {
		common.Error(w, http.StatusBadRequest, "column_id or all is required")
		return
	}
	run, err := h.eng.RunColumnRows(r.Context(), workspaceID, req.ColumnID, req.RowIDs, core.RunManual)
	if err != nil {
		common.Error(w, http.StatusBadRequest, "%v", err)
		return
	}
	common.JSON(w, http.StatusOK, toInfo(run))
}

// List handles GET /api/workspaces/{workspaceID}/runs.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := h.store.ListRuns(workspaceID, limit)
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	infos := make([]runInfo, 0, len(runs))
	for _, run := range runs {
		infos = append(infos, toInfo(run))
	}
	common.JSON(w, http.StatusOK, infos)
}

// Get handles GET /api/runs/{runID}.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(chi.URLParam(r, "runID"))
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if run == nil {
		common.Error(w, http.StatusNotFound, "run not found")
		return
	}
	common.JSON(w, http.StatusOK, toInfo(run))
}

// Cells handles GET /api/runs/{runID}/cells: the per-cell outcomes of
// a run, including waterfall provenance.
func (h *Handlers) Cells(w http.ResponseWriter, r *http.Request) {
	cellRuns, err := h.store.ListCellRuns(chi.URLParam(r, "runID"))
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	type cellRunInfo struct {
		RowID       string `json:"row_id"`
		ColumnID    string `json:"column_id"`
		Status      string `json:"status"`
		Attempts    int    `json:"attempts"`
		SourceUsed  string `json:"source_used,omitempty"`
		ExecutionMS int64  `json:"execution_ms"`
		Error       string `json:"error,omitempty"`
	}
	infos := make([]cellRunInfo, 0, len(cellRuns))
	for _, cr := range cellRuns {
		infos = append(infos, cellRunInfo{
			RowID:       cr.RowID,
			ColumnID:    cr.ColumnID,
			Status:      string(cr.Status),
			Attempts:    cr.Attempts,
			SourceUsed:  cr.SourceUsed,
			ExecutionMS: cr.ExecutionMS,
			Error:       cr.Error,
		})
	}
	common.JSON(w, http.StatusOK, infos)
}

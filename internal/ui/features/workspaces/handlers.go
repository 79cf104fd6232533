// Package workspaces provides the workspace and column API handlers.
package workspaces

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/nestgrid-labs/nestgrid/internal/sandbox"
	"github.com/nestgrid-labs/nestgrid/internal/ui/features/common"
	"github.com/nestgrid-labs/nestgrid/internal/ui/notifier"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

const sessionName = "nestgrid"

// Handlers holds the feature's dependencies.
type Handlers struct {
	store    core.Store
	overlay  *sandbox.Overlay
	sessions sessions.Store
	notify   *notifier.Notifier
}

// NewHandlers creates the workspace handlers.
func NewHandlers(store core.Store, overlay *sandbox.Overlay, sessionStore sessions.Store, notify *notifier.Notifier) *Handlers {
	return &Handlers{store: store, overlay: overlay, sessions: sessionStore, notify: notify}
}

type workspaceInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	NestID  string `json:"nest_id,omitempty"`
	AutoRun bool   `json:"auto_run"`
	Sandbox bool   `json:"sandbox"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

func (h *Handlers) info(ws *core.Workspace) workspaceInfo {
	rows, _ := h.store.CountRows(ws.ID)
	cols, _ := h.store.ListColumns(ws.ID)
	return workspaceInfo{
		ID:      ws.ID,
		Name:    ws.Name,
		NestID:  ws.NestID,
		AutoRun: ws.AutoRun,
		Sandbox: ws.Sandbox,
		Rows:    rows,
		Columns: len(cols),
	}
}

// List handles GET /api/workspaces.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	workspaces, err := h.store.ListWorkspaces()
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	infos := make([]workspaceInfo, 0, len(workspaces))
	for _, ws := range workspaces {
		infos = append(infos, h.info(ws))
	}
	common.JSON(w, http.StatusOK, infos)
}

// Create handles POST /api/workspaces.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := common.Decode(r, &req); err != nil {
		common.Error(w, http.StatusBadRequest, "%v", err)
		return
	}
	if req.Name == "" {
		common.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	ws, err := h.store.CreateWorkspace(req.Name)
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	common.JSON(w, http.StatusCreated, h.info(ws))
}

func (h *Handlers) load(w http.ResponseWriter, r *http.Request) *core.Workspace {
	ws, err := h.store.GetWorkspace(chi.URLParam(r, "workspaceID"))
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return nil
	}
	if ws == nil {
		common.Error(w, http.StatusNotFound, "workspace not found")
		return nil
	}
	return ws
}

// Get handles GET /api/workspaces/{workspaceID}. Visiting a workspace
// records it as the session's active workspace.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	ws := h.load(w, r)
	if ws == nil {
		return
	}

	if sess, err := h.sessions.Get(r, sessionName); err == nil {
		sess.Values["active_workspace"] = ws.ID
		_ = sess.Save(r, w)
	}

	cols, err := h.store.ListColumns(ws.ID)
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"workspace": h.info(ws),
		"columns":   columnInfos(cols),
	})
}

// Update handles PATCH /api/workspaces/{workspaceID}: rename and
// settings changes. Turning sandbox off discards the overlay.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	ws := h.load(w, r)
	if ws == nil {
		return
	}

	var req struct {
		Name    *string `json:"name"`
		AutoRun *bool   `json:"auto_run"`
		Sandbox *bool   `json:"sandbox"`
		NestID  *string `json:"nest_id"`
	}
	if err := common.Decode(r, &req); err != nil {
		common.Error(w, http.StatusBadRequest, "%v", err)
		return
	}

	if req.Name != nil && *req.Name != ws.Name {
		if err := h.store.RenameWorkspace(ws.ID, *req.Name); err != nil {
			common.Error(w, http.StatusInternalServerError, "%v", err)
			return
		}
		ws.Name = *req.Name
	}

	autoRun, sandboxOn, nestID := ws.AutoRun, ws.Sandbox, ws.NestID
	if req.AutoRun != nil {
		autoRun = *req.AutoRun
	}
	if req.Sandbox != nil {
		sandboxOn = *req.Sandbox
	}
	if req.NestID != nil {
		nestID = *req.NestID
	}
	if autoRun != ws.AutoRun || sandboxOn != ws.Sandbox || nestID != ws.NestID {
		if err := h.store.UpdateWorkspaceSettings(ws.ID, autoRun, sandboxOn, nestID); err != nil {
			common.Error(w, http.StatusInternalServerError, "%v", err)
			return
		}
		if ws.Sandbox && !sandboxOn {
			h.overlay.Clear()
		}
		ws.AutoRun, ws.Sandbox, ws.NestID = autoRun, sandboxOn, nestID
	}

	h.notify.Broadcast(notifier.Event{WorkspaceID: ws.ID, Kind: "change"})
	common.JSON(w, http.StatusOK, h.info(ws))
}

// Delete handles DELETE /api/workspaces/{workspaceID}.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	ws := h.load(w, r)
	if ws == nil {
		return
	}
	if err := h.store.DeleteWorkspace(ws.ID); err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	h.notify.Broadcast(notifier.Event{Kind: "change"})
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/session.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	active := ""
	if sess, err := h.sessions.Get(r, sessionName); err == nil {
		if v, ok := sess.Values["active_workspace"].(string); ok {
			active = v
		}
	}
	common.JSON(w, http.StatusOK, map[string]string{"active_workspace": active})
}

type columnInfo struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Type     core.ColumnType   `json:"type"`
	Position int               `json:"position"`
	Width    int               `json:"width"`
	Config   core.ColumnConfig `json:"config"`
}

func columnInfos(cols []*core.Column) []columnInfo {
	out := make([]columnInfo, 0, len(cols))
	for _, col := range cols {
		out = append(out, columnInfo{col.ID, col.Name, col.Type, col.Position, col.Width, col.Config})
	}
	return out
}

// CreateColumn handles POST /api/workspaces/{workspaceID}/columns.
func (h *Handlers) CreateColumn(w http.ResponseWriter, r *http.Request) {
	ws := h.load(w, r)
	if ws == nil {
		return
	}

	var req struct {
		Name   string            `json:"name"`
		Type   core.ColumnType   `json:"type"`
		Config core.ColumnConfig `json:"config"`
	}
	if err := common.Decode(r, &req); err != nil {
		common.Error(w, http.StatusBadRequest, "%v", err)
		return
	}
	if req.Name == "" || req.Type == "" {
		common.Error(w, http.StatusBadRequest, "name and type are required")
		return
	}

	col := &core.Column{
		WorkspaceID: ws.ID,
		Name:        req.Name,
		Type:        req.Type,
		Config:      req.Config,
	}
	if err := h.store.CreateColumn(col); err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	h.notify.Broadcast(notifier.Event{WorkspaceID: ws.ID, Kind: "change"})
	common.JSON(w, http.StatusCreated, columnInfo{col.ID, col.Name, col.Type, col.Position, col.Width, col.Config})
}

// UpdateColumn handles PATCH /api/columns/{columnID}: rename, resize,
// and config replacement.
func (h *Handlers) UpdateColumn(w http.ResponseWriter, r *http.Request) {
	col, err := h.store.GetColumn(chi.URLParam(r, "columnID"))
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if col == nil {
		common.Error(w, http.StatusNotFound, "column not found")
		return
	}

	var req struct {
		Name   *string            `json:"name"`
		Width  *int               `json:"width"`
		Config *core.ColumnConfig `json:"config"`
	}
	if err := common.Decode(r, &req); err != nil {
		common.Error(w, http.StatusBadRequest, "%v", err)
		return
	}

	if req.Name != nil && *req.Name != col.Name {
		if err := h.store.RenameColumn(col.ID, *req.Name); err != nil {
			common.Error(w, http.StatusInternalServerError, "%v", err)
			return
		}
		col.Name = *req.Name
	}
	if req.Width != nil {
		if err := h.store.SaveColumnWidth(col.ID, *req.Width); err != nil {
			common.Error(w, http.StatusInternalServerError, "%v", err)
			return
		}
		col.Width = *req.Width
	}
	if req.Config != nil {
		if err := h.store.UpdateColumnConfig(col.ID, *req.Config); err != nil {
			common.Error(w, http.StatusInternalServerError, "%v", err)
			return
		}
		col.Config = *req.Config
	}

	h.notify.Broadcast(notifier.Event{WorkspaceID: col.WorkspaceID, Kind: "change"})
	common.JSON(w, http.StatusOK, columnInfo{col.ID, col.Name, col.Type, col.Position, col.Width, col.Config})
}

// DeleteColumn handles DELETE /api/columns/{columnID}. Cells of the
// column are removed with it.
func (h *Handlers) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	col, err := h.store.GetColumn(chi.URLParam(r, "columnID"))
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if col == nil {
		common.Error(w, http.StatusNotFound, "column not found")
		return
	}
	if err := h.store.DeleteCellsForColumn(col.ID); err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if err := h.store.DeleteColumn(col.ID); err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	h.notify.Broadcast(notifier.Event{WorkspaceID: col.WorkspaceID, Kind: "change"})
	w.WriteHeader(http.StatusNoContent)
}

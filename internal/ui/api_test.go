package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestgrid-labs/nestgrid/internal/autorun"
	chatclient "github.com/nestgrid-labs/nestgrid/internal/chat"
	"github.com/nestgrid-labs/nestgrid/internal/engine"
	"github.com/nestgrid-labs/nestgrid/internal/provider"
	"github.com/nestgrid-labs/nestgrid/internal/state"
	"github.com/nestgrid-labs/nestgrid/internal/testutil"
	"github.com/nestgrid-labs/nestgrid/internal/ui/notifier"
	"github.com/nestgrid-labs/nestgrid/internal/ui/router"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

type fakeProvider struct{}

func (fakeProvider) Enrich(_ context.Context, kind provider.Kind, input string) (map[string]any, error) {
	if input == "fail" {
		return nil, fmt.Errorf("provider says no")
	}
	return map[string]any{"source": kind.String(), "input": input}, nil
}

type testEnv struct {
	store  *state.SQLiteStore
	eng    *engine.Engine
	notify *notifier.Notifier
	srv    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := state.NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	logger := testutil.NewTestLogger(t)
	notify := notifier.New()

	eng, err := engine.New(engine.Config{
		Store:    store,
		Provider: fakeProvider{},
		Logger:   logger,
		OnChange: func(workspaceID string) {
			notify.Broadcast(notifier.Event{WorkspaceID: workspaceID, Kind: "change"})
		},
	})
	require.NoError(t, err)

	detector := autorun.New(eng, 10*time.Millisecond, logger)
	t.Cleanup(detector.Stop)

	mux := chi.NewMux()
	require.NoError(t, router.SetupRoutes(mux, router.Deps{
		Engine:       eng,
		Store:        store,
		Detector:     detector,
		SessionStore: sessions.NewCookieStore([]byte("test-key")),
		Notifier:     notify,
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{store: store, eng: eng, notify: notify, srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	data := new(bytes.Buffer)
	_, _ = data.ReadFrom(resp.Body)
	resp.Body.Close()
	return resp, data.Bytes()
}

func (e *testEnv) seedWorkspace(t *testing.T) (*core.Workspace, *core.Column, *core.Column) {
	t.Helper()
	ws, err := e.store.CreateWorkspace("Prospects")
	require.NoError(t, err)

	input := &core.Column{
		WorkspaceID: ws.ID, Name: "LinkedIn", Type: core.ColumnField,
		Config: core.ColumnConfig{SourceField: "linkedin", DataType: core.DataURL},
	}
	require.NoError(t, e.store.CreateColumn(input))

	enriched := &core.Column{
		WorkspaceID: ws.ID, Name: "Profile", Type: core.ColumnEnrichment,
		Config: core.ColumnConfig{Provider: "fullEnrichFromLinkedIn", InputColumnID: input.ID, OutputField: "input"},
	}
	require.NoError(t, e.store.CreateColumn(enriched))

	rows := []*core.Row{
		{WorkspaceID: ws.ID, SourceData: map[string]any{"linkedin": "in/ada"}},
		{WorkspaceID: ws.ID, SourceData: map[string]any{"linkedin": "in/grace"}},
	}
	require.NoError(t, e.store.CreateRows(rows))
	return ws, input, enriched
}

func TestWorkspaceLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/workspaces", map[string]string{"name": "Leads"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "Leads", created.Name)

	resp, body = env.do(t, http.MethodGet, "/api/workspaces", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)

	resp, _ = env.do(t, http.MethodPatch, "/api/workspaces/"+created.ID, map[string]any{"name": "Leads Q3", "sandbox": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ws, err := env.store.GetWorkspace(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Leads Q3", ws.Name)
	assert.True(t, ws.Sandbox)

	resp, _ = env.do(t, http.MethodDelete, "/api/workspaces/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/workspaces/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestColumnCRUD(t *testing.T) {
	env := newTestEnv(t)
	ws, _, _ := env.seedWorkspace(t)

	resp, body := env.do(t, http.MethodPost, "/api/workspaces/"+ws.ID+"/columns", map[string]any{
		"name": "Greeting",
		"type": "formula",
		"config": map[string]any{
			"expression": `CONCAT("Hi ", /LinkedIn)`,
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var col struct {
		ID       string `json:"id"`
		Position int    `json:"position"`
	}
	require.NoError(t, json.Unmarshal(body, &col))
	assert.Equal(t, 3, col.Position)

	resp, _ = env.do(t, http.MethodPatch, "/api/columns/"+col.ID, map[string]any{"name": "Hello", "width": 240})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stored, err := env.store.GetColumn(col.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", stored.Name)
	assert.Equal(t, 240, stored.Width)

	resp, _ = env.do(t, http.MethodDelete, "/api/columns/"+col.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	stored, err = env.store.GetColumn(col.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestGridWindow(t *testing.T) {
	env := newTestEnv(t)
	ws, _, _ := env.seedWorkspace(t)

	resp, body := env.do(t, http.MethodGet, "/api/workspaces/"+ws.ID+"/grid", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var grid struct {
		Total         int `json:"total"`
		Start         int `json:"start"`
		End           int `json:"end"`
		ContentHeight int `json:"content_height"`
		Rows          []struct {
			ID    string                    `json:"id"`
			Cells map[string]map[string]any `json:"cells"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(body, &grid))
	assert.Equal(t, 2, grid.Total)
	assert.Equal(t, 80, grid.ContentHeight)
	require.Len(t, grid.Rows, 2)

	// Field values come from source data.
	first := grid.Rows[0]
	found := false
	for _, cell := range first.Cells {
		if cell["display"] == "in/ada" {
			found = true
		}
	}
	assert.True(t, found, "expected a cell displaying the source value")

	// Search narrows the window.
	resp, body = env.do(t, http.MethodGet, "/api/workspaces/"+ws.ID+"/grid?search=grace", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &grid))
	assert.Equal(t, 1, grid.Total)
}

func TestCellEditAndComputedRejection(t *testing.T) {
	env := newTestEnv(t)
	ws, input, _ := env.seedWorkspace(t)
	rows, err := env.store.ListRows(ws.ID)
	require.NoError(t, err)

	resp, _ := env.do(t, http.MethodPut,
		"/api/workspaces/"+ws.ID+"/cells/"+rows[0].ID+"/"+input.ID,
		map[string]any{"value": "in/edited"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cell, err := env.store.GetCell(rows[0].ID, input.ID)
	require.NoError(t, err)
	require.NotNil(t, cell)
	assert.Equal(t, core.CellComplete, cell.Status)
	assert.Equal(t, "in/edited", cell.Value.Display())

	// Formula columns cannot be edited.
	formula := &core.Column{
		WorkspaceID: ws.ID, Name: "Calc", Type: core.ColumnFormula,
		Config: core.ColumnConfig{Expression: "/LinkedIn"},
	}
	require.NoError(t, env.store.CreateColumn(formula))
	resp, _ = env.do(t, http.MethodPut,
		"/api/workspaces/"+ws.ID+"/cells/"+rows[0].ID+"/"+formula.ID,
		map[string]any{"value": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFiltersAndSorts(t *testing.T) {
	env := newTestEnv(t)
	ws, input, _ := env.seedWorkspace(t)

	resp, _ := env.do(t, http.MethodPut, "/api/workspaces/"+ws.ID+"/filters", []map[string]any{
		{"column_id": input.ID, "operator": "contains", "value": "ada"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/workspaces/"+ws.ID+"/sorts", []map[string]any{
		{"column_id": input.ID, "direction": "desc"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The grid honors the persisted filter.
	resp, body := env.do(t, http.MethodGet, "/api/workspaces/"+ws.ID+"/grid", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var grid struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body, &grid))
	assert.Equal(t, 1, grid.Total)
}

func TestRunColumnAPI(t *testing.T) {
	env := newTestEnv(t)
	ws, _, enriched := env.seedWorkspace(t)

	resp, body := env.do(t, http.MethodPost, "/api/workspaces/"+ws.ID+"/runs",
		map[string]any{"column_id": enriched.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		Total     int    `json:"total"`
		Succeeded int    `json:"succeeded"`
	}
	require.NoError(t, json.Unmarshal(body, &run))
	assert.Equal(t, "success", run.Status)
	assert.Equal(t, 2, run.Total)
	assert.Equal(t, 2, run.Succeeded)

	resp, body = env.do(t, http.MethodGet, "/api/runs/"+run.ID+"/cells", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cells []map[string]any
	require.NoError(t, json.Unmarshal(body, &cells))
	assert.Len(t, cells, 2)

	// Enriched display values extract the configured output field.
	resp, body = env.do(t, http.MethodGet, "/api/workspaces/"+ws.ID+"/grid", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "in/ada")
}

func TestImportExport(t *testing.T) {
	env := newTestEnv(t)
	ws, err := env.store.CreateWorkspace("Import Target")
	require.NoError(t, err)

	csv := "Name,Email\nAda,ada@acme.test\nGrace,grace@navy.test\n"
	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/workspaces/"+ws.ID+"/import",
		strings.NewReader(csv))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	exportResp, body := env.do(t, http.MethodGet, "/api/workspaces/"+ws.ID+"/export", nil)
	require.Equal(t, http.StatusOK, exportResp.StatusCode)
	assert.Contains(t, exportResp.Header.Get("Content-Disposition"), "Import-Target.csv")
	assert.Contains(t, string(body), "Ada,ada@acme.test")
}

func TestExportSandboxFilename(t *testing.T) {
	env := newTestEnv(t)
	ws, _, _ := env.seedWorkspace(t)
	require.NoError(t, env.store.UpdateWorkspaceSettings(ws.ID, false, true, ""))

	resp, _ := env.do(t, http.MethodGet, "/api/workspaces/"+ws.ID+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Prospects-SANDBOX.csv")
}

func TestChatRoundTrip(t *testing.T) {
	chatSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Use a waterfall column.\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer chatSrv.Close()

	env := newTestEnv(t)
	ws, _, _ := env.seedWorkspace(t)

	// Remount routes with a chat client pointing at the stub endpoint.
	mux := chi.NewMux()
	require.NoError(t, router.SetupRoutes(mux, router.Deps{
		Engine:       env.eng,
		Store:        env.store,
		Chat:         chatclient.NewClient(chatSrv.URL, "", nil),
		ChatModel:    "grid-small",
		SessionStore: sessions.NewCookieStore([]byte("test-key")),
		Notifier:     env.notify,
	}))
	apiSrv := httptest.NewServer(mux)
	defer apiSrv.Close()

	payload, _ := json.Marshal(map[string]string{"content": "How do I combine sources?"})
	resp, err := http.Post(apiSrv.URL+"/api/workspaces/"+ws.ID+"/chat", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var turns []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turns))
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "Use a waterfall column.", turns[1].Content)

	// The transcript is persisted.
	messages, err := env.store.ListChatMessages(ws.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/events", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Give the subscriber time to register, then broadcast.
	time.Sleep(50 * time.Millisecond)
	env.notify.Broadcast(notifier.Event{WorkspaceID: "ws1", Kind: "change"})

	buf := make([]byte, 1024)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	got := string(buf[:n])
	assert.Contains(t, got, "event: change")
	assert.Contains(t, got, `"workspace_id":"ws1"`)
}

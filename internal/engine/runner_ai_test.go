package engine

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/nestgrid-labs/nestgrid/internal/chat"
	"github.com/nestgrid-labs/nestgrid/internal/state"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

func writeSSE(w http.ResponseWriter, tokens ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, tok := range tokens {
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", tok)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func seedAIColumn(t *testing.T, s *state.SQLiteStore, prompt, outputFormat string) (wsID string, col *core.Column, row *core.Row) {
	t.Helper()
	ws, err := s.CreateWorkspace("ws")
	require.NoError(t, err)

	name := &core.Column{WorkspaceID: ws.ID, Name: "Name", Type: core.ColumnField,
		Config: core.ColumnConfig{SourceField: "name"}}
	require.NoError(t, s.CreateColumn(name))

	col = &core.Column{
		WorkspaceID: ws.ID, Name: "Summary", Type: core.ColumnAI,
		Config: core.ColumnConfig{Prompt: prompt, Model: "grid-small", OutputFormat: outputFormat},
	}
	require.NoError(t, s.CreateColumn(col))

	row = &core.Row{WorkspaceID: ws.ID, SourceData: map[string]any{"name": "Ada Lovelace"}}
	require.NoError(t, s.CreateRow(row))
	return ws.ID, col, row
}

func TestAIRunner_PromptSubstitutionAndStreaming(t *testing.T) {
	var gotPrompt atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotPrompt.Store(gjson.GetBytes(body, "messages.0.content").String())
		assert.Equal(t, "grid-small", gjson.GetBytes(body, "model").String())
		assert.True(t, gjson.GetBytes(body, "stream").Bool())
		writeSSE(w, "Ada Lovelace ", "wrote the first program.")
	}))
	defer srv.Close()

	s := state.NewSQLiteStore()
	require.NoError(t, s.Open(":memory:"))
	require.NoError(t, s.InitSchema())
	t.Cleanup(func() { s.Close() })

	eng, err := New(Config{Store: s, Chat: chat.NewClient(srv.URL, "key", nil)})
	require.NoError(t, err)

	wsID, col, row := seedAIColumn(t, s, "Describe /Name in one line.", "")

	run, err := eng.RunColumn(t.Context(), wsID, col.ID, core.RunManual)
	require.NoError(t, err)
	assert.Equal(t, core.RunSuccess, run.Status)

	assert.Equal(t, "Describe Ada Lovelace in one line.", gotPrompt.Load())

	cell, err := s.GetCell(row.ID, col.ID)
	require.NoError(t, err)
	require.NotNil(t, cell)
	assert.Equal(t, "Ada Lovelace wrote the first program.", cell.Value.Display())
}

func TestAIRunner_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		writeSSE(w, "ok")
	}))
	defer srv.Close()

	s := state.NewSQLiteStore()
	require.NoError(t, s.Open(":memory:"))
	require.NoError(t, s.InitSchema())
	t.Cleanup(func() { s.Close() })

	eng, err := New(Config{Store: s, Chat: chat.NewClient(srv.URL, "key", nil)})
	require.NoError(t, err)

	wsID, col, row := seedAIColumn(t, s, "Describe /Name.", "")

	run, err := eng.RunColumn(t.Context(), wsID, col.ID, core.RunManual)
	require.NoError(t, err)
	assert.Equal(t, core.RunSuccess, run.Status)
	assert.Equal(t, int32(2), calls.Load())

	cell, err := s.GetCell(row.ID, col.ID)
	require.NoError(t, err)
	assert.Equal(t, "ok", cell.Value.Display())

	crs, err := s.ListCellRuns(run.ID)
	require.NoError(t, err)
	require.Len(t, crs, 1)
	assert.Equal(t, 2, crs[0].Attempts)
}

func TestAIRunner_NonRateLimitErrorFailsCell(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := state.NewSQLiteStore()
	require.NoError(t, s.Open(":memory:"))
	require.NoError(t, s.InitSchema())
	t.Cleanup(func() { s.Close() })

	eng, err := New(Config{Store: s, Chat: chat.NewClient(srv.URL, "key", nil)})
	require.NoError(t, err)

	wsID, col, row := seedAIColumn(t, s, "Describe /Name.", "")

	run, err := eng.RunColumn(t.Context(), wsID, col.ID, core.RunManual)
	require.NoError(t, err)
	assert.Equal(t, core.RunFailed, run.Status)
	// No retry on non-429 errors.
	assert.Equal(t, int32(1), calls.Load())

	cell, err := s.GetCell(row.ID, col.ID)
	require.NoError(t, err)
	assert.Equal(t, core.CellError, cell.Status)
	assert.Contains(t, cell.ErrorMessage, "400")
}

func TestAIRunner_JSONOutputFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, "```json\n{\"role\": \"mathematician\", \"era\": \"1800s\"}\n```")
	}))
	defer srv.Close()

	s := state.NewSQLiteStore()
	require.NoError(t, s.Open(":memory:"))
	require.NoError(t, s.InitSchema())
	t.Cleanup(func() { s.Close() })

	eng, err := New(Config{Store: s, Chat: chat.NewClient(srv.URL, "key", nil)})
	require.NoError(t, err)

	wsID, col, row := seedAIColumn(t, s, "Classify /Name.", "json")

	_, err = eng.RunColumn(t.Context(), wsID, col.ID, core.RunManual)
	require.NoError(t, err)

	cell, err := s.GetCell(row.ID, col.ID)
	require.NoError(t, err)
	require.NotNil(t, cell.Value)
	assert.Equal(t, "mathematician", cell.Value.Fields["role"])
}

func TestShapeAIOutput(t *testing.T) {
	v := shapeAIOutput("  plain text  ", "")
	assert.Equal(t, "plain text", v.Display())

	v = shapeAIOutput(`{"a": 1}`, "json")
	assert.Equal(t, float64(1), v.Fields["a"])

	// Invalid JSON falls back to the raw text.
	v = shapeAIOutput("not json at all", "json")
	assert.Equal(t, "not json at all", v.Display())

	v = shapeAIOutput("- alpha\n* beta\n3. gamma\n\n", "list")
	assert.Equal(t, "alpha\nbeta\ngamma", v.Display())
}

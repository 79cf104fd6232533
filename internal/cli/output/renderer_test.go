package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferRenderer(mode Mode) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return NewRenderer(out, errOut, mode), out, errOut
}

func TestUnstyledForNonTerminal(t *testing.T) {
	r, out, errOut := newBufferRenderer(ModeText)

	r.Successf("imported %d rows", 3)
	r.Warnf("column %s skipped", "Email")
	r.Header("Workspaces")

	assert.Equal(t, "✓ imported 3 rows\nWorkspaces\n", out.String())
	assert.Equal(t, "! column Email skipped\n", errOut.String())
	assert.NotContains(t, out.String(), "\x1b[", "buffers must never receive escape codes")
}

func TestTablePlain(t *testing.T) {
	r, out, _ := newBufferRenderer(ModeText)

	r.Table([]string{"ID", "NAME"}, [][]string{
		{"ws_1", "Prospects"},
		{"ws_2", "Leads"},
	})

	got := out.String()
	assert.Contains(t, got, "ID")
	assert.Contains(t, got, "Prospects")
	assert.NotContains(t, got, "╭", "plain output has no rounded border")
}

func TestJSONOutput(t *testing.T) {
	r, out, _ := newBufferRenderer(ModeJSON)
	require.Equal(t, ModeJSON, r.Mode())

	require.NoError(t, r.JSON(map[string]any{"id": "ws_1", "rows": 2}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "ws_1", decoded["id"])
	assert.True(t, strings.Contains(out.String(), "\n  "), "JSON is indented")
}

func TestKeyValueAlignment(t *testing.T) {
	r, out, _ := newBufferRenderer(ModeText)

	r.KeyValue("Name", "Prospects")
	r.KeyValue("Rows", "120")

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Index(lines[0], "Prospects"), strings.Index(lines[1], "120"))
}

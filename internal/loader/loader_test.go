package loader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestgrid-labs/nestgrid/internal/state"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

const sampleDefinition = `
workspace: Prospects
auto_run: true
columns:
  - name: LinkedIn
    type: field
    data_type: url
  - name: Revenue
    type: field
    source_field: annual_revenue
    data_type: currency
    currency_code: USD
  - name: Profile
    type: enrichment
    provider: fullEnrichFromLinkedIn
    input_column: LinkedIn
    output_field: company.name
  - name: Pitch
    type: ai
    prompt: "Write a one-line pitch for /Profile"
    output_format: text
  - name: Contact
    type: waterfall
    stop_on_success: false
    sources:
      - provider: enrichFromLinkedIn
        input_column: LinkedIn
      - provider: enrichCompanyOnly
        input_column: Profile
  - name: Lookup
    type: http
    url: "https://api.example.test/v1?q=/LinkedIn"
    auth:
      type: bearer
      token: tok-123
  - name: Greeting
    type: formula
    expression: 'CONCAT("Hi ", /Profile)'
  - name: Summary
    type: merge
    merge_columns: [Profile, Pitch]
    separator: " | "
    empty_policy: skip
`

func newTestStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	s := state.NewSQLiteStore()
	require.NoError(t, s.Open(":memory:"))
	require.NoError(t, s.InitSchema())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestParse(t *testing.T) {
	def, err := Parse(strings.NewReader(sampleDefinition))
	require.NoError(t, err)

	assert.Equal(t, "Prospects", def.Workspace)
	assert.True(t, def.AutoRun)
	require.Len(t, def.Columns, 8)
	assert.Equal(t, "url", def.Columns[0].DataType)
	assert.Equal(t, "bearer", def.Columns[5].Auth.Type)
	require.NotNil(t, def.Columns[4].StopOnSuccess)
	assert.False(t, *def.Columns[4].StopOnSuccess)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("workspace: X\nautorun: true\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"missing workspace", "columns: []\n", "workspace name is required"},
		{"bad type", "workspace: X\ncolumns:\n  - name: A\n    type: magic\n", "unknown type"},
		{"duplicate name", "workspace: X\ncolumns:\n  - name: A\n    type: field\n  - name: A\n    type: field\n", "duplicate name"},
		{"enrichment without provider", "workspace: X\ncolumns:\n  - name: A\n    type: enrichment\n", "need a provider"},
		{"ai without prompt", "workspace: X\ncolumns:\n  - name: A\n    type: ai\n", "need a prompt"},
		{"formula without expression", "workspace: X\ncolumns:\n  - name: A\n    type: formula\n", "need an expression"},
		{"waterfall without sources", "workspace: X\ncolumns:\n  - name: A\n    type: waterfall\n", "at least one source"},
		{"http without url", "workspace: X\ncolumns:\n  - name: A\n    type: http\n", "need a url"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestApply_CreatesWorkspaceAndColumns(t *testing.T) {
	s := newTestStore(t)
	def, err := Parse(strings.NewReader(sampleDefinition))
	require.NoError(t, err)

	res, err := Apply(s, def)
	require.NoError(t, err)
	assert.True(t, res.WorkspaceCreated)
	assert.True(t, res.Workspace.AutoRun)
	require.Len(t, res.Created, 8)
	assert.Empty(t, res.Updated)

	cols, err := s.ListColumns(res.Workspace.ID)
	require.NoError(t, err)
	require.Len(t, cols, 8)

	byName := make(map[string]*core.Column)
	for _, c := range cols {
		byName[c.Name] = c
	}

	// Field name lowercased as the default source field.
	assert.Equal(t, "linkedin", byName["LinkedIn"].Config.SourceField)
	assert.Equal(t, "annual_revenue", byName["Revenue"].Config.SourceField)

	// Input references resolved to IDs.
	assert.Equal(t, byName["LinkedIn"].ID, byName["Profile"].Config.InputColumnID)
	require.Len(t, byName["Contact"].Config.Sources, 2)
	assert.Equal(t, byName["Profile"].ID, byName["Contact"].Config.Sources[1].InputColumnID)
	assert.Equal(t, []string{byName["Profile"].ID, byName["Pitch"].ID}, byName["Summary"].Config.MergeColumnIDs)
	assert.Equal(t, "tok-123", byName["Lookup"].Config.AuthToken)

	// Positions follow file order.
	assert.Equal(t, 1, byName["LinkedIn"].Position)
	assert.Equal(t, 8, byName["Summary"].Position)
}

func TestApply_Idempotent(t *testing.T) {
	s := newTestStore(t)
	def, err := Parse(strings.NewReader(sampleDefinition))
	require.NoError(t, err)

	_, err = Apply(s, def)
	require.NoError(t, err)

	// Re-apply with one changed prompt.
	def.Columns[3].Prompt = "Updated prompt for /Profile"
	res, err := Apply(s, def)
	require.NoError(t, err)
	assert.False(t, res.WorkspaceCreated)
	assert.Empty(t, res.Created)
	require.Len(t, res.Updated, 8)

	workspaces, err := s.ListWorkspaces()
	require.NoError(t, err)
	require.Len(t, workspaces, 1)

	cols, err := s.ListColumns(workspaces[0].ID)
	require.NoError(t, err)
	require.Len(t, cols, 8)
	for _, c := range cols {
		if c.Name == "Pitch" {
			assert.Equal(t, "Updated prompt for /Profile", c.Config.Prompt)
		}
	}
}

func TestApply_TypeChangeRejected(t *testing.T) {
	s := newTestStore(t)
	def, err := Parse(strings.NewReader("workspace: X\ncolumns:\n  - name: A\n    type: field\n"))
	require.NoError(t, err)
	_, err = Apply(s, def)
	require.NoError(t, err)

	def2, err := Parse(strings.NewReader("workspace: X\ncolumns:\n  - name: A\n    type: formula\n    expression: '1'\n"))
	require.NoError(t, err)
	_, err = Apply(s, def2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot change type")
}

func TestApply_UnknownInputColumn(t *testing.T) {
	s := newTestStore(t)
	def, err := Parse(strings.NewReader(`
workspace: X
columns:
  - name: Profile
    type: enrichment
    provider: fullEnrichFromLinkedIn
    input_column: Missing
`))
	require.NoError(t, err)
	_, err = Apply(s, def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `input column "Missing" not found`)
}

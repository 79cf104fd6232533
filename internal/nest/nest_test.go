package nest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestgrid-labs/nestgrid/internal/state"
)

type staticSource struct {
	records []Record
}

func (s *staticSource) Name() string { return "static" }
func (s *staticSource) Fetch(_ context.Context, limit int) ([]Record, error) {
	if limit > 0 && limit < len(s.records) {
		return s.records[:limit], nil
	}
	return s.records, nil
}
func (s *staticSource) Close() error { return nil }

func TestImport_CreatesDefaultColumnsAndRows(t *testing.T) {
	s := state.NewSQLiteStore()
	require.NoError(t, s.Open(":memory:"))
	require.NoError(t, s.InitSchema())
	t.Cleanup(func() { s.Close() })
	ws, err := s.CreateWorkspace("ws")
	require.NoError(t, err)

	src := &staticSource{records: []Record{
		{"Name": "Ada Lovelace", "EMAIL": "ada@acme.test", "company": "Acme"},
		{"Name": "Grace Hopper", "EMAIL": "grace@navy.test"},
	}}

	res, err := Import(context.Background(), s, ws.ID, src, 0)
	require.NoError(t, err)

	require.Len(t, res.Columns, 6)
	assert.Equal(t, "Name", res.Columns[0].Name)
	assert.Equal(t, "name", res.Columns[0].Config.SourceField)
	assert.Equal(t, "Location", res.Columns[5].Name)

	// Record keys are lowercased so default source fields match.
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "ada@acme.test", res.Rows[0].SourceData["email"])
	assert.Equal(t, "Acme", res.Rows[0].SourceData["company"])

	// A second import reuses the columns.
	res2, err := Import(context.Background(), s, ws.ID, src, 1)
	require.NoError(t, err)
	assert.Empty(t, res2.Columns)
	assert.Len(t, res2.Rows, 1)

	n, err := s.CountRows(ws.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSQLSource_Fetch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"name", "email"}).
		AddRow("Ada", []byte("ada@acme.test")).
		AddRow("Grace", "grace@navy.test")
	mock.ExpectQuery("SELECT \\* FROM prospects LIMIT 10").WillReturnRows(rows)

	src := NewSQLSource("postgres", db, "SELECT * FROM prospects", nil)
	defer src.Close()

	got, err := src.Fetch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Ada", got[0]["name"])
	// Byte slices normalize to strings.
	assert.Equal(t, "ada@acme.test", got[0]["email"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCSVSource_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nest.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,email\nAda,ada@acme.test\nGrace,grace@navy.test\n"), 0o644))

	src, err := OpenCSV(path)
	require.NoError(t, err)

	got, err := src.Fetch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ada", got[0]["name"])

	got, err = src.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = OpenCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

package state

import (
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// Persistence failures must surface as errors without mutating the cell
// the caller holds; the engine keeps its optimistic value and retries.
func TestUpsertCell_PersistenceFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := &SQLiteStore{db: db}

	mock.ExpectExec("INSERT INTO cells").WillReturnError(fmt.Errorf("disk I/O error"))

	cell := &core.Cell{
		WorkspaceID: "ws", RowID: "r1", ColumnID: "c1",
		Status: core.CellComplete,
		Value:  core.ScalarValue("optimistic"),
	}
	err = s.UpsertCell(cell)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")

	// The in-memory cell is untouched by the failed write.
	assert.Equal(t, core.CellComplete, cell.Status)
	assert.Equal(t, "optimistic", cell.Value.Display())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveColumnWidth_Query(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := &SQLiteStore{db: db}

	mock.ExpectExec("UPDATE columns SET width").
		WithArgs(240, sqlmock.AnyArg(), "col-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SaveColumnWidth("col-1", 240))
	assert.NoError(t, mock.ExpectationsWereMet())
}

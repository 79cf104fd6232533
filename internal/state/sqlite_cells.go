package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// UpsertCell inserts or replaces the cell for (row, column).
func (s *SQLiteStore) UpsertCell(cell *core.Cell) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if cell.ID == "" {
		cell.ID = generateID()
	}
	cell.UpdatedAt = time.Now().UTC()

	var value sql.NullString
	if cell.Value != nil {
		b, err := json.Marshal(cell.Value)
		if err != nil {
			return fmt.Errorf("failed to encode cell value: %w", err)
		}
		value = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO cells (id, workspace_id, row_id, column_id, status, value, error_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (row_id, column_id) DO UPDATE SET
			status = excluded.status,
			value = excluded.value,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`,
		cell.ID, cell.WorkspaceID, cell.RowID, cell.ColumnID,
		string(cell.Status), value, cell.ErrorMessage, cell.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert cell: %w", err)
	}
	return nil
}

// GetCell returns the cell for (row, column), or nil when none exists.
func (s *SQLiteStore) GetCell(rowID, columnID string) (*core.Cell, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRow(`
		SELECT id, workspace_id, row_id, column_id, status, value, error_message, updated_at
		FROM cells WHERE row_id = ? AND column_id = ?`, rowID, columnID)

	cell, err := scanCell(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cell: %w", err)
	}
	return cell, nil
}

// ListCells returns every cell in a workspace in one query.
func (s *SQLiteStore) ListCells(workspaceID string) ([]*core.Cell, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(`
		SELECT id, workspace_id, row_id, column_id, status, value, error_message, updated_at
		FROM cells WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cells: %w", err)
	}
	defer rows.Close()

	var out []*core.Cell
	for rows.Next() {
		cell, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cell)
	}
	return out, rows.Err()
}

// DeleteCellsForColumn removes every cell of a column, used when a
// column's config changes incompatibly.
func (s *SQLiteStore) DeleteCellsForColumn(columnID string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(`DELETE FROM cells WHERE column_id = ?`, columnID)
	if err != nil {
		return fmt.Errorf("failed to delete cells: %w", err)
	}
	return nil
}

func scanCell(r rowScanner) (*core.Cell, error) {
	var cell core.Cell
	var status string
	var value sql.NullString
	if err := r.Scan(&cell.ID, &cell.WorkspaceID, &cell.RowID, &cell.ColumnID, &status, &value, &cell.ErrorMessage, &cell.UpdatedAt); err != nil {
		return nil, err
	}
	cell.Status = core.CellStatus(status)
	if value.Valid && value.String != "" {
		var v core.CellValue
		if err := json.Unmarshal([]byte(value.String), &v); err != nil {
			return nil, fmt.Errorf("failed to decode cell value: %w", err)
		}
		cell.Value = &v
	}
	return &cell, nil
}

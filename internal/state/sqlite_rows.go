package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// CreateRow inserts a single row.
func (s *SQLiteStore) CreateRow(row *core.Row) error {
	return s.CreateRows([]*core.Row{row})
}

// CreateRows inserts rows in one transaction, assigning positions after
// the current last row when unset.
func (s *SQLiteStore) CreateRows(rows []*core.Row) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var max int
	err = tx.QueryRow(`SELECT COALESCE(MAX(position), 0) FROM rows WHERE workspace_id = ?`,
		rows[0].WorkspaceID).Scan(&max)
	if err != nil {
		return fmt.Errorf("failed to find row position: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO rows (id, workspace_id, position, source_data, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == "" {
			row.ID = generateID()
		}
		if row.Position == 0 {
			max++
			row.Position = max
		}
		row.CreatedAt = now

		data, err := json.Marshal(row.SourceData)
		if err != nil {
			return fmt.Errorf("failed to encode source data: %w", err)
		}
		if _, err := stmt.Exec(row.ID, row.WorkspaceID, row.Position, string(data), now); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}
	return tx.Commit()
}

// ListRows returns a workspace's rows ordered by position.
func (s *SQLiteStore) ListRows(workspaceID string) ([]*core.Row, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(`
		SELECT id, workspace_id, position, source_data, created_at
		FROM rows WHERE workspace_id = ? ORDER BY position`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}
	defer rows.Close()

	var out []*core.Row
	for rows.Next() {
		var r core.Row
		var data string
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Position, &data, &r.CreatedAt); err != nil {
			return nil, err
		}
		if data != "" {
			if err := json.Unmarshal([]byte(data), &r.SourceData); err != nil {
				return nil, fmt.Errorf("failed to decode source data: %w", err)
			}
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// CountRows returns the number of rows in a workspace.
func (s *SQLiteStore) CountRows(workspaceID string) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM rows WHERE workspace_id = ?`, workspaceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// DeleteRow removes a row; its cells cascade.
func (s *SQLiteStore) DeleteRow(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(`DELETE FROM rows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}
	return nil
}

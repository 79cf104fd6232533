package state

import (
	"fmt"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// SaveFilters replaces a workspace's filter list.
func (s *SQLiteStore) SaveFilters(workspaceID string, filters []*core.Filter) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM filters WHERE workspace_id = ?`, workspaceID); err != nil {
		return fmt.Errorf("failed to clear filters: %w", err)
	}
	for i, f := range filters {
		if f.ID == "" {
			f.ID = generateID()
		}
		f.WorkspaceID = workspaceID
		f.Position = i
		_, err := tx.Exec(`
			INSERT INTO filters (id, workspace_id, column_id, operator, value, value_to, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.WorkspaceID, f.ColumnID, string(f.Operator), f.Value, f.ValueTo, f.Position)
		if err != nil {
			return fmt.Errorf("failed to save filter: %w", err)
		}
	}
	return tx.Commit()
}

// ListFilters returns a workspace's filters in order.
func (s *SQLiteStore) ListFilters(workspaceID string) ([]*core.Filter, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(`
		SELECT id, workspace_id, column_id, operator, value, value_to, position
		FROM filters WHERE workspace_id = ? ORDER BY position`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list filters: %w", err)
	}
	defer rows.Close()

	var out []*core.Filter
	for rows.Next() {
		var f core.Filter
		var op string
		if err := rows.Scan(&f.ID, &f.WorkspaceID, &f.ColumnID, &op, &f.Value, &f.ValueTo, &f.Position); err != nil {
			return nil, err
		}
		f.Operator = core.FilterOperator(op)
		out = append(out, &f)
	}
	return out, rows.Err()
}

// SaveSorts replaces a workspace's ordered sort list.
func (s *SQLiteStore) SaveSorts(workspaceID string, sorts []*core.Sort) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sorts WHERE workspace_id = ?`, workspaceID); err != nil {
		return fmt.Errorf("failed to clear sorts: %w", err)
	}
	for i, srt := range sorts {
		if srt.ID == "" {
			srt.ID = generateID()
		}
		srt.WorkspaceID = workspaceID
		srt.Position = i
		_, err := tx.Exec(`
			INSERT INTO sorts (id, workspace_id, column_id, direction, position)
			VALUES (?, ?, ?, ?, ?)`,
			srt.ID, srt.WorkspaceID, srt.ColumnID, string(srt.Direction), srt.Position)
		if err != nil {
			return fmt.Errorf("failed to save sort: %w", err)
		}
	}
	return tx.Commit()
}

// ListSorts returns a workspace's sort keys in priority order.
func (s *SQLiteStore) ListSorts(workspaceID string) ([]*core.Sort, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(`
		SELECT id, workspace_id, column_id, direction, position
		FROM sorts WHERE workspace_id = ? ORDER BY position`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sorts: %w", err)
	}
	defer rows.Close()

	var out []*core.Sort
	for rows.Next() {
		var srt core.Sort
		var dir string
		if err := rows.Scan(&srt.ID, &srt.WorkspaceID, &srt.ColumnID, &dir, &srt.Position); err != nil {
			return nil, err
		}
		srt.Direction = core.SortDirection(dir)
		out = append(out, &srt)
	}
	return out, rows.Err()
}

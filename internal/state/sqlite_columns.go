package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// CreateColumn inserts a column. A zero position places it after the
// current last column; a zero width gets the default.
func (s *SQLiteStore) CreateColumn(col *core.Column) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if col.ID == "" {
		col.ID = generateID()
	}
	if col.Width == 0 {
		col.Width = 180
	}
	if col.Position == 0 {
		var max int
		err := s.db.QueryRow(`SELECT COALESCE(MAX(position), 0) FROM columns WHERE workspace_id = ?`,
			col.WorkspaceID).Scan(&max)
		if err != nil {
			return fmt.Errorf("failed to find column position: %w", err)
		}
		col.Position = max + 1
	}

	cfg, err := json.Marshal(col.Config)
	if err != nil {
		return fmt.Errorf("failed to encode column config: %w", err)
	}

	now := time.Now().UTC()
	col.CreatedAt = now
	col.UpdatedAt = now
	_, err = s.db.Exec(`
		INSERT INTO columns (id, workspace_id, name, type, position, width, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		col.ID, col.WorkspaceID, col.Name, string(col.Type), col.Position, col.Width, string(cfg), now, now)
	if err != nil {
		return fmt.Errorf("failed to create column: %w", err)
	}
	return nil
}

// GetColumn returns a column by ID, or nil when it does not exist.
func (s *SQLiteStore) GetColumn(id string) (*core.Column, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRow(`
		SELECT id, workspace_id, name, type, position, width, config, created_at, updated_at
		FROM columns WHERE id = ?`, id)

	col, err := scanColumn(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get column: %w", err)
	}
	return col, nil
}

// ListColumns returns a workspace's columns ordered by position.
func (s *SQLiteStore) ListColumns(workspaceID string) ([]*core.Column, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(`
		SELECT id, workspace_id, name, type, position, width, config, created_at, updated_at
		FROM columns WHERE workspace_id = ? ORDER BY position`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer rows.Close()

	var out []*core.Column
	for rows.Next() {
		col, err := scanColumn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, rows.Err()
}

// RenameColumn updates the column name.
func (s *SQLiteStore) RenameColumn(id, name string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(`UPDATE columns SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to rename column: %w", err)
	}
	return nil
}

// UpdateColumnConfig replaces the column's type-specific config.
func (s *SQLiteStore) UpdateColumnConfig(id string, config core.ColumnConfig) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	cfg, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode column config: %w", err)
	}
	_, err = s.db.Exec(`UPDATE columns SET config = ?, updated_at = ? WHERE id = ?`,
		string(cfg), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update column config: %w", err)
	}
	return nil
}

// SaveColumnWidth persists a resize.
func (s *SQLiteStore) SaveColumnWidth(id string, width int) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(`UPDATE columns SET width = ?, updated_at = ? WHERE id = ?`,
		width, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to save column width: %w", err)
	}
	return nil
}

// DeleteColumn removes a column; its cells cascade.
func (s *SQLiteStore) DeleteColumn(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(`DELETE FROM columns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete column: %w", err)
	}
	return nil
}

func scanColumn(r rowScanner) (*core.Column, error) {
	var col core.Column
	var typ, cfg string
	if err := r.Scan(&col.ID, &col.WorkspaceID, &col.Name, &typ, &col.Position, &col.Width, &cfg, &col.CreatedAt, &col.UpdatedAt); err != nil {
		return nil, err
	}
	col.Type = core.ColumnType(typ)
	if cfg != "" {
		if err := json.Unmarshal([]byte(cfg), &col.Config); err != nil {
			return nil, fmt.Errorf("failed to decode column config: %w", err)
		}
	}
	return &col, nil
}

package state

import (
	"fmt"
	"time"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// CreateWorkspace inserts a new workspace.
func (s *SQLiteStore) CreateWorkspace(name string) (*core.Workspace, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	now := time.Now().UTC()
	ws := &core.Workspace{
		ID:        generateID(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(`
		INSERT INTO workspaces (id, name, nest_id, auto_run, sandbox, created_at, updated_at)
		VALUES (?, ?, '', 0, 0, ?, ?)`,
		ws.ID, ws.Name, ws.CreatedAt, ws.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return ws, nil
}

// GetWorkspace returns a workspace by ID, or nil when it does not exist.
func (s *SQLiteStore) GetWorkspace(id string) (*core.Workspace, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRow(`
		SELECT id, name, nest_id, auto_run, sandbox, created_at, updated_at
		FROM workspaces WHERE id = ?`, id)

	ws, err := scanWorkspace(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

// ListWorkspaces returns all workspaces, most recently updated first.
func (s *SQLiteStore) ListWorkspaces() ([]*core.Workspace, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(`
		SELECT id, name, nest_id, auto_run, sandbox, created_at, updated_at
		FROM workspaces ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var out []*core.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// RenameWorkspace updates the workspace name.
func (s *SQLiteStore) RenameWorkspace(id, name string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(`UPDATE workspaces SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to rename workspace: %w", err)
	}
	return nil
}

// UpdateWorkspaceSettings updates the auto-run flag, sandbox flag, and
// linked nest.
func (s *SQLiteStore) UpdateWorkspaceSettings(id string, autoRun, sandbox bool, nestID string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(`
		UPDATE workspaces SET auto_run = ?, sandbox = ?, nest_id = ?, updated_at = ?
		WHERE id = ?`,
		boolToInt(autoRun), boolToInt(sandbox), nestID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update workspace settings: %w", err)
	}
	return nil
}

// DeleteWorkspace removes a workspace; rows, columns, cells, view state,
// and transcript cascade.
func (s *SQLiteStore) DeleteWorkspace(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(`DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(r rowScanner) (*core.Workspace, error) {
	var ws core.Workspace
	var autoRun, sandbox int
	if err := r.Scan(&ws.ID, &ws.Name, &ws.NestID, &autoRun, &sandbox, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
		return nil, err
	}
	ws.AutoRun = autoRun != 0
	ws.Sandbox = sandbox != 0
	return &ws, nil
}

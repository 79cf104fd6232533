package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// CreateRun inserts a run in the running state.
func (s *SQLiteStore) CreateRun(run *core.Run) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if run.ID == "" {
		run.ID = generateID()
	}
	if run.Status == "" {
		run.Status = core.RunRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, workspace_id, column_id, kind, sandbox, status, total, succeeded, failed, started_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkspaceID, run.ColumnID, string(run.Kind), boolToInt(run.Sandbox),
		string(run.Status), run.Total, run.Succeeded, run.Failed, run.StartedAt, run.Error)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun returns a run by ID, or nil when it does not exist.
func (s *SQLiteStore) GetRun(id string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRow(`
		SELECT id, workspace_id, column_id, kind, sandbox, status, total, succeeded, failed, started_at, completed_at, error
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns a workspace's most recent runs.
func (s *SQLiteStore) ListRuns(workspaceID string, limit int) ([]*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, workspace_id, column_id, kind, sandbox, status, total, succeeded, failed, started_at, completed_at, error
		FROM runs WHERE workspace_id = ? ORDER BY started_at DESC LIMIT ?`, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// CompleteRun finalizes a run with its outcome counters.
func (s *SQLiteStore) CompleteRun(id string, status core.RunStatus, succeeded, failed int, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(`
		UPDATE runs SET status = ?, succeeded = ?, failed = ?, completed_at = ?, error = ?
		WHERE id = ?`,
		string(status), succeeded, failed, time.Now().UTC(), errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// RecordCellRun inserts a per-cell run record.
func (s *SQLiteStore) RecordCellRun(cr *core.CellRun) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if cr.ID == "" {
		cr.ID = generateID()
	}
	if cr.Status == "" {
		cr.Status = core.CellRunPending
	}
	if cr.StartedAt.IsZero() {
		cr.StartedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO cell_runs (id, run_id, row_id, column_id, status, attempts, source_used, execution_ms, started_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cr.ID, cr.RunID, cr.RowID, cr.ColumnID, string(cr.Status),
		cr.Attempts, cr.SourceUsed, cr.ExecutionMS, cr.StartedAt, cr.Error)
	if err != nil {
		return fmt.Errorf("failed to record cell run: %w", err)
	}
	return nil
}

// UpdateCellRun finalizes a per-cell run record.
func (s *SQLiteStore) UpdateCellRun(id string, status core.CellRunStatus, attempts int, sourceUsed string, execMS int64, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(`
		UPDATE cell_runs SET status = ?, attempts = ?, source_used = ?, execution_ms = ?, completed_at = ?, error = ?
		WHERE id = ?`,
		string(status), attempts, sourceUsed, execMS, time.Now().UTC(), errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update cell run: %w", err)
	}
	return nil
}

// ListCellRuns returns the per-cell records for a run.
func (s *SQLiteStore) ListCellRuns(runID string) ([]*core.CellRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(`
		SELECT id, run_id, row_id, column_id, status, attempts, source_used, execution_ms, started_at, completed_at, error
		FROM cell_runs WHERE run_id = ? ORDER BY started_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cell runs: %w", err)
	}
	defer rows.Close()

	var out []*core.CellRun
	for rows.Next() {
		var cr core.CellRun
		var status string
		var completed sql.NullTime
		if err := rows.Scan(&cr.ID, &cr.RunID, &cr.RowID, &cr.ColumnID, &status, &cr.Attempts, &cr.SourceUsed, &cr.ExecutionMS, &cr.StartedAt, &completed, &cr.Error); err != nil {
			return nil, err
		}
		cr.Status = core.CellRunStatus(status)
		if completed.Valid {
			cr.CompletedAt = &completed.Time
		}
		out = append(out, &cr)
	}
	return out, rows.Err()
}

func scanRun(r rowScanner) (*core.Run, error) {
	var run core.Run
	var kind, status string
	var sandbox int
	var completed sql.NullTime
	if err := r.Scan(&run.ID, &run.WorkspaceID, &run.ColumnID, &kind, &sandbox, &status,
		&run.Total, &run.Succeeded, &run.Failed, &run.StartedAt, &completed, &run.Error); err != nil {
		return nil, err
	}
	run.Kind = core.RunKind(kind)
	run.Status = core.RunStatus(status)
	run.Sandbox = sandbox != 0
	if completed.Valid {
		run.CompletedAt = &completed.Time
	}
	return &run, nil
}

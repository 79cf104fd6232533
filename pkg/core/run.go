package core

import "time"

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run status constants.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// RunKind distinguishes how a run was started.
type RunKind string

// Run kinds.
const (
	RunManual RunKind = "manual"
	RunAuto   RunKind = "auto"
	RunAll    RunKind = "all"
)

// Run records one enrichment execution over a column (or all columns).
type Run struct {
	ID          string
	WorkspaceID string
	// ColumnID is empty for Run All.
	ColumnID    string
	Kind        RunKind
	Sandbox     bool
	Status      RunStatus
	Total       int
	Succeeded   int
	Failed      int
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// CellRunStatus is the lifecycle state of a single cell within a run.
type CellRunStatus string

// Cell run status constants.
const (
	CellRunPending CellRunStatus = "pending"
	CellRunRunning CellRunStatus = "running"
	CellRunSuccess CellRunStatus = "success"
	CellRunFailed  CellRunStatus = "failed"
	CellRunSkipped CellRunStatus = "skipped"
)

// CellRun records the outcome of one cell within a run.
type CellRun struct {
	ID       string
	RunID    string
	RowID    string
	ColumnID string
	Status   CellRunStatus
	// Attempts counts provider calls, including waterfall fallbacks
	// and rate-limit retries.
	Attempts int
	// SourceUsed is the provider that produced the value (waterfall).
	SourceUsed  string
	ExecutionMS int64
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

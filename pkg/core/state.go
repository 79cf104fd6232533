package core

// Store defines the interface for state management operations.
// Implemented by internal/state.SQLiteStore.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Workspace operations
	CreateWorkspace(name string) (*Workspace, error)
	GetWorkspace(id string) (*Workspace, error)
	ListWorkspaces() ([]*Workspace, error)
	RenameWorkspace(id, name string) error
	UpdateWorkspaceSettings(id string, autoRun, sandbox bool, nestID string) error
	DeleteWorkspace(id string) error

	// Column operations
	CreateColumn(col *Column) error
	GetColumn(id string) (*Column, error)
	ListColumns(workspaceID string) ([]*Column, error)
	RenameColumn(id, name string) error
	UpdateColumnConfig(id string, config ColumnConfig) error
	SaveColumnWidth(id string, width int) error
	DeleteColumn(id string) error

	// Row operations
	CreateRow(row *Row) error
	CreateRows(rows []*Row) error
	ListRows(workspaceID string) ([]*Row, error)
	CountRows(workspaceID string) (int, error)
	DeleteRow(id string) error

	// Cell operations
	UpsertCell(cell *Cell) error
	GetCell(rowID, columnID string) (*Cell, error)
	ListCells(workspaceID string) ([]*Cell, error)
	DeleteCellsForColumn(columnID string) error

	// Filter and sort operations
	SaveFilters(workspaceID string, filters []*Filter) error
	ListFilters(workspaceID string) ([]*Filter, error)
	SaveSorts(workspaceID string, sorts []*Sort) error
	ListSorts(workspaceID string) ([]*Sort, error)

	// Run operations
	CreateRun(run *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(workspaceID string, limit int) ([]*Run, error)
	CompleteRun(id string, status RunStatus, succeeded, failed int, errMsg string) error

	// Cell run operations
	RecordCellRun(cr *CellRun) error
	UpdateCellRun(id string, status CellRunStatus, attempts int, sourceUsed string, execMS int64, errMsg string) error
	ListCellRuns(runID string) ([]*CellRun, error)

	// Chat transcript operations
	AppendChatMessage(msg *ChatMessage) error
	ListChatMessages(workspaceID string) ([]*ChatMessage, error)
}

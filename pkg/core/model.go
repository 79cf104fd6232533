package core

import "time"

// ColumnType represents how a column's cells get their values.
type ColumnType string

// Column type constants.
const (
	// ColumnField reads from a cell override or the row's source data.
	ColumnField ColumnType = "field"
	// ColumnEnrichment calls a single named enrichment provider.
	ColumnEnrichment ColumnType = "enrichment"
	// ColumnAI calls a chat completion with a templated prompt.
	ColumnAI ColumnType = "ai"
	// ColumnFormula evaluates a spreadsheet-style expression per row.
	ColumnFormula ColumnType = "formula"
	// ColumnWaterfall tries multiple enrichment sources in priority order.
	ColumnWaterfall ColumnType = "waterfall"
	// ColumnHTTP calls an arbitrary HTTP endpoint per row.
	ColumnHTTP ColumnType = "http"
	// ColumnMerge concatenates the values of other columns.
	ColumnMerge ColumnType = "merge"
)

// Enrichable reports whether cells of this column type are populated by a
// runner (as opposed to computed on read or edited directly).
func (t ColumnType) Enrichable() bool {
	switch t {
	case ColumnEnrichment, ColumnAI, ColumnWaterfall, ColumnHTTP:
		return true
	}
	return false
}

// Computed reports whether the column's display value is always derived
// from sibling cells and never persisted as the source of truth.
func (t ColumnType) Computed() bool {
	return t == ColumnFormula || t == ColumnMerge
}

// DataType drives display formatting for field columns.
type DataType string

// Data type constants.
const (
	DataText     DataType = "text"
	DataNumber   DataType = "number"
	DataCurrency DataType = "currency"
	DataDate     DataType = "date"
	DataURL      DataType = "url"
	DataEmail    DataType = "email"
	DataCheckbox DataType = "checkbox"
	DataSelect   DataType = "select"
)

// Workspace is a named enrichment project containing columns, rows, and cells.
type Workspace struct {
	ID string
	// Name is the user-visible workspace name.
	Name string
	// NestID links an optional external record source ("nest").
	NestID string
	// AutoRun enables the background change detector for this workspace.
	AutoRun bool
	// Sandbox enables mock enrichment for this workspace.
	Sandbox   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Column is an ordered, typed column in a workspace.
type Column struct {
	ID          string
	WorkspaceID string
	// Name must be unique within a workspace; formulas and prompts
	// reference columns by name.
	Name string
	Type ColumnType
	// Position is unique within a workspace and determines rendering
	// order and Run All order.
	Position int
	// Width is the rendered pixel width, persisted on resize.
	Width     int
	Config    ColumnConfig
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ColumnConfig carries the type-specific settings of a column. Only the
// fields relevant to the column's type are populated.
type ColumnConfig struct {
	// Field columns
	SourceField  string   `json:"source_field,omitempty"`
	DataType     DataType `json:"data_type,omitempty"`
	Decimals     *int     `json:"decimals,omitempty"`
	ThousandsSep bool     `json:"thousands_sep,omitempty"`
	CurrencyCode string   `json:"currency_code,omitempty"`
	// SymbolPosition is "before" or "after"; empty means before.
	SymbolPosition string   `json:"symbol_position,omitempty"`
	DateFormat     string   `json:"date_format,omitempty"`
	Options        []string `json:"options,omitempty"`

	// Enrichment columns
	Provider      string `json:"provider,omitempty"`
	InputColumnID string `json:"input_column_id,omitempty"`
	OutputField   string `json:"output_field,omitempty"`

	// AI columns
	Prompt       string  `json:"prompt,omitempty"`
	Model        string  `json:"model,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	OutputFormat string  `json:"output_format,omitempty"`
	OutputPath   string  `json:"output_path,omitempty"`
	BatchSize    int     `json:"batch_size,omitempty"`

	// Waterfall columns
	Sources       []WaterfallSource `json:"sources,omitempty"`
	StopOnSuccess *bool             `json:"stop_on_success,omitempty"`

	// HTTP columns
	Method    string            `json:"method,omitempty"`
	URL       string            `json:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	AuthType  string            `json:"auth_type,omitempty"`
	AuthToken string            `json:"auth_token,omitempty"`
	AuthUser  string            `json:"auth_user,omitempty"`
	AuthPass  string            `json:"auth_pass,omitempty"`

	// Formula columns
	Expression string `json:"expression,omitempty"`

	// Merge columns
	MergeColumnIDs []string `json:"merge_column_ids,omitempty"`
	Separator      string   `json:"separator,omitempty"`
	// EmptyPolicy is "skip", "include", or "placeholder".
	EmptyPolicy string `json:"empty_policy,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	// OutputShape is "plain" or "bulleted".
	OutputShape string `json:"output_shape,omitempty"`
}

// WaterfallSource is one priority-ordered enrichment source of a
// waterfall column.
type WaterfallSource struct {
	// Provider is the wire name of the enrichment capability.
	Provider string `json:"provider"`
	// InputColumnID declares which column feeds this source; the source
	// is skipped for rows where it is empty.
	InputColumnID string `json:"input_column_id"`
}

// StopOnFirstSuccess resolves the waterfall stop policy (default true).
func (c ColumnConfig) StopOnFirstSuccess() bool {
	if c.StopOnSuccess == nil {
		return true
	}
	return *c.StopOnSuccess
}

// Row is an ordered row in a workspace. SourceData is the opaque imported
// record used as a fallback value source for field columns.
type Row struct {
	ID          string
	WorkspaceID string
	Position    int
	SourceData  map[string]any
	CreatedAt   time.Time
}

// FilterOperator identifies a filter comparison.
type FilterOperator string

// Filter operator constants.
const (
	// Text operators
	OpContains   FilterOperator = "contains"
	OpEquals     FilterOperator = "equals"
	OpStartsWith FilterOperator = "starts_with"
	OpEndsWith   FilterOperator = "ends_with"
	OpIsEmpty    FilterOperator = "is_empty"
	OpIsNotEmpty FilterOperator = "is_not_empty"

	// Numeric operators
	OpEq      FilterOperator = "eq"
	OpGt      FilterOperator = "gt"
	OpLt      FilterOperator = "lt"
	OpBetween FilterOperator = "between"

	// Boolean operators
	OpIsTrue  FilterOperator = "is_true"
	OpIsFalse FilterOperator = "is_false"

	// Date operators
	OpDateBefore  FilterOperator = "date_before"
	OpDateAfter   FilterOperator = "date_after"
	OpDateBetween FilterOperator = "date_between"
)

// Filter is one column/value predicate; multiple filters AND together.
type Filter struct {
	ID          string
	WorkspaceID string
	ColumnID    string
	Operator    FilterOperator
	Value       string
	// ValueTo is the upper bound for between operators.
	ValueTo  string
	Position int
}

// SortDirection orders a sort key.
type SortDirection string

// Sort directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sort is one entry of a workspace's ordered sort list; earlier entries
// have higher priority and later entries break ties.
type Sort struct {
	ID          string
	WorkspaceID string
	ColumnID    string
	Direction   SortDirection
	Position    int
}

// ChatMessage is one entry of a workspace's persisted chat transcript.
type ChatMessage struct {
	ID          string
	WorkspaceID string
	// Role is "user", "assistant", or "system".
	Role      string
	Content   string
	CreatedAt time.Time
}

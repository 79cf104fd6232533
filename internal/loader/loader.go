// Package loader parses declarative workspace definition files and
// applies them to a store. A definition describes the workspace
// settings and its columns; applying one is idempotent, so a
// definition file can live next to the project and be re-applied as it
// evolves.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// Definition is a parsed workspace definition file.
type Definition struct {
	// Workspace is the target workspace name. The workspace is created
	// when no workspace with this name exists.
	Workspace string      `yaml:"workspace"`
	AutoRun   bool        `yaml:"auto_run"`
	Sandbox   bool        `yaml:"sandbox"`
	NestID    string      `yaml:"nest_id"`
	Columns   []ColumnDef `yaml:"columns"`
}

// ColumnDef is one column entry of a definition. Input references use
// column names; Apply resolves them to IDs against the workspace.
type ColumnDef struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Field columns
	SourceField    string   `yaml:"source_field"`
	DataType       string   `yaml:"data_type"`
	Decimals       *int     `yaml:"decimals"`
	ThousandsSep   bool     `yaml:"thousands_sep"`
	CurrencyCode   string   `yaml:"currency_code"`
	SymbolPosition string   `yaml:"symbol_position"`
	DateFormat     string   `yaml:"date_format"`
	Options        []string `yaml:"options"`

	// Enrichment columns
	Provider    string `yaml:"provider"`
	InputColumn string `yaml:"input_column"`
	OutputField string `yaml:"output_field"`

	// AI columns
	Prompt       string  `yaml:"prompt"`
	Model        string  `yaml:"model"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	OutputFormat string  `yaml:"output_format"`
	OutputPath   string  `yaml:"output_path"`
	BatchSize    int     `yaml:"batch_size"`

	// Waterfall columns
	Sources       []SourceDef `yaml:"sources"`
	StopOnSuccess *bool       `yaml:"stop_on_success"`

	// HTTP columns
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
	Auth    *AuthDef          `yaml:"auth"`

	// Formula columns
	Expression string `yaml:"expression"`

	// Merge columns
	MergeColumns []string `yaml:"merge_columns"`
	Separator    string   `yaml:"separator"`
	EmptyPolicy  string   `yaml:"empty_policy"`
	Placeholder  string   `yaml:"placeholder"`
	OutputShape  string   `yaml:"output_shape"`
}

// SourceDef is one waterfall source entry.
type SourceDef struct {
	Provider    string `yaml:"provider"`
	InputColumn string `yaml:"input_column"`
}

// AuthDef configures HTTP column authentication.
type AuthDef struct {
	Type  string `yaml:"type"`
	Token string `yaml:"token"`
	User  string `yaml:"user"`
	Pass  string `yaml:"pass"`
}

// ApplyResult reports what Apply changed.
type ApplyResult struct {
	Workspace *core.Workspace
	// WorkspaceCreated is true when the workspace did not exist before.
	WorkspaceCreated bool
	Created          []*core.Column
	Updated          []*core.Column
}

// Parse reads a definition from r. Unknown fields are rejected so
// typos in definition files surface as errors instead of silently
// dropped settings.
func Parse(r io.Reader) (*Definition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}

	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("invalid workspace definition: %w", err)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

var validTypes = map[string]core.ColumnType{
	"field":      core.ColumnField,
	"enrichment": core.ColumnEnrichment,
	"ai":         core.ColumnAI,
	"formula":    core.ColumnFormula,
	"waterfall":  core.ColumnWaterfall,
	"http":       core.ColumnHTTP,
	"merge":      core.ColumnMerge,
}

// Validate checks structural constraints before anything touches the
// store.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Workspace) == "" {
		return fmt.Errorf("workspace name is required")
	}
	seen := make(map[string]bool, len(d.Columns))
	for i, col := range d.Columns {
		if strings.TrimSpace(col.Name) == "" {
			return fmt.Errorf("column %d: name is required", i+1)
		}
		if seen[col.Name] {
			return fmt.Errorf("column %q: duplicate name", col.Name)
		}
		seen[col.Name] = true

		ct, ok := validTypes[col.Type]
		if !ok {
			return fmt.Errorf("column %q: unknown type %q", col.Name, col.Type)
		}
		switch ct {
		case core.ColumnEnrichment:
			if col.Provider == "" {
				return fmt.Errorf("column %q: enrichment columns need a provider", col.Name)
			}
		case core.ColumnAI:
			if strings.TrimSpace(col.Prompt) == "" {
				return fmt.Errorf("column %q: ai columns need a prompt", col.Name)
			}
		case core.ColumnFormula:
			if strings.TrimSpace(col.Expression) == "" {
				return fmt.Errorf("column %q: formula columns need an expression", col.Name)
			}
		case core.ColumnWaterfall:
			if len(col.Sources) == 0 {
				return fmt.Errorf("column %q: waterfall columns need at least one source", col.Name)
			}
			for _, src := range col.Sources {
				if src.Provider == "" {
					return fmt.Errorf("column %q: waterfall source missing provider", col.Name)
				}
			}
		case core.ColumnHTTP:
			if strings.TrimSpace(col.URL) == "" {
				return fmt.Errorf("column %q: http columns need a url", col.Name)
			}
		case core.ColumnMerge:
			if len(col.MergeColumns) == 0 {
				return fmt.Errorf("column %q: merge columns need merge_columns", col.Name)
			}
		}
	}
	return nil
}

// Apply creates or updates the definition's workspace and columns.
// Existing columns are matched by name: their config is replaced, but
// position, width, cells, and extra columns not in the definition are
// left alone. Input column references may name earlier definition
// entries or columns that already exist in the workspace.
func Apply(store core.Store, def *Definition) (*ApplyResult, error) {
	res := &ApplyResult{}

	workspaces, err := store.ListWorkspaces()
	if err != nil {
		return nil, err
	}
	for _, ws := range workspaces {
		if ws.Name == def.Workspace {
			res.Workspace = ws
			break
		}
	}
	if res.Workspace == nil {
		ws, err := store.CreateWorkspace(def.Workspace)
		if err != nil {
			return nil, err
		}
		res.Workspace = ws
		res.WorkspaceCreated = true
	}

	ws := res.Workspace
	if ws.AutoRun != def.AutoRun || ws.Sandbox != def.Sandbox || ws.NestID != def.NestID {
		if err := store.UpdateWorkspaceSettings(ws.ID, def.AutoRun, def.Sandbox, def.NestID); err != nil {
			return nil, err
		}
		ws.AutoRun = def.AutoRun
		ws.Sandbox = def.Sandbox
		ws.NestID = def.NestID
	}

	existing, err := store.ListColumns(ws.ID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*core.Column, len(existing))
	for _, col := range existing {
		byName[col.Name] = col
	}

	for _, cd := range def.Columns {
		cfg, err := cd.config(byName)
		if err != nil {
			return nil, err
		}
		if cur, ok := byName[cd.Name]; ok {
			if cur.Type != validTypes[cd.Type] {
				return nil, fmt.Errorf("column %q: cannot change type from %s to %s", cd.Name, cur.Type, cd.Type)
			}
			if err := store.UpdateColumnConfig(cur.ID, cfg); err != nil {
				return nil, err
			}
			cur.Config = cfg
			res.Updated = append(res.Updated, cur)
			continue
		}

		col := &core.Column{
			WorkspaceID: ws.ID,
			Name:        cd.Name,
			Type:        validTypes[cd.Type],
			Config:      cfg,
		}
		if err := store.CreateColumn(col); err != nil {
			return nil, err
		}
		byName[col.Name] = col
		res.Created = append(res.Created, col)
	}

	return res, nil
}

// config builds the stored column config, resolving input column names
// to IDs via byName.
func (cd *ColumnDef) config(byName map[string]*core.Column) (core.ColumnConfig, error) {
	cfg := core.ColumnConfig{
		SourceField:    cd.SourceField,
		DataType:       core.DataType(cd.DataType),
		Decimals:       cd.Decimals,
		ThousandsSep:   cd.ThousandsSep,
		CurrencyCode:   cd.CurrencyCode,
		SymbolPosition: cd.SymbolPosition,
		DateFormat:     cd.DateFormat,
		Options:        cd.Options,
		Provider:       cd.Provider,
		OutputField:    cd.OutputField,
		Prompt:         cd.Prompt,
		Model:          cd.Model,
		Temperature:    cd.Temperature,
		MaxTokens:      cd.MaxTokens,
		OutputFormat:   cd.OutputFormat,
		OutputPath:     cd.OutputPath,
		BatchSize:      cd.BatchSize,
		StopOnSuccess:  cd.StopOnSuccess,
		Method:         cd.Method,
		URL:            cd.URL,
		Headers:        cd.Headers,
		Body:           cd.Body,
		Expression:     cd.Expression,
		Separator:      cd.Separator,
		EmptyPolicy:    cd.EmptyPolicy,
		Placeholder:    cd.Placeholder,
		OutputShape:    cd.OutputShape,
	}
	if cd.Type == "field" && cfg.SourceField == "" {
		cfg.SourceField = strings.ToLower(cd.Name)
	}

	resolve := func(name string) (string, error) {
		col, ok := byName[name]
		if !ok {
			return "", fmt.Errorf("column %q: input column %q not found (define it earlier in the file or in the workspace)", cd.Name, name)
		}
		return col.ID, nil
	}

	if cd.InputColumn != "" {
		id, err := resolve(cd.InputColumn)
		if err != nil {
			return core.ColumnConfig{}, err
		}
		cfg.InputColumnID = id
	}
	for _, src := range cd.Sources {
		id, err := resolve(src.InputColumn)
		if err != nil {
			return core.ColumnConfig{}, err
		}
		cfg.Sources = append(cfg.Sources, core.WaterfallSource{
			Provider:      src.Provider,
			InputColumnID: id,
		})
	}
	for _, name := range cd.MergeColumns {
		id, err := resolve(name)
		if err != nil {
			return core.ColumnConfig{}, err
		}
		cfg.MergeColumnIDs = append(cfg.MergeColumnIDs, id)
	}
	if cd.Auth != nil {
		cfg.AuthType = cd.Auth.Type
		cfg.AuthToken = cd.Auth.Token
		cfg.AuthUser = cd.Auth.User
		cfg.AuthPass = cd.Auth.Pass
	}
	return cfg, nil
}

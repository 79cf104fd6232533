// Package nest connects a workspace to an external record source: a
// purchasable collection of prospect records living in CSV files,
// Postgres, or DuckDB. Importing a nest creates the default field
// columns and pre-populates rows from the fetched records.
package nest

import (
	"context"
	"fmt"
	"strings"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// Record is one fetched row of an external source.
type Record map[string]any

// Source fetches records from an external nest.
type Source interface {
	// Name identifies the source in logs and workspace settings.
	Name() string
	// Fetch returns up to limit records; limit <= 0 means no limit.
	Fetch(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// defaultColumns are created on first import, in this order. The source
// field is the lowercased record key each column reads.
var defaultColumns = []struct {
	name  string
	field string
	dt    core.DataType
}{
	{"Name", "name", core.DataText},
	{"Email", "email", core.DataEmail},
	{"LinkedIn", "linkedin", core.DataURL},
	{"Title", "title", core.DataText},
	{"Company", "company", core.DataText},
	{"Location", "location", core.DataText},
}

// ImportResult describes one nest import.
type ImportResult struct {
	Source  string
	Columns []*core.Column
	Rows    []*core.Row
}

// Import fetches records from the source into a workspace: the default
// field columns are created when missing, and each record becomes a row
// with the record as its source data (keys lowercased so the default
// source fields match).
func Import(ctx context.Context, store core.Store, workspaceID string, src Source, limit int) (*ImportResult, error) {
	existing, err := store.ListColumns(workspaceID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]bool, len(existing))
	for _, col := range existing {
		byName[col.Name] = true
	}

	res := &ImportResult{Source: src.Name()}
	for _, def := range defaultColumns {
		if byName[def.name] {
			continue
		}
		col := &core.Column{
			WorkspaceID: workspaceID,
			Name:        def.name,
			Type:        core.ColumnField,
			Config:      core.ColumnConfig{SourceField: def.field, DataType: def.dt},
		}
		if err := store.CreateColumn(col); err != nil {
			return nil, fmt.Errorf("failed to create column %q: %w", def.name, err)
		}
		res.Columns = append(res.Columns, col)
	}

	records, err := src.Fetch(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from %s: %w", src.Name(), err)
	}

	for _, rec := range records {
		data := make(map[string]any, len(rec))
		for k, v := range rec {
			data[strings.ToLower(strings.TrimSpace(k))] = v
		}
		res.Rows = append(res.Rows, &core.Row{WorkspaceID: workspaceID, SourceData: data})
	}
	if len(res.Rows) > 0 {
		if err := store.CreateRows(res.Rows); err != nil {
			return nil, fmt.Errorf("failed to create rows: %w", err)
		}
	}
	return res, nil
}

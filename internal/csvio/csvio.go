// Package csvio imports and exports workspace data as RFC 4180 CSV.
// Import turns the header row into field columns and each data row into
// a source_data record; export writes display values and flags the
// filename when sandbox data is present.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// ImportResult describes what an import created.
type ImportResult struct {
	Columns []*core.Column
	Rows    []*core.Row
}

// Import reads CSV into a workspace: each non-empty header cell becomes
// a field column (empty headers are dropped along with their values),
// and each data row becomes a row whose source_data maps header names
// to cell strings.
func Import(r io.Reader, store core.Store, workspaceID string) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV input")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	existing, err := store.ListColumns(workspaceID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]bool, len(existing))
	for _, col := range existing {
		byName[col.Name] = true
	}

	// keep maps header index -> column name for non-empty headers.
	keep := make(map[int]string)
	res := &ImportResult{}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		keep[i] = name
		if byName[name] {
			continue
		}
		col := &core.Column{
			WorkspaceID: workspaceID,
			Name:        name,
			Type:        core.ColumnField,
			Config:      core.ColumnConfig{SourceField: name, DataType: core.DataText},
		}
		if err := store.CreateColumn(col); err != nil {
			return nil, fmt.Errorf("failed to create column %q: %w", name, err)
		}
		byName[name] = true
		res.Columns = append(res.Columns, col)
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("CSV header has no usable column names")
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		data := make(map[string]any, len(keep))
		for i, name := range keep {
			if i < len(record) {
				data[name] = record[i]
			}
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

// ValueFunc computes the exported string for one cell; the engine's
// snapshot display function satisfies it.
type ValueFunc func(row *core.Row, col *core.Column) string

// Export writes the workspace as CSV: one header row of column names in
// position order, then one record per row of display values.
func Export(w io.Writer, columns []*core.Column, rows []*core.Row, value ValueFunc) error {
	writer := csv.NewWriter(w)

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Name
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = value(row, col)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportFilename derives the export filename from the workspace name,
// appending -SANDBOX when sandbox data would be included.
func ExportFilename(workspaceName string, sandboxData bool) string {
	name := strings.TrimSpace(workspaceName)
	if name == "" {
		name = "workspace"
	}
	name = sanitizeFilename(name)
	if sandboxData {
		return name + "-SANDBOX.csv"
	}
	return name + ".csv"
}

func sanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "workspace"
	}
	return b.String()
}

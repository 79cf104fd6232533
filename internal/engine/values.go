package engine

import (
	"github.com/nestgrid-labs/nestgrid/pkg/core"
	"github.com/nestgrid-labs/nestgrid/pkg/format"
	"github.com/nestgrid-labs/nestgrid/pkg/formula"
	"github.com/nestgrid-labs/nestgrid/pkg/jsonpath"
)

// DisplayValue computes the rendered string for one cell: the raw value
// passed through the column's formatting rules.
func (s *Snapshot) DisplayValue(row *core.Row, col *core.Column) string {
	raw := s.RawValue(row, col)
	if col.Type == core.ColumnField {
		return format.Field(raw, col.Config)
	}
	return raw
}

// RawValue computes the unformatted string value for one cell. Formula
// and merge columns are derived from sibling values; columns on a
// reference cycle render an inline error instead.
func (s *Snapshot) RawValue(row *core.Row, col *core.Column) string {
	return s.resolve(row, col, make(map[string]string))
}

// ColumnRawValue is RawValue addressed by column id; unknown ids
// resolve to the empty string.
func (s *Snapshot) ColumnRawValue(row *core.Row, columnID string) string {
	col := s.byID[columnID]
	if col == nil {
		return ""
	}
	return s.RawValue(row, col)
}

// resolve computes a cell value, memoizing per top-level call. The
// dependency graph is acyclic for untainted columns, so the recursion
// through parents terminates.
func (s *Snapshot) resolve(row *core.Row, col *core.Column, memo map[string]string) string {
	if v, ok := memo[col.ID]; ok {
		return v
	}

	var out string
	switch col.Type {
	case core.ColumnFormula, core.ColumnMerge:
		if s.tainted[col.ID] {
			out = formula.ErrorPrefix + "circular reference (" + s.cyclePath + ")"
		} else if col.Type == core.ColumnFormula {
			out = s.resolveFormula(row, col, memo)
		} else {
			out = s.resolveMerge(row, col, memo)
		}
	case core.ColumnField:
		out = s.resolveField(row, col)
	default:
		out = s.resolveEnriched(row, col)
	}

	memo[col.ID] = out
	return out
}

// resolveField prefers the cell override; absent one, it reads the
// configured source field out of the row's imported record.
func (s *Snapshot) resolveField(row *core.Row, col *core.Column) string {
	if v, status := s.Cell(row.ID, col.ID); status == core.CellComplete && v != nil {
		return v.Display()
	}
	field := col.Config.SourceField
	if field == "" {
		field = col.Name
	}
	if r, ok := jsonpath.LookupValue(row.SourceData, field); ok {
		return r.String()
	}
	return ""
}

// resolveEnriched renders a runner-produced cell: scalars directly,
// structured objects through the configured output field or path.
func (s *Snapshot) resolveEnriched(row *core.Row, col *core.Column) string {
	v, status := s.Cell(row.ID, col.ID)
	if v == nil {
		return ""
	}
	if status == core.CellError {
		if c := s.StoredCell(row.ID, col.ID); c != nil && c.ErrorMessage != "" {
			return formula.ErrorPrefix + c.ErrorMessage
		}
	}
	if v.IsScalar() {
		return v.Display()
	}

	path := col.Config.OutputField
	if path == "" {
		path = col.Config.OutputPath
	}
	if path != "" {
		if r, ok := jsonpath.LookupValue(v.Fields, path); ok {
			return r.String()
		}
		return ""
	}
	return v.Display()
}

func (s *Snapshot) resolveFormula(row *core.Row, col *core.Column, memo map[string]string) string {
	values := make(map[string]string)
	for _, name := range formula.References(col.Config.Expression) {
		ref := s.byName[name]
		if ref == nil || ref.ID == col.ID {
			continue
		}
		values[name] = s.resolve(row, ref, memo)
	}
	return formula.Evaluate(col.Config.Expression, values)
}

func (s *Snapshot) resolveMerge(row *core.Row, col *core.Column, memo map[string]string) string {
	values := make([]string, 0, len(col.Config.MergeColumnIDs))
	for _, id := range col.Config.MergeColumnIDs {
		src := s.byID[id]
		if src == nil || src.ID == col.ID {
			continue
		}
		raw := s.resolve(row, src, memo)
		if src.Type == core.ColumnField {
			raw = format.Field(raw, src.Config)
		}
		values = append(values, raw)
	}
	return format.Merge(values, col.Config)
}

// SubstituteRow resolves /ColumnName references in a template against
// one row's raw values.
func (s *Snapshot) SubstituteRow(row *core.Row, template string) string {
	memo := make(map[string]string)
	return formula.Substitute(template, func(name string) (string, bool) {
		col := s.byName[name]
		if col == nil {
			return "", false
		}
		return s.resolve(row, col, memo), true
	})
}

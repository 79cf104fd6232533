package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// CellStatus is the lifecycle state of a cell.
type CellStatus string

// Cell status constants.
const (
	CellEmpty    CellStatus = "empty"
	CellPending  CellStatus = "pending"
	CellComplete CellStatus = "complete"
	CellError    CellStatus = "error"
)

// Cell holds the persisted state for one (row, column) pair.
type Cell struct {
	ID          string
	WorkspaceID string
	RowID       string
	ColumnID    string
	Status      CellStatus
	Value       *CellValue
	// ErrorMessage is set when Status is CellError.
	ErrorMessage string
	UpdatedAt    time.Time
}

// CellKey builds the map key used for in-memory cell lookups.
func CellKey(rowID, columnID string) string {
	return rowID + ":" + columnID
}

// ValueMeta records provenance for runner-produced values.
type ValueMeta struct {
	// SourceUsed is the provider that produced a waterfall value.
	SourceUsed string `json:"source_used,omitempty"`
	// Attempts counts the sources tried before settling.
	Attempts int `json:"attempts,omitempty"`
}

// CellValue is either a wrapped scalar {"v": ...} or a structured object,
// optionally carrying provenance metadata under "_meta".
type CellValue struct {
	// Scalar is the wrapped scalar; nil means the value is structured.
	Scalar any
	// Fields holds the structured object when Scalar is nil.
	Fields map[string]any
	Meta   *ValueMeta
}

// ScalarValue wraps a scalar into the canonical {"v": ...} shape.
func ScalarValue(v any) *CellValue {
	return &CellValue{Scalar: v}
}

// ObjectValue wraps a structured result.
func ObjectValue(fields map[string]any) *CellValue {
	return &CellValue{Fields: fields}
}

// IsScalar reports whether the value is the wrapped-scalar shape.
func (v *CellValue) IsScalar() bool {
	return v != nil && v.Scalar != nil
}

// Display renders the value as a plain string for the grid.
// Structured values render their output field via the caller; with no
// field selection the object is rendered as compact JSON.
func (v *CellValue) Display() string {
	if v == nil {
		return ""
	}
	if v.Scalar != nil {
		switch s := v.Scalar.(type) {
		case string:
			return s
		case float64:
			// JSON numbers decode as float64; render integers bare.
			if s == float64(int64(s)) {
				return fmt.Sprintf("%d", int64(s))
			}
			return fmt.Sprintf("%v", s)
		case bool:
			if s {
				return "true"
			}
			return "false"
		default:
			return fmt.Sprintf("%v", s)
		}
	}
	if len(v.Fields) == 0 {
		return ""
	}
	b, err := json.Marshal(v.Fields)
	if err != nil {
		return ""
	}
	return string(b)
}

// MarshalJSON writes the wire shape: {"v": scalar, "_meta": {...}} for
// scalars, or the structured fields with "_meta" folded in.
func (v *CellValue) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(v.Fields)+2)
	if v.Scalar != nil {
		m["v"] = v.Scalar
	} else {
		for k, val := range v.Fields {
			m[k] = val
		}
	}
	if v.Meta != nil {
		m["_meta"] = v.Meta
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts both the wrapped-scalar and structured shapes.
func (v *CellValue) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if raw, ok := m["_meta"]; ok {
		delete(m, "_meta")
		b, err := json.Marshal(raw)
		if err != nil {
			return err
		}
		var meta ValueMeta
		if err := json.Unmarshal(b, &meta); err != nil {
			return err
		}
		v.Meta = &meta
	}
	if sv, ok := m["v"]; ok && len(m) == 1 {
		v.Scalar = sv
		v.Fields = nil
		return nil
	}
	v.Scalar = nil
	v.Fields = m
	return nil
}

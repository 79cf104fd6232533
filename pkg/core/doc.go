// Package core defines the shared language of the NestGrid system.
//
// This package contains:
//   - Domain entities (Workspace, Column, Row, Cell, Run, etc.)
//   - The Store interface implemented by internal/state
//   - Enumerations (ColumnType, CellStatus, DataType, operators)
//
// The Golden Rule: pkg/core imports ONLY the stdlib.
// All other packages depend on core, not the reverse.
package core

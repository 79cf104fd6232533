package engine

import (
	"context"
	"fmt"

	"github.com/nestgrid-labs/nestgrid/internal/provider"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// runEnrichment calls the column's configured provider with the input
// column's value and stores the full structured result. Which field to
// display is a read-time concern (output_field), so the whole object is
// kept.
func (e *Engine) runEnrichment(ctx context.Context, snap *Snapshot, row *core.Row, col *core.Column) (cellOutcome, error) {
	if e.provider == nil {
		return cellOutcome{}, fmt.Errorf("no enrichment provider configured")
	}
	kind, err := provider.ParseKind(col.Config.Provider)
	if err != nil {
		return cellOutcome{}, err
	}

	input := snap.ColumnRawValue(row, col.Config.InputColumnID)
	fields, err := e.provider.Enrich(ctx, kind, input)
	if err != nil {
		return cellOutcome{attempts: 1}, err
	}
	return cellOutcome{value: core.ObjectValue(fields), attempts: 1}, nil
}

package engine

import (
	"context"
	"fmt"

	"github.com/nestgrid-labs/nestgrid/internal/provider"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// runWaterfall tries the column's sources in priority order. Sources
// whose input column is empty for this row are skipped without counting
// as an attempt; sources that return an empty result count but do not
// win. With stop_on_success (the default) the first non-empty result
// wins; otherwise every source runs and the last success wins.
func (e *Engine) runWaterfall(ctx context.Context, snap *Snapshot, row *core.Row, col *core.Column) (cellOutcome, error) {
	if e.provider == nil {
		return cellOutcome{}, fmt.Errorf("no enrichment provider configured")
	}

	stopOnSuccess := col.Config.StopOnFirstSuccess()
	attempts := 0
	var lastErr error
	var best map[string]any
	var bestSource string

	for _, src := range col.Config.Sources {
		input := snap.ColumnRawValue(row, src.InputColumnID)
		if input == "" {
			continue
		}
		kind, err := provider.ParseKind(src.Provider)
		if err != nil {
			attempts++
			lastErr = err
			continue
		}

		attempts++
		fields, err := e.provider.Enrich(ctx, kind, input)
		if err != nil {
			lastErr = err
			continue
		}
		if len(fields) == 0 {
			continue
		}
		best = fields
		bestSource = src.Provider
		if stopOnSuccess {
			break
		}
	}

	if best != nil {
		v := core.ObjectValue(best)
		v.Meta = &core.ValueMeta{SourceUsed: bestSource, Attempts: attempts}
		return cellOutcome{value: v, sourceUsed: bestSource, attempts: attempts}, nil
	}
	if attempts == 0 {
		return cellOutcome{}, fmt.Errorf("no sources had input")
	}
	if lastErr != nil {
		return cellOutcome{attempts: attempts}, fmt.Errorf("all %d sources failed: %v", attempts, lastErr)
	}
	return cellOutcome{attempts: attempts}, fmt.Errorf("all %d sources returned empty results", attempts)
}

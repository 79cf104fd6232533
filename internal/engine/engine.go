// Package engine orchestrates the grid: it loads workspace snapshots,
// computes cell values, and executes enrichment runs in bounded batches.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/nestgrid-labs/nestgrid/internal/chat"
	"github.com/nestgrid-labs/nestgrid/internal/provider"
	"github.com/nestgrid-labs/nestgrid/internal/sandbox"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// DefaultBatchSize bounds concurrent outbound calls within a run.
const DefaultBatchSize = 5

// ProgressEvent reports run progress; one event per settled cell plus a
// final summary event.
type ProgressEvent struct {
	WorkspaceID string
	RunID       string
	ColumnName  string
	Done        int
	Total       int
	Succeeded   int
	Failed      int
	// Final is set on the last event of a run.
	Final bool
}

// Message renders the event the way the progress toast shows it.
func (p ProgressEvent) Message() string {
	if p.Final {
		return fmt.Sprintf("%s: %d succeeded, %d failed", p.ColumnName, p.Succeeded, p.Failed)
	}
	return fmt.Sprintf("Running %s: %d/%d", p.ColumnName, p.Done, p.Total)
}

// Config holds the engine's collaborators.
type Config struct {
	Store    core.Store
	Provider provider.Provider
	Chat     *chat.Client
	// BatchSize overrides DefaultBatchSize when positive.
	BatchSize int
	// OnProgress receives run progress events. Optional.
	OnProgress func(ProgressEvent)
	// OnChange is invoked after any cell or row mutation. Optional.
	OnChange func(workspaceID string)
	// Logger defaults to a discard logger when nil.
	Logger *slog.Logger
}

// Engine coordinates snapshots, value computation, and runs.
type Engine struct {
	store     core.Store
	provider  provider.Provider
	chat      *chat.Client
	overlay   *sandbox.Overlay
	batchSize int
	progress  func(ProgressEvent)
	onChange  func(string)
	logger    *slog.Logger
}

// New creates an engine from its collaborators.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine requires a store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Engine{
		store:     cfg.Store,
		provider:  cfg.Provider,
		chat:      cfg.Chat,
		overlay:   sandbox.NewOverlay(),
		batchSize: batch,
		progress:  cfg.OnProgress,
		onChange:  cfg.OnChange,
		logger:    logger,
	}, nil
}

// Store returns the underlying state store.
func (e *Engine) Store() core.Store {
	return e.store
}

// Overlay returns the sandbox overlay.
func (e *Engine) Overlay() *sandbox.Overlay {
	return e.overlay
}

func (e *Engine) reportProgress(ev ProgressEvent) {
	if e.progress != nil {
		e.progress(ev)
	}
}

func (e *Engine) notifyChange(workspaceID string) {
	if e.onChange != nil {
		e.onChange(workspaceID)
	}
}

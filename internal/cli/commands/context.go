// Package commands implements the nestgrid subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nestgrid-labs/nestgrid/internal/chat"
	"github.com/nestgrid-labs/nestgrid/internal/cli/output"
	"github.com/nestgrid-labs/nestgrid/internal/config"
	"github.com/nestgrid-labs/nestgrid/internal/engine"
	"github.com/nestgrid-labs/nestgrid/internal/provider"
	"github.com/nestgrid-labs/nestgrid/internal/state"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

type configKey struct{}
type rendererKey struct{}
type loggerKey struct{}

// IntoContext stores the resolved config, renderer, and logger for
// command handlers.
func IntoContext(ctx context.Context, cfg *config.Config, r *output.Renderer, logger *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, configKey{}, cfg)
	ctx = context.WithValue(ctx, rendererKey{}, r)
	ctx = context.WithValue(ctx, loggerKey{}, logger)
	return ctx
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	return cfg
}

// GetRenderer retrieves the renderer from the command context.
func GetRenderer(ctx context.Context) *output.Renderer {
	if r, ok := ctx.Value(rendererKey{}).(*output.Renderer); ok {
		return r
	}
	return output.NewRenderer(os.Stdout, os.Stderr, output.ModeText)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// CommandContext bundles the collaborators a command needs.
type CommandContext struct {
	Config   *config.Config
	Renderer *output.Renderer
	Logger   *slog.Logger
	Store    *state.SQLiteStore
	Engine   *engine.Engine
}

// NewCommandContext opens the state store and builds an engine. The
// returned cleanup closes the store and must be deferred.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	ctx := cmd.Context()
	cfg := GetConfig(ctx)
	r := GetRenderer(ctx)
	logger := GetLogger(ctx)

	if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" && cfg.StatePath != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStore()
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, nil, err
	}

	var prov provider.Provider
	if cfg.Enrich.BaseURL != "" {
		prov = provider.NewHTTPProvider(cfg.Enrich.BaseURL, cfg.Enrich.APIKey, logger)
	}
	var chatClient *chat.Client
	if cfg.Chat.Endpoint != "" {
		chatClient = chat.NewClient(cfg.Chat.Endpoint, cfg.Chat.APIKey, logger)
	}

	eng, err := engine.New(engine.Config{
		Store:     store,
		Provider:  prov,
		Chat:      chatClient,
		BatchSize: cfg.Run.BatchSize,
		Logger:    logger,
		OnProgress: func(ev engine.ProgressEvent) {
			if r.Mode() == output.ModeText {
				r.Mutedf("%s", ev.Message())
			}
		},
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	cc := &CommandContext{
		Config:   cfg,
		Renderer: r,
		Logger:   logger,
		Store:    store,
		Engine:   eng,
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close state store", "error", err)
		}
	}
	return cc, cleanup, nil
}

// ResolveWorkspace finds a workspace by ID or name.
func (cc *CommandContext) ResolveWorkspace(ref string) (*core.Workspace, error) {
	if ref == "" {
		return nil, fmt.Errorf("workspace is required (use --workspace)")
	}
	if ws, err := cc.Store.GetWorkspace(ref); err != nil {
		return nil, err
	} else if ws != nil {
		return ws, nil
	}
	workspaces, err := cc.Store.ListWorkspaces()
	if err != nil {
		return nil, err
	}
	for _, ws := range workspaces {
		if strings.EqualFold(ws.Name, ref) {
			return ws, nil
		}
	}
	return nil, fmt.Errorf("workspace %q not found", ref)
}

// ResolveColumn finds a column in a workspace by ID or name.
func (cc *CommandContext) ResolveColumn(workspaceID, ref string) (*core.Column, error) {
	cols, err := cc.Store.ListColumns(workspaceID)
	if err != nil {
		return nil, err
	}
	for _, col := range cols {
		if col.ID == ref || strings.EqualFold(col.Name, ref) {
			return col, nil
		}
	}
	return nil, fmt.Errorf("column %q not found", ref)
}

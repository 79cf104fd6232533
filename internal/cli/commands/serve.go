package commands

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nestgrid-labs/nestgrid/internal/autorun"
	"github.com/nestgrid-labs/nestgrid/internal/chat"
	"github.com/nestgrid-labs/nestgrid/internal/engine"
	"github.com/nestgrid-labs/nestgrid/internal/provider"
	"github.com/nestgrid-labs/nestgrid/internal/state"
	"github.com/nestgrid-labs/nestgrid/internal/ui"
	"github.com/nestgrid-labs/nestgrid/internal/ui/notifier"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var (
		host     string
		port     int
		watchDir string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the nestgrid web server",
		Long: `Start the HTTP server exposing the workspace API and the SSE update
stream. Runs started through the API report progress to all connected
clients, and workspaces with auto-run enabled sweep in the background
as data changes.

With --watch (or server.watch_dir in nestgrid.yaml), CSV files
dropped into the directory import automatically into a workspace
named after the file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := GetConfig(cmd.Context())
			logger := GetLogger(cmd.Context())

			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if watchDir != "" {
				cfg.Server.WatchDir = watchDir
			}

			store := state.NewSQLiteStore()
			if err := store.Open(cfg.StatePath); err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(); err != nil {
				return err
			}

			var prov provider.Provider
			if cfg.Enrich.BaseURL != "" {
				prov = provider.NewHTTPProvider(cfg.Enrich.BaseURL, cfg.Enrich.APIKey, logger)
			}
			var chatClient *chat.Client
			if cfg.Chat.Endpoint != "" {
				chatClient = chat.NewClient(cfg.Chat.Endpoint, cfg.Chat.APIKey, logger)
			}

			// The server owns the notifier, but the engine needs the
			// callbacks at construction; srv is bound before Serve runs.
			var srv *ui.Server
			var detector *autorun.Detector

			eng, err := engine.New(engine.Config{
				Store:     store,
				Provider:  prov,
				Chat:      chatClient,
				BatchSize: cfg.Run.BatchSize,
				Logger:    logger,
				OnProgress: func(ev engine.ProgressEvent) {
					if srv != nil {
						srv.Notifier().Broadcast(notifier.Event{
							WorkspaceID: ev.WorkspaceID,
							Kind:        "progress",
							Message:     ev.Message(),
						})
					}
				},
				OnChange: func(workspaceID string) {
					if srv != nil {
						srv.Notifier().Broadcast(notifier.Event{WorkspaceID: workspaceID, Kind: "change"})
					}
					if detector != nil {
						detector.NotifyChange(workspaceID)
					}
				},
			})
			if err != nil {
				return err
			}

			debounce := time.Duration(cfg.Run.AutoRunDebounceSeconds) * time.Second
			detector = autorun.New(eng, debounce, logger)
			defer detector.Stop()

			srv = ui.NewServer(ui.Config{
				Engine:     eng,
				Store:      store,
				Detector:   detector,
				Chat:       chatClient,
				ChatModel:  cfg.Chat.Model,
				Host:       cfg.Server.Host,
				Port:       cfg.Server.Port,
				WatchDir:   cfg.Server.WatchDir,
				SessionKey: cfg.Server.SessionKey,
				Logger:     logger,
			})
			return srv.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Bind address (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Port (overrides config)")
	cmd.Flags().StringVar(&watchDir, "watch", "", "Directory to watch for dropped CSV files")
	return cmd
}

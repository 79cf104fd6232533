// Package ui provides the web server exposing the grid API, the SSE
// update stream, and the CSV drop-folder watcher.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/nestgrid-labs/nestgrid/internal/autorun"
	chatclient "github.com/nestgrid-labs/nestgrid/internal/chat"
	"github.com/nestgrid-labs/nestgrid/internal/csvio"
	"github.com/nestgrid-labs/nestgrid/internal/engine"
	"github.com/nestgrid-labs/nestgrid/internal/ui/notifier"
	"github.com/nestgrid-labs/nestgrid/internal/ui/router"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// watchDebounce is the quiet period after a file event before the
// dropped CSV is imported, letting the writer finish.
const watchDebounce = 500 * time.Millisecond

// Config holds configuration for the UI server.
type Config struct {
	Engine    *engine.Engine
	Store     core.Store
	Detector  *autorun.Detector
	Chat      *chatclient.Client
	ChatModel string
	Host      string
	Port      int
	// WatchDir, when set, is watched for dropped CSV files; each file
	// imports into a workspace named after it.
	WatchDir   string
	SessionKey string
	Logger     *slog.Logger
}

// Server is the UI server.
type Server struct {
	engine       *engine.Engine
	store        core.Store
	detector     *autorun.Detector
	chat         *chatclient.Client
	chatModel    string
	sessionStore *sessions.CookieStore
	host         string
	port         int
	watchDir     string
	logger       *slog.Logger
	notifier     *notifier.Notifier
}

// NewServer creates a UI server.
func NewServer(cfg Config) *Server {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionKey))
	sessionStore.MaxAge(86400 * 30)
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		engine:       cfg.Engine,
		store:        cfg.Store,
		detector:     cfg.Detector,
		chat:         cfg.Chat,
		chatModel:    cfg.ChatModel,
		sessionStore: sessionStore,
		host:         cfg.Host,
		port:         cfg.Port,
		watchDir:     cfg.WatchDir,
		logger:       logger,
		notifier:     notifier.New(),
	}
}

// Notifier returns the server's notifier; the engine's progress and
// change callbacks should feed it.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	s.logger.Info("starting server", "addr", fmt.Sprintf("http://%s", addr))

	eg, egctx := errgroup.WithContext(ctx)

	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	if err := router.SetupRoutes(r, router.Deps{
		Engine:       s.engine,
		Store:        s.store,
		Detector:     s.detector,
		Chat:         s.chat,
		ChatModel:    s.chatModel,
		SessionStore: s.sessionStore,
		Notifier:     s.notifier,
	}); err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watchDir != "" {
		eg.Go(func() error {
			return s.watchDropFolder(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchDropFolder imports CSV files dropped into the watch directory.
// Each file lands in a workspace named after the file, created on
// first sight; re-dropping a file appends rows.
func (s *Server) watchDropFolder(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.watchDir); err != nil {
		s.logger.Error("failed to watch drop folder", "dir", s.watchDir, "error", err)
		return nil
	}
	s.logger.Info("watching drop folder", "dir", s.watchDir)

	timers := make(map[string]*time.Timer)

	for {
		select {
		case <-ctx.Done():
			for _, t := range timers {
				t.Stop()
			}
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
				continue
			}

			path := event.Name
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(watchDebounce, func() {
				s.importDropped(path)
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func (s *Server) importDropped(path string) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	ws, err := s.workspaceByName(name)
	if err != nil {
		s.logger.Error("drop import failed", "file", path, "error", err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.logger.Error("drop import failed", "file", path, "error", err)
		return
	}
	defer f.Close()

	res, err := csvio.Import(f, s.store, ws.ID)
	if err != nil {
		s.logger.Error("drop import failed", "file", path, "error", err)
		return
	}
	s.logger.Info("imported dropped file",
		"file", path, "workspace", ws.Name, "rows", len(res.Rows), "new_columns", len(res.Columns))

	s.notifier.Broadcast(notifier.Event{WorkspaceID: ws.ID, Kind: "change"})
	if s.detector != nil {
		s.detector.NotifyChange(ws.ID)
	}
}

func (s *Server) workspaceByName(name string) (*core.Workspace, error) {
	workspaces, err := s.store.ListWorkspaces()
	if err != nil {
		return nil, err
	}
	for _, ws := range workspaces {
		if strings.EqualFold(ws.Name, name) {
			return ws, nil
		}
	}
	return s.store.CreateWorkspace(name)
}

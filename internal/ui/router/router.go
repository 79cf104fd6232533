// Package router wires the feature routes of the UI server.
package router

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/nestgrid-labs/nestgrid/internal/autorun"
	chatclient "github.com/nestgrid-labs/nestgrid/internal/chat"
	"github.com/nestgrid-labs/nestgrid/internal/engine"
	chatFeature "github.com/nestgrid-labs/nestgrid/internal/ui/features/chat"
	gridFeature "github.com/nestgrid-labs/nestgrid/internal/ui/features/gridview"
	runsFeature "github.com/nestgrid-labs/nestgrid/internal/ui/features/runs"
	workspacesFeature "github.com/nestgrid-labs/nestgrid/internal/ui/features/workspaces"
	"github.com/nestgrid-labs/nestgrid/internal/ui/notifier"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// Deps carries the collaborators the routes need.
type Deps struct {
	Engine       *engine.Engine
	Store        core.Store
	Detector     *autorun.Detector
	Chat         *chatclient.Client
	ChatModel    string
	SessionStore sessions.Store
	Notifier     *notifier.Notifier
}

// SetupRoutes configures all routes for the UI server.
func SetupRoutes(router chi.Router, deps Deps) error {
	router.Get("/api/events", eventsHandler(deps.Notifier))
	router.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if err := workspacesFeature.SetupRoutes(router, deps.Store, deps.Engine.Overlay(), deps.SessionStore, deps.Notifier); err != nil {
		return err
	}
	if err := gridFeature.SetupRoutes(router, deps.Engine, deps.Store, deps.Detector, deps.Notifier); err != nil {
		return err
	}
	if err := runsFeature.SetupRoutes(router, deps.Engine, deps.Store); err != nil {
		return err
	}
	if err := chatFeature.SetupRoutes(router, deps.Store, deps.Chat, deps.ChatModel, deps.Notifier); err != nil {
		return err
	}

	return nil
}

// eventsHandler streams notifier events as server-sent events. Clients
// re-query the named workspace on "change" and render "progress" lines
// as run toasts.
func eventsHandler(notify *notifier.Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ch := notify.Subscribe()
		defer notify.Unsubscribe(ch)

		for {
			select {
			case <-r.Context().Done():
				return
			case ev := <-ch:
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
				flusher.Flush()
			}
		}
	}
}

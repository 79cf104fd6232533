package workspaces

import (
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/nestgrid-labs/nestgrid/internal/sandbox"
	"github.com/nestgrid-labs/nestgrid/internal/ui/notifier"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// SetupRoutes registers the workspace feature routes.
func SetupRoutes(
	router chi.Router,
	store core.Store,
	overlay *sandbox.Overlay,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
) error {
	h := NewHandlers(store, overlay, sessionStore, notify)

	router.Get("/api/session", h.Session)

	router.Route("/api/workspaces", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{workspaceID}", h.Get)
		r.Patch("/{workspaceID}", h.Update)
		r.Delete("/{workspaceID}", h.Delete)
		r.Post("/{workspaceID}/columns", h.CreateColumn)
	})

	router.Route("/api/columns", func(r chi.Router) {
		r.Patch("/{columnID}", h.UpdateColumn)
		r.Delete("/{columnID}", h.DeleteColumn)
	})

	return nil
}

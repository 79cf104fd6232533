package chat

import (
	"github.com/go-chi/chi/v5"

	chatclient "github.com/nestgrid-labs/nestgrid/internal/chat"
	"github.com/nestgrid-labs/nestgrid/internal/ui/notifier"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// SetupRoutes registers the chat feature routes.
func SetupRoutes(router chi.Router, store core.Store, client *chatclient.Client, model string, notify *notifier.Notifier) error {
	h := NewHandlers(store, client, model, notify)

	router.Get("/api/workspaces/{workspaceID}/chat", h.List)
	router.Post("/api/workspaces/{workspaceID}/chat", h.Send)

	return nil
}

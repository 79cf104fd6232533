package runs

import (
	"github.com/go-chi/chi/v5"

	"github.com/nestgrid-labs/nestgrid/internal/engine"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// SetupRoutes registers the run feature routes.
func SetupRoutes(router chi.Router, eng *engine.Engine, store core.Store) error {
	h := NewHandlers(eng, store)

	router.Post("/api/workspaces/{workspaceID}/runs", h.Start)
	router.Get("/api/workspaces/{workspaceID}/runs", h.List)

	router.Route("/api/runs", func(r chi.Router) {
		r.Get("/{runID}", h.Get)
		r.Get("/{runID}/cells", h.Cells)
	})

	return nil
}

package gridview

import (
	"github.com/go-chi/chi/v5"

	"github.com/nestgrid-labs/nestgrid/internal/autorun"
	"github.com/nestgrid-labs/nestgrid/internal/engine"
	"github.com/nestgrid-labs/nestgrid/internal/ui/notifier"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// SetupRoutes registers the grid feature routes.
func SetupRoutes(
	router chi.Router,
	eng *engine.Engine,
	store core.Store,
	detector *autorun.Detector,
	notify *notifier.Notifier,
) error {
	h := NewHandlers(eng, store, detector, notify)

	router.Route("/api/workspaces/{workspaceID}", func(r chi.Router) {
		r.Get("/grid", h.Grid)
		r.Post("/rows", h.CreateRow)
		r.Delete("/rows/{rowID}", h.DeleteRow)
		r.Put("/cells/{rowID}/{columnID}", h.EditCell)
		r.Put("/filters", h.SaveFilters)
		r.Put("/sorts", h.SaveSorts)
		r.Post("/import", h.Import)
		r.Get("/export", h.Export)
	})

	return nil
}

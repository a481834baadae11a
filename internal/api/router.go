package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/othala/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth
// group but outside the request timeout, since event streams are
// long-lived.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		// System.
		r.Get("/health", h.Health)

		// Notes CRUD plus per-note projections.
		r.Get("/notes", h.ListNotes)
		r.Post("/notes", h.CreateNote)
		r.Get("/notes/{slug}", h.GetNote)
		r.Put("/notes/{slug}", h.UpdateNote)
		r.Delete("/notes/{slug}", h.DeleteNote)
		r.Get("/notes/{slug}/html", h.NoteHTML)
		r.Get("/notes/{slug}/backlinks", h.NoteBacklinks)

		// Search and graph.
		r.Get("/search", h.Search)
		r.Get("/graph", h.Graph)

		// Tags. The wildcard tolerates hierarchical tags like tools/marimo.
		r.Get("/tags", h.Tags)
		r.Get("/tags/*", h.NotesWithTag)

		// Todos and shorthand.
		r.Get("/todos", h.ListTodos)
		r.Post("/todos", h.CaptureTodo)
		r.Post("/todos/resolve", h.ResolveTodo)
		r.Get("/skills", h.Skills)
		r.Post("/shorthand", h.Shorthand)

		// Query-layer views.
		r.Route("/views", func(r chi.Router) {
			r.Get("/table", h.TableView)
			r.Get("/kanban", h.KanbanView)
			r.Get("/gallery", h.GalleryView)
			r.Get("/keys", h.FrontmatterKeys)
			r.Get("/tags", h.TagUsage)
		})

		// Canvas and plugins.
		r.Get("/canvas", h.Canvas)
		r.Get("/plugins", h.Plugins)
		r.Get("/plugins/{id}/state", h.PluginState)
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

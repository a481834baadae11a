package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/plugin"
	"github.com/starford/othala/internal/vaultdb"
)

// TableView handles GET /api/views/table.
//
//	@Summary		Spreadsheet-style view over the vault
//	@Tags			views
//	@Produce		json
//	@Param			tag			query		string	false	"Filter by tag"
//	@Param			q			query		string	false	"Title/body substring filter"
//	@Param			order_by	query		string	false	"Sort column"
//	@Success		200			{object}	vaultdb.Result
//	@Security		BearerAuth
//	@Router			/views/table [get]
func (h *Handler) TableView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.TableView(r.Context(), vaultdb.TableOpts{
		FilterTag: q.Get("tag"),
		Search:    q.Get("q"),
		OrderBy:   q.Get("order_by"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// KanbanView handles GET /api/views/kanban.
//
//	@Summary		Kanban board grouped by a frontmatter key
//	@Tags			views
//	@Produce		json
//	@Param			group_by	query		string	false	"Frontmatter key, default status"
//	@Success		200			{object}	KanbanResponse
//	@Security		BearerAuth
//	@Router			/views/kanban [get]
func (h *Handler) KanbanView(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.KanbanView(r.Context(), r.URL.Query().Get("group_by"))
	if err != nil {
		writeError(w, err)
		return
	}
	if groups == nil {
		groups = []vaultdb.KanbanGroup{}
	}
	writeJSON(w, http.StatusOK, KanbanResponse{Groups: groups})
}

// GalleryView handles GET /api/views/gallery.
//
//	@Summary		Card gallery, optionally narrowed to a tag
//	@Tags			views
//	@Produce		json
//	@Param			tag	query		string	false	"Filter by tag"
//	@Success		200	{object}	GalleryResponse
//	@Security		BearerAuth
//	@Router			/views/gallery [get]
func (h *Handler) GalleryView(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.GalleryView(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		writeError(w, err)
		return
	}
	if cards == nil {
		cards = []vaultdb.Card{}
	}
	writeJSON(w, http.StatusOK, GalleryResponse{Cards: cards})
}

// FrontmatterKeys handles GET /api/views/keys.
//
//	@Summary		List every frontmatter key present in the vault
//	@Tags			views
//	@Produce		json
//	@Success		200	{object}	KeysResponse
//	@Security		BearerAuth
//	@Router			/views/keys [get]
func (h *Handler) FrontmatterKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.svc.FrontmatterKeys(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, KeysResponse{Keys: keys})
}

// TagUsage handles GET /api/views/tags.
//
//	@Summary		Tags ordered by number of notes carrying them
//	@Tags			views
//	@Produce		json
//	@Success		200	{object}	TagUsageResponse
//	@Security		BearerAuth
//	@Router			/views/tags [get]
func (h *Handler) TagUsage(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.TagUsage(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if tags == nil {
		tags = []vaultdb.TagCount{}
	}
	writeJSON(w, http.StatusOK, TagUsageResponse{Tags: tags})
}

// Canvas handles GET /api/canvas.
//
//	@Summary		Canvas snapshot of the vault graph
//	@Tags			canvas
//	@Produce		json
//	@Success		200	{object}	canvas.Snapshot
//	@Security		BearerAuth
//	@Router			/canvas [get]
func (h *Handler) Canvas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CanvasSnapshot(r.Context()))
}

// Plugins handles GET /api/plugins.
//
//	@Summary		List loaded plugin descriptors
//	@Tags			plugins
//	@Produce		json
//	@Success		200	{object}	PluginListResponse
//	@Security		BearerAuth
//	@Router			/plugins [get]
func (h *Handler) Plugins(w http.ResponseWriter, r *http.Request) {
	descriptors := []plugin.Descriptor{}
	for _, p := range h.svc.Plugins() {
		descriptors = append(descriptors, p.Descriptor)
	}
	writeJSON(w, http.StatusOK, PluginListResponse{Plugins: descriptors})
}

// PluginState handles GET /api/plugins/{id}/state.
//
//	@Summary		Read one plugin's state payload
//	@Tags			plugins
//	@Produce		json
//	@Param			id	path		string	true	"Plugin id"
//	@Success		200	{object}	PluginStateResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plugins/{id}/state [get]
func (h *Handler) PluginState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := h.svc.PluginState(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PluginStateResponse{ID: id, State: state})
}

package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/noteservice"
)

// Version reported by the health endpoint.
const Version = "0.1.0"

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// tagParam extracts the tag from the URL (everything after /api/tags/).
// Tags may be hierarchical (tools/marimo), so the route uses a wildcard
// and supports encoded slashes (tools%2Fmarimo).
func tagParam(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Health handles GET /api/health.
//
//	@Summary		Service health and vault size
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Security		BearerAuth
//	@Router			/health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Notes:   h.svc.NoteCount(),
		Version: Version,
	})
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes with optional filtering
//	@Tags			notes
//	@Produce		json
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			q		query		string	false	"Title/body substring filter"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	notes := h.svc.ListNotes(r.Context(), q.Get("tag"), q.Get("q"), limit)
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// GetNote handles GET /api/notes/{slug}.
//
//	@Summary		Get a single note by slug
//	@Tags			notes
//	@Produce		json
//	@Param			slug	path		string	true	"Note slug"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{slug} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.GetNote(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{slug}.
//
//	@Summary		Update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			slug		path		string				true	"Note slug"
//	@Param			If-Match	header		string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		UpdateNoteRequest	true	"Updated content"
//	@Success		200			{object}	NoteDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		412			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{slug} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	note, err := h.svc.UpdateNote(r.Context(), chi.URLParam(r, "slug"), []byte(req.Content), r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{slug}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			slug	path	string	true	"Note slug"
//	@Success		204		"Note deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{slug} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNote(r.Context(), chi.URLParam(r, "slug")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NoteHTML handles GET /api/notes/{slug}/html.
//
//	@Summary		Render a note body to HTML
//	@Tags			notes
//	@Produce		json
//	@Param			slug	path		string	true	"Note slug"
//	@Success		200		{object}	RenderedNote
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{slug}/html [get]
func (h *Handler) NoteHTML(w http.ResponseWriter, r *http.Request) {
	rendered, err := h.svc.RenderHTML(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rendered)
}

// NoteBacklinks handles GET /api/notes/{slug}/backlinks.
//
//	@Summary		List the notes linking to a target
//	@Tags			notes
//	@Produce		json
//	@Param			slug	path		string	true	"Note slug"
//	@Success		200		{object}	BacklinksResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{slug}/backlinks [get]
func (h *Handler) NoteBacklinks(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	backlinks, err := h.svc.Backlinks(r.Context(), slug)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Slug: slug, Backlinks: backlinks})
}

// Search handles GET /api/search.
//
//	@Summary		Search notes by title and body
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Search query"
//	@Success		200	{object}	SearchResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	results := h.svc.SearchNotes(r.Context(), q)
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the link graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	models.Graph
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Graph(r.Context()))
}

// Tags handles GET /api/tags.
//
//	@Summary		Map every tag to its note count
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	map[string]int
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.TagCounts(r.Context()))
}

// NotesWithTag handles GET /api/tags/*.
//
//	@Summary		List the notes carrying a tag
//	@Tags			tags
//	@Produce		json
//	@Param			tag	path		string	true	"Tag, may contain slashes"
//	@Success		200	{object}	NoteListResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{tag} [get]
func (h *Handler) NotesWithTag(w http.ResponseWriter, r *http.Request) {
	tag := tagParam(r)
	if tag == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("tag is required"))
		return
	}
	notes := h.svc.NotesWithTag(r.Context(), tag)
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

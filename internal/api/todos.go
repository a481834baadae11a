package api

import (
	"encoding/json"
	"net/http"
)

// ListTodos handles GET /api/todos.
//
//	@Summary		List scanned TK items
//	@Tags			todos
//	@Produce		json
//	@Param			pending	query		bool	false	"Only unresolved items"
//	@Success		200		{object}	TodoListResponse
//	@Security		BearerAuth
//	@Router			/todos [get]
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	pendingOnly := r.URL.Query().Get("pending") == "true"
	items := h.svc.Todos(r.Context(), pendingOnly)
	writeJSON(w, http.StatusOK, TodoListResponse{Todos: items, Total: len(items)})
}

// CaptureTodo handles POST /api/todos.
//
//	@Summary		Append a quick-capture todo line
//	@Tags			todos
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CaptureTodoRequest	true	"Todo to capture"
//	@Success		201		{object}	CaptureResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/todos [post]
func (h *Handler) CaptureTodo(w http.ResponseWriter, r *http.Request) {
	var req CaptureTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	line, err := h.svc.CaptureTodo(r.Context(), req.Description, req.SourceSlug)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CaptureResponse{Line: line})
}

// ResolveTodo handles POST /api/todos/resolve.
//
//	@Summary		Mark a TK item resolved in its source file
//	@Tags			todos
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ResolveTodoRequest	true	"Item to resolve"
//	@Success		200		{object}	ResolveResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/todos/resolve [post]
func (h *Handler) ResolveTodo(w http.ResponseWriter, r *http.Request) {
	var req ResolveTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.SourceSlug == "" || req.LineNo < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("source_slug and a positive line_no are required"))
		return
	}
	resolved, err := h.svc.ResolveTodo(r.Context(), req.SourceSlug, req.LineNo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{Resolved: resolved})
}

// Skills handles GET /api/skills.
//
//	@Summary		List or search skill descriptors
//	@Tags			skills
//	@Produce		json
//	@Param			q	query		string	false	"Search query"
//	@Success		200	{object}	SkillListResponse
//	@Security		BearerAuth
//	@Router			/skills [get]
func (h *Handler) Skills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	list := h.svc.Skills(r.Context())
	if q != "" {
		list = h.svc.SearchSkills(r.Context(), q)
	}
	writeJSON(w, http.StatusOK, SkillListResponse{Skills: list})
}

// Shorthand handles POST /api/shorthand.
//
//	@Summary		Run one line of quick-capture shorthand
//	@Tags			skills
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ShorthandRequest	true	"Shorthand input"
//	@Success		200		{object}	ShorthandResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/shorthand [post]
func (h *Handler) Shorthand(w http.ResponseWriter, r *http.Request) {
	var req ShorthandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}
	result, err := h.svc.Shorthand(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

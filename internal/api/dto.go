package api

import (
	"github.com/starford/othala/internal/noteservice"
	"github.com/starford/othala/internal/plugin"
	"github.com/starford/othala/internal/skills"
	"github.com/starford/othala/internal/todos"
	"github.com/starford/othala/internal/vaultdb"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"ideas/zettel.md" validate:"required"`
	Content string `json:"content" example:"# Hello\nWorld" validate:"required"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Updated\nContent" validate:"required"`
}

// CaptureTodoRequest is the request body for a quick capture.
type CaptureTodoRequest struct {
	Description string `json:"description" example:"water the plants" validate:"required"`
	SourceSlug  string `json:"source_slug,omitempty" example:"garden"`
}

// ResolveTodoRequest names the TK item to mark resolved.
type ResolveTodoRequest struct {
	SourceSlug string `json:"source_slug" example:"garden" validate:"required"`
	LineNo     int    `json:"line_no" example:"12" validate:"required"`
}

// ShorthandRequest is one line of quick-capture shorthand.
type ShorthandRequest struct {
	Text string `json:"text" example:"tk water the plants" validate:"required"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteSummary is a lightweight item in list responses (aliased from the domain layer).
type NoteSummary = noteservice.NoteSummary

// RenderedNote is the HTML projection of a note (aliased from the domain layer).
type RenderedNote = noteservice.RenderedNote

// ShorthandResult reports what a shorthand input did (aliased from the domain layer).
type ShorthandResult = noteservice.ShorthandResult

// HealthResponse reports service status for monitoring.
type HealthResponse struct {
	Status  string `json:"status" example:"ok" validate:"required"`
	Notes   int    `json:"notes" example:"42" validate:"required"`
	Version string `json:"version" example:"0.1.0" validate:"required"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteSummary `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []NoteSummary `json:"results" validate:"required"`
}

// BacklinksResponse lists the notes linking to a target.
type BacklinksResponse struct {
	Slug      string   `json:"slug" example:"zettel" validate:"required"`
	Backlinks []string `json:"backlinks" validate:"required"`
}

// TodoListResponse wraps scanned TK items.
type TodoListResponse struct {
	Todos []*todos.Item `json:"todos" validate:"required"`
	Total int           `json:"total" example:"3" validate:"required"`
}

// CaptureResponse returns the appended capture line.
type CaptureResponse struct {
	Line string `json:"line" example:"- [ ] TK: water the plants — 2025-01-02" validate:"required"`
}

// ResolveResponse reports whether a resolve rewrote its line.
type ResolveResponse struct {
	Resolved bool `json:"resolved" example:"true" validate:"required"`
}

// SkillListResponse wraps skill listings.
type SkillListResponse struct {
	Skills []*skills.Skill `json:"skills" validate:"required"`
}

// KanbanResponse wraps the kanban view groups.
type KanbanResponse struct {
	Groups []vaultdb.KanbanGroup `json:"groups" validate:"required"`
}

// GalleryResponse wraps the gallery view cards.
type GalleryResponse struct {
	Cards []vaultdb.Card `json:"cards" validate:"required"`
}

// KeysResponse lists the frontmatter keys present in the vault.
type KeysResponse struct {
	Keys []string `json:"keys" validate:"required"`
}

// TagUsageResponse lists tags ordered by how many notes carry them.
type TagUsageResponse struct {
	Tags []vaultdb.TagCount `json:"tags" validate:"required"`
}

// PluginListResponse lists the loaded plugin descriptors.
type PluginListResponse struct {
	Plugins []plugin.Descriptor `json:"plugins" validate:"required"`
}

// PluginStateResponse carries one plugin's state payload.
type PluginStateResponse struct {
	ID    string `json:"id" example:"backlinks-panel" validate:"required"`
	State any    `json:"state" validate:"required"`
}

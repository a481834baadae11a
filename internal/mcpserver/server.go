// Package mcpserver exposes the vault to LLM clients over the Model
// Context Protocol via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/noteservice"
)

// Server wraps the MCP server with Othala tools. Everything goes
// through the note service, so MCP clients see the same vault state as
// the HTTP API.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates an MCP server with all Othala tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note with its metadata: title, tags, links, backlinks, and body."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Note slug, the lowercased filename stem (e.g. weekly-review)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes in the vault, optionally narrowed to a tag."),
		mcp.WithString("tag", mcp.Description("Optional tag filter; hierarchical tags like project/alpha work")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Slug of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_todos",
		mcp.WithDescription("List TK todo items scanned from the vault."),
		mcp.WithBoolean("pending", mcp.Description("Only unresolved items (default false)")),
	), s.listTodos)

	s.mcp.AddTool(mcp.NewTool("capture_todo",
		mcp.WithDescription("Append a quick-capture TK todo to the todo file. "+
			"See the othala://note-format resource for how captures are stored."),
		mcp.WithString("description", mcp.Required(), mcp.Description("What needs doing")),
		mcp.WithString("source_slug", mcp.Description("Optional slug of the note that prompted the todo")),
	), s.captureTodo)

	s.mcp.AddTool(mcp.NewTool("find_skill",
		mcp.WithDescription("Find skills matching a trigger word or free text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Trigger word or search text")),
	), s.findSkill)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical Othala note format contract. "+
			"Call this before writing notes into the vault to ensure correct structure."),
	), s.getNoteContract)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical Markdown note format the vault expects."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results := s.svc.SearchNotes(ctx, query)
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	out, _ := json.MarshalIndent(note, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := ""
	if v, err := req.RequireString("tag"); err == nil {
		tag = v
	}
	notes := s.svc.ListNotes(ctx, tag, "", 0)
	out, _ := json.MarshalIndent(notes, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) listTodos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pending := false
	if v, err := req.RequireBool("pending"); err == nil {
		pending = v
	}
	items := s.svc.Todos(ctx, pending)
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) captureTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sourceSlug := ""
	if v, err := req.RequireString("source_slug"); err == nil {
		sourceSlug = v
	}
	line, err := s.svc.CaptureTodo(ctx, description, sourceSlug)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("captured: %s", line)), nil
}

func (s *Server) findSkill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// Exact trigger matches win; fall back to a metadata search.
	matches := s.svc.SkillByTrigger(ctx, query)
	if len(matches) == 0 {
		matches = s.svc.SearchSkills(ctx, query)
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText("no matching skills"), nil
	}
	out, _ := json.MarshalIndent(matches, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

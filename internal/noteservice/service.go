// Package noteservice orchestrates the vault subsystems. Every
// mutation funnels through Service, which persists via storage, then
// rebuilds the index, rescans todos, refreshes the query layer, fires
// plugin hooks and notifies subscribers, in that order.
package noteservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/canvas"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/plugin"
	"github.com/starford/othala/internal/skills"
	"github.com/starford/othala/internal/storage"
	vaultsync "github.com/starford/othala/internal/sync"
	"github.com/starford/othala/internal/todos"
	"github.com/starford/othala/internal/vault"
	"github.com/starford/othala/internal/vaultdb"
)

// Event kinds passed to the notifier.
const (
	EventNoteCreated  = "note.created"
	EventNoteUpdated  = "note.updated"
	EventNoteDeleted  = "note.deleted"
	EventTodoCaptured = "todo.captured"
	EventIndexRebuilt = "index.rebuilt"
)

// Shorthand actions.
const (
	ShorthandCaptured = "captured"
	ShorthandSkills   = "skills"
)

// Notifier receives lifecycle events for fan-out. Slug is empty for
// vault-wide events.
type Notifier func(kind, slug string)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	Path        string         `json:"path"`
	Body        string         `json:"body"`
	Tags        []string       `json:"tags"`
	Links       []string       `json:"links"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Backlinks   []string       `json:"backlinks"`
	Checksum    string         `json:"checksum"`
}

// NoteSummary is a lightweight item in list and search responses.
type NoteSummary struct {
	Slug  string   `json:"slug"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
	Links []string `json:"links"`
}

// RenderedNote is the HTML projection of a note body.
type RenderedNote struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// ShorthandResult reports what a shorthand input did: a capture
// carries the appended line, anything else the matching skills.
type ShorthandResult struct {
	Action string          `json:"action"`
	Line   string          `json:"line,omitempty"`
	Skills []*skills.Skill `json:"skills,omitempty"`
}

// Service coordinates the vault subsystems behind a single lock: the
// index itself is a plain single-writer structure, so concurrent HTTP
// handlers and the watcher synchronize here, not inside it.
type Service struct {
	logger   *slog.Logger
	store    storage.Provider
	index    *vault.Index
	skills   *skills.Index
	db       *vaultdb.DB      // nil when the query layer is not wired
	registry *plugin.Registry // nil when plugins are not wired
	todoFile string
	notify   Notifier
	md       goldmark.Markdown

	mu       sync.RWMutex
	todoList *todos.List
	loaded   bool // on_load fired
}

// ServiceOption configures optional Service collaborators.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithNotifier wires lifecycle events to a subscriber, the SSE broker
// in serve mode.
func WithNotifier(notify Notifier) ServiceOption {
	return func(s *Service) {
		s.notify = notify
	}
}

// WithTodoFile overrides the quick-capture file name.
func WithTodoFile(name string) ServiceOption {
	return func(s *Service) {
		if name != "" {
			s.todoFile = name
		}
	}
}

// NewService creates a note service. db and registry may be nil; the
// view and plugin operations then report themselves unavailable.
func NewService(store storage.Provider, idx *vault.Index, skillIdx *skills.Index, db *vaultdb.DB, registry *plugin.Registry, opts ...ServiceOption) *Service {
	s := &Service{
		logger:   slog.Default(),
		store:    store,
		index:    idx,
		skills:   skillIdx,
		db:       db,
		registry: registry,
		todoFile: todos.DefaultFile,
		md:       goldmark.New(goldmark.WithExtensions(extension.GFM)),
		todoList: &todos.List{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rebuild rescans the vault and pushes the result through the whole
// pipeline. Safe to call from the watcher and handlers concurrently.
func (s *Service) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildLocked(ctx)
}

func (s *Service) rebuildLocked(ctx context.Context) error {
	if err := s.index.Build(); err != nil {
		return fmt.Errorf("noteservice: rebuild index: %w", err)
	}
	if err := s.skills.Build(); err != nil {
		return fmt.Errorf("noteservice: rebuild skills: %w", err)
	}
	s.todoList = todos.Scan(s.index)
	if s.db != nil {
		if err := s.db.Refresh(ctx, s.index); err != nil {
			return fmt.Errorf("noteservice: refresh query layer: %w", err)
		}
	}
	if s.registry != nil {
		if !s.loaded {
			s.registry.FireLoad(s.index)
			s.loaded = true
		}
		s.registry.FireIndexUpdate(s.index)
	}
	s.emit(EventIndexRebuilt, "")
	return nil
}

// NoteCount reports how many notes are indexed.
func (s *Service) NoteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// GetNote returns the full detail for slug and fires the note-select
// plugin hook.
func (s *Service) GetNote(_ context.Context, slug string) (*NoteDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.index.Note(slug)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	raw, err := s.store.Read(s.relPath(note))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if s.registry != nil {
		s.registry.FireNoteSelect(slug, s.index)
	}
	return s.detailLocked(note, checksum.Sum(raw)), nil
}

// CreateNote writes a new note at the vault-relative path and rebuilds.
func (s *Service) CreateNote(ctx context.Context, relPath string, content []byte) (*NoteDetail, error) {
	if !strings.HasSuffix(relPath, ".md") {
		return nil, fmt.Errorf("%w: note path must end in .md", apperr.ErrInvalidPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.store.Exists(relPath)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(relPath, content); err != nil {
		return nil, err
	}
	if err := s.rebuildLocked(ctx); err != nil {
		return nil, err
	}

	slug := models.SlugFromPath(relPath)
	note, ok := s.index.Note(slug)
	if !ok {
		return nil, fmt.Errorf("noteservice: %s missing after rebuild", slug)
	}
	s.emit(EventNoteCreated, slug)
	return s.detailLocked(note, checksum.Sum(content)), nil
}

// UpdateNote replaces a note's content with optimistic concurrency:
// when ifMatch is non-empty it must name the current checksum.
func (s *Service) UpdateNote(ctx context.Context, slug string, content []byte, ifMatch string) (*NoteDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.index.Note(slug)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	rel := s.relPath(note)

	existing, err := s.store.Read(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && !checksum.Match(checksum.Sum(existing), ifMatch) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(rel, content); err != nil {
		return nil, err
	}
	if err := s.rebuildLocked(ctx); err != nil {
		return nil, err
	}

	updated, ok := s.index.Note(slug)
	if !ok {
		return nil, fmt.Errorf("noteservice: %s missing after rebuild", slug)
	}
	s.emit(EventNoteUpdated, slug)
	return s.detailLocked(updated, checksum.Sum(content)), nil
}

// DeleteNote removes a note from storage and rebuilds.
func (s *Service) DeleteNote(ctx context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.index.Note(slug)
	if !ok {
		return apperr.ErrNotFound
	}
	if err := s.store.Delete(s.relPath(note)); err != nil {
		return err
	}
	if err := s.rebuildLocked(ctx); err != nil {
		return err
	}
	s.emit(EventNoteDeleted, slug)
	return nil
}

// ListNotes returns summaries, optionally narrowed by tag and a
// case-insensitive title/body query. limit <= 0 means no limit.
func (s *Service) ListNotes(_ context.Context, tag, query string, limit int) []NoteSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var notes []*models.Note
	switch {
	case query != "":
		notes = s.index.Search(query)
		if tag != "" {
			notes = filterByTag(notes, tag)
		}
	case tag != "":
		notes = s.index.NotesWithTag(tag)
	default:
		notes = s.index.Notes()
	}
	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return summarize(notes)
}

// SearchNotes returns summaries of notes matching the query.
func (s *Service) SearchNotes(_ context.Context, query string) []NoteSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return summarize(s.index.Search(query))
}

// Graph returns the link graph payload.
func (s *Service) Graph(_ context.Context) *models.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Graph()
}

// Backlinks returns the slugs linking to slug. Unknown targets, ones
// that neither exist nor are linked to, are not found.
func (s *Service) Backlinks(_ context.Context, slug string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bl, ok := s.index.Backlinks()[slug]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return models.StringsOrEmpty(bl), nil
}

// TagCounts returns every tag with the number of notes carrying it.
func (s *Service) TagCounts(_ context.Context) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for tag, slugs := range s.index.Tags() {
		counts[tag] = len(slugs)
	}
	return counts
}

// NotesWithTag returns summaries of the notes carrying tag.
func (s *Service) NotesWithTag(_ context.Context, tag string) []NoteSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return summarize(s.index.NotesWithTag(tag))
}

// RenderHTML renders a note body to HTML with GFM extensions.
func (s *Service) RenderHTML(_ context.Context, slug string) (*RenderedNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.index.Note(slug)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(note.Body), &buf); err != nil {
		return nil, fmt.Errorf("noteservice: render %s: %w", slug, err)
	}
	return &RenderedNote{Slug: slug, Title: note.Title, HTML: buf.String()}, nil
}

// Todos returns the scanned TK items, optionally only pending ones.
func (s *Service) Todos(_ context.Context, pendingOnly bool) []*todos.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.todoList.Items()
	if pendingOnly {
		items = s.todoList.Pending()
	}
	if items == nil {
		items = []*todos.Item{}
	}
	return items
}

// CaptureTodo appends one quick-capture line and rebuilds.
func (s *Service) CaptureTodo(ctx context.Context, description, sourceSlug string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", fmt.Errorf("%w: empty todo description", apperr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := todos.Append(s.index.Root(), s.todoFile, description, sourceSlug)
	if err != nil {
		return "", err
	}
	if err := s.rebuildLocked(ctx); err != nil {
		return line, err
	}
	s.emit(EventTodoCaptured, models.SlugFromPath(s.todoFile))
	return line, nil
}

// ResolveTodo marks the TK item at lineNo in the named note resolved.
// It reports false when there was nothing to rewrite, a missing file
// or an out-of-range line.
func (s *Service) ResolveTodo(ctx context.Context, sourceSlug string, lineNo int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := &todos.Item{SourceSlug: sourceSlug, LineNo: lineNo}
	if err := todos.Resolve(s.index.Root(), item); err != nil {
		return false, err
	}
	if !item.Resolved {
		return false, nil
	}
	if err := s.rebuildLocked(ctx); err != nil {
		return true, err
	}
	s.emit(EventNoteUpdated, sourceSlug)
	return true, nil
}

// Skills returns every skill in load order.
func (s *Service) Skills(_ context.Context) []*skills.Skill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skills.All()
}

// SearchSkills returns skills matching the query.
func (s *Service) SearchSkills(_ context.Context, query string) []*skills.Skill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skills.Search(query)
}

// SkillByTrigger returns skills registering the exact trigger.
func (s *Service) SkillByTrigger(_ context.Context, trigger string) []*skills.Skill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skills.ByTrigger(trigger)
}

// Shorthand runs one line of quick-capture shorthand: "tk …" captures
// a todo, anything else resolves against the skill index.
func (s *Service) Shorthand(ctx context.Context, text string) (*ShorthandResult, error) {
	if description, ok := todos.ParseCapture(text); ok {
		line, err := s.CaptureTodo(ctx, description, "")
		if err != nil {
			return nil, err
		}
		return &ShorthandResult{Action: ShorthandCaptured, Line: line}, nil
	}

	s.mu.RLock()
	matches := s.skills.ResolveShorthand(text)
	s.mu.RUnlock()
	return &ShorthandResult{Action: ShorthandSkills, Skills: matches}, nil
}

// CanvasSnapshot lays the current index out as a canvas document.
func (s *Service) CanvasSnapshot(_ context.Context) *canvas.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return canvas.BuildSnapshot(s.index)
}

var errNoQueryLayer = errors.New("noteservice: query layer not configured")

// TableView delegates to the query layer.
func (s *Service) TableView(ctx context.Context, opts vaultdb.TableOpts) (*vaultdb.Result, error) {
	if s.db == nil {
		return nil, errNoQueryLayer
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.TableView(ctx, opts)
}

// KanbanView delegates to the query layer.
func (s *Service) KanbanView(ctx context.Context, groupBy string) ([]vaultdb.KanbanGroup, error) {
	if s.db == nil {
		return nil, errNoQueryLayer
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.KanbanView(ctx, groupBy)
}

// GalleryView delegates to the query layer.
func (s *Service) GalleryView(ctx context.Context, filterTag string) ([]vaultdb.Card, error) {
	if s.db == nil {
		return nil, errNoQueryLayer
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.GalleryView(ctx, filterTag)
}

// FrontmatterKeys delegates to the query layer.
func (s *Service) FrontmatterKeys(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, errNoQueryLayer
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.FrontmatterKeys(ctx)
}

// TagUsage delegates to the query layer for tag counts ordered by use.
func (s *Service) TagUsage(ctx context.Context) ([]vaultdb.TagCount, error) {
	if s.db == nil {
		return nil, errNoQueryLayer
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.TagCounts(ctx)
}

// Plugins returns the loaded plugins.
func (s *Service) Plugins() []*plugin.Plugin {
	if s.registry == nil {
		return nil
	}
	return s.registry.Plugins()
}

// PluginState returns the state payload of the plugin with the given
// id. Plugins that expose no state are treated as not found.
func (s *Service) PluginState(id string) (any, error) {
	if s.registry == nil {
		return nil, apperr.ErrNotFound
	}
	p, ok := s.registry.Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	provider, ok := p.Impl.(plugin.StateProvider)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return provider.PluginState(), nil
}

// SyncPush pushes every note and the canvas snapshot to the backend.
func (s *Service) SyncPush(ctx context.Context, backend vaultsync.Backend) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vaultsync.NewSyncer(backend, s.logger).PushAll(ctx, s.index)
}

// SyncPull writes every remote note into the vault, then rebuilds.
func (s *Service) SyncPull(ctx context.Context, backend vaultsync.Backend) (int, error) {
	n, err := vaultsync.NewSyncer(backend, s.logger).Pull(ctx, s.store)
	if err != nil {
		return n, err
	}
	return n, s.Rebuild(ctx)
}

func (s *Service) emit(kind, slug string) {
	if s.notify != nil {
		s.notify(kind, slug)
	}
}

// relPath converts a note's indexed path back to vault-relative form
// for the storage provider.
func (s *Service) relPath(note *models.Note) string {
	rel, err := filepath.Rel(s.index.Root(), note.Path)
	if err != nil {
		return note.Slug + ".md"
	}
	return rel
}

func (s *Service) detailLocked(note *models.Note, sum string) *NoteDetail {
	return &NoteDetail{
		Slug:        note.Slug,
		Title:       note.Title,
		Path:        s.relPath(note),
		Body:        note.Body,
		Tags:        models.StringsOrEmpty(note.Tags),
		Links:       models.StringsOrEmpty(note.Links),
		Frontmatter: note.Frontmatter,
		Backlinks:   models.StringsOrEmpty(s.index.BacklinksFor(note.Slug)),
		Checksum:    sum,
	}
}

func summarize(notes []*models.Note) []NoteSummary {
	out := make([]NoteSummary, len(notes))
	for i, note := range notes {
		out[i] = NoteSummary{
			Slug:  note.Slug,
			Title: note.Title,
			Tags:  models.StringsOrEmpty(note.Tags),
			Links: models.StringsOrEmpty(note.Links),
		}
	}
	return out
}

func filterByTag(notes []*models.Note, tag string) []*models.Note {
	var out []*models.Note
	for _, note := range notes {
		if slices.Contains(note.Tags, tag) {
			out = append(out, note)
		}
	}
	return out
}

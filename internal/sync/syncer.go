package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/othala/internal/canvas"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/vault"
)

// Syncer drives whole-vault push and pull flows over a Backend.
type Syncer struct {
	backend Backend
	logger  *slog.Logger
}

// NewSyncer wraps a backend. A nil logger falls back to slog.Default.
func NewSyncer(backend Backend, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{backend: backend, logger: logger}
}

// PushAll pushes every indexed note, then a fresh canvas snapshot
// under the default canvas id. Returns the number of notes pushed.
func (s *Syncer) PushAll(ctx context.Context, idx *vault.Index) (int, error) {
	pushed := 0
	for _, note := range idx.Notes() {
		if err := s.backend.PushNote(ctx, note); err != nil {
			return pushed, err
		}
		pushed++
		s.logger.Debug("pushed note", "slug", note.Slug)
	}

	snapshot, err := canvas.EncodeSnapshot(canvas.BuildSnapshot(idx))
	if err != nil {
		return pushed, err
	}
	if err := s.backend.PushCanvas(ctx, DefaultCanvasID, snapshot); err != nil {
		return pushed, err
	}

	s.logger.Info("sync push complete", "notes", pushed)
	return pushed, nil
}

// Pull fetches every remote note and materializes each as a Markdown
// file under the store: frontmatter with title and tags, then the
// body. Returns the number of files written; the caller rebuilds the
// index afterwards.
func (s *Syncer) Pull(ctx context.Context, store storage.Provider) (int, error) {
	records, err := s.backend.PullAllNotes(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, rec := range records {
		content, err := materializeNote(rec)
		if err != nil {
			return written, err
		}
		if err := store.Write(rec.Slug+".md", content); err != nil {
			return written, fmt.Errorf("sync: materialize %s: %w", rec.Slug, err)
		}
		written++
		s.logger.Debug("pulled note", "slug", rec.Slug)
	}

	s.logger.Info("sync pull complete", "notes", written)
	return written, nil
}

type pulledMeta struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags,flow"`
}

func materializeNote(rec *NoteRecord) ([]byte, error) {
	meta, err := yaml.Marshal(pulledMeta{Title: rec.Title, Tags: models.StringsOrEmpty(rec.Tags)})
	if err != nil {
		return nil, fmt.Errorf("sync: encode frontmatter for %s: %w", rec.Slug, err)
	}
	// Parsed bodies keep the newline that follows the closing
	// delimiter; trimming it here keeps push/pull cycles stable
	// instead of growing a blank line per round trip.
	body := strings.TrimLeft(rec.Body, "\n")
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(meta)
	b.WriteString("---\n\n")
	b.WriteString(body)
	return []byte(b.String()), nil
}

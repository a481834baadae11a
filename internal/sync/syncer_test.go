package sync

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/othala/internal/canvas"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/vault"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testIndex(t *testing.T, files map[string]string) *vault.Index {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	idx := vault.New(root, quietLogger())
	if err := idx.Build(); err != nil {
		t.Fatalf("build index: %v", err)
	}
	return idx
}

func TestSyncer_PushAll(t *testing.T) {
	idx := testIndex(t, map[string]string{
		"alpha.md": "---\ntags: [one]\n---\n\nLinks [[beta]].\n",
		"beta.md":  "Plain body.\n",
	})
	cat := testCatalog(t)
	ctx := context.Background()

	pushed, err := NewSyncer(cat, quietLogger()).PushAll(ctx, idx)
	if err != nil {
		t.Fatalf("push all: %v", err)
	}
	if pushed != 2 {
		t.Fatalf("pushed = %d, want 2", pushed)
	}

	slugs, err := cat.ListNotes(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(slugs, []string{"alpha", "beta"}) {
		t.Fatalf("slugs = %v", slugs)
	}

	state, err := cat.PullCanvas(ctx, DefaultCanvasID)
	if err != nil {
		t.Fatalf("pull canvas: %v", err)
	}
	if state == nil {
		t.Fatal("no canvas snapshot pushed")
	}
	snap, err := canvas.DecodeSnapshot(state)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	// One page, two cards, one arrow.
	if len(snap.Store) != 4 {
		t.Fatalf("snapshot has %d records, want 4", len(snap.Store))
	}
}

func TestSyncer_Pull_MaterializesNotes(t *testing.T) {
	cat := testCatalog(t)
	ctx := context.Background()

	remote := &models.Note{
		Slug:  "remote",
		Title: "Remote Note",
		Body:  "Hello [[world]].\n",
		Tags:  []string{"synced", "inbox"},
	}
	if err := cat.PushNote(ctx, remote); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}

	written, err := NewSyncer(cat, quietLogger()).Pull(ctx, store)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if written != 1 {
		t.Fatalf("written = %d, want 1", written)
	}

	note, err := parser.ParseNote(filepath.Join(root, "remote.md"))
	if err != nil {
		t.Fatalf("parse materialized note: %v", err)
	}
	if note.Title != "Remote Note" {
		t.Errorf("title = %q", note.Title)
	}
	if !reflect.DeepEqual(note.Tags, []string{"synced", "inbox"}) {
		t.Errorf("tags = %v", note.Tags)
	}
	// The parsed body keeps the newline after the closing delimiter.
	if note.Body != "\nHello [[world]].\n" {
		t.Errorf("body = %q", note.Body)
	}
	if !reflect.DeepEqual(note.Links, []string{"world"}) {
		t.Errorf("links = %v", note.Links)
	}
}

func TestSyncer_Pull_EmptyBackend(t *testing.T) {
	cat := testCatalog(t)

	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	written, err := NewSyncer(cat, quietLogger()).Pull(context.Background(), store)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if written != 0 {
		t.Fatalf("written = %d, want 0", written)
	}
}

// Package sync moves notes and canvas snapshots between the local
// vault and a remote store. Two backends ship: an HTTP client for an
// edge worker gateway and a local SQLite catalog.
package sync

import (
	"context"
	"encoding/json"

	"github.com/starford/othala/internal/models"
)

// Environment fallbacks, used when config leaves the fields empty.
const (
	EnvSyncURL     = "VAULT_SYNC_URL"
	EnvSyncToken   = "VAULT_SYNC_TOKEN"
	EnvCatalogPath = "VAULT_CATALOG_PATH"
)

// DefaultCanvasID names the snapshot pushed alongside the notes.
const DefaultCanvasID = "main"

// NoteRecord is the sync-side projection of a note.
type NoteRecord struct {
	Slug  string   `json:"slug"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
	Links []string `json:"links"`
}

// Backend stores and retrieves notes and canvas snapshots. Pull
// methods return nil, nil when the record does not exist.
type Backend interface {
	PushNote(ctx context.Context, note *models.Note) error
	PullNote(ctx context.Context, slug string) (*NoteRecord, error)
	ListNotes(ctx context.Context) ([]string, error)
	PullAllNotes(ctx context.Context) ([]*NoteRecord, error)
	PushCanvas(ctx context.Context, canvasID string, state json.RawMessage) error
	PullCanvas(ctx context.Context, canvasID string) (json.RawMessage, error)
}

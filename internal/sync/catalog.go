package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/othala/internal/models"
)

const catalogSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	slug       TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	links      TEXT NOT NULL DEFAULT '[]',
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS canvas_state (
	canvas_id  TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// Catalog is a local-first sync backend: a SQLite file that doubles as
// an offline replica. Useful on its own and as a staging area before a
// remote push.
type Catalog struct {
	conn *sql.DB
}

var _ Backend = (*Catalog)(nil)

// NewCatalog opens (or creates) the catalog database. An empty path
// falls back to VAULT_CATALOG_PATH, then to an in-memory database.
func NewCatalog(path string) (*Catalog, error) {
	if path == "" {
		path = os.Getenv(EnvCatalogPath)
	}
	if path == "" {
		path = ":memory:"
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sync: open catalog: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(catalogSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sync: ensure catalog schema: %w", err)
	}
	return &Catalog{conn: conn}, nil
}

// Close closes the catalog database.
func (c *Catalog) Close() error {
	return c.conn.Close()
}

// PushNote upserts a note record.
func (c *Catalog) PushNote(ctx context.Context, note *models.Note) error {
	tagsJSON, _ := json.Marshal(models.StringsOrEmpty(note.Tags))
	linksJSON, _ := json.Marshal(models.StringsOrEmpty(note.Links))
	_, err := c.conn.ExecContext(ctx, `
		INSERT INTO notes (slug, title, body, tags, links, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (slug) DO UPDATE SET
			title      = excluded.title,
			body       = excluded.body,
			tags       = excluded.tags,
			links      = excluded.links,
			updated_at = datetime('now')`,
		note.Slug, note.Title, note.Body, string(tagsJSON), string(linksJSON))
	if err != nil {
		return fmt.Errorf("sync: push note %s: %w", note.Slug, err)
	}
	return nil
}

// PullNote fetches one record; nil, nil when the catalog has none.
func (c *Catalog) PullNote(ctx context.Context, slug string) (*NoteRecord, error) {
	row := c.conn.QueryRowContext(ctx,
		`SELECT slug, title, body, tags, links FROM notes WHERE slug = ?`, slug)
	rec, err := scanNoteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sync: pull note %s: %w", slug, err)
	}
	return rec, nil
}

// ListNotes returns every stored slug, sorted.
func (c *Catalog) ListNotes(ctx context.Context) ([]string, error) {
	rows, err := c.conn.QueryContext(ctx, `SELECT slug FROM notes ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("sync: list notes: %w", err)
	}
	defer rows.Close()

	slugs := []string{}
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("sync: list notes scan: %w", err)
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sync: list notes rows: %w", err)
	}
	return slugs, nil
}

// PullAllNotes returns every stored record, sorted by slug.
func (c *Catalog) PullAllNotes(ctx context.Context) ([]*NoteRecord, error) {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT slug, title, body, tags, links FROM notes ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("sync: pull all notes: %w", err)
	}
	defer rows.Close()

	records := []*NoteRecord{}
	for rows.Next() {
		rec, err := scanNoteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sync: pull all notes scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sync: pull all notes rows: %w", err)
	}
	return records, nil
}

// PushCanvas upserts a canvas snapshot.
func (c *Catalog) PushCanvas(ctx context.Context, canvasID string, state json.RawMessage) error {
	_, err := c.conn.ExecContext(ctx, `
		INSERT INTO canvas_state (canvas_id, state, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT (canvas_id) DO UPDATE SET
			state      = excluded.state,
			updated_at = datetime('now')`,
		canvasID, string(state))
	if err != nil {
		return fmt.Errorf("sync: push canvas %s: %w", canvasID, err)
	}
	return nil
}

// PullCanvas fetches a snapshot; nil, nil when absent.
func (c *Catalog) PullCanvas(ctx context.Context, canvasID string) (json.RawMessage, error) {
	var state string
	err := c.conn.QueryRowContext(ctx,
		`SELECT state FROM canvas_state WHERE canvas_id = ?`, canvasID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sync: pull canvas %s: %w", canvasID, err)
	}
	return json.RawMessage(state), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNoteRecord(row rowScanner) (*NoteRecord, error) {
	var (
		rec       NoteRecord
		tagsJSON  string
		linksJSON string
	)
	if err := row.Scan(&rec.Slug, &rec.Title, &rec.Body, &tagsJSON, &linksJSON); err != nil {
		return nil, err
	}
	rec.Tags = decodeList(tagsJSON)
	rec.Links = decodeList(linksJSON)
	return &rec, nil
}

func decodeList(raw string) []string {
	list := []string{}
	if raw == "" {
		return list
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return []string{}
	}
	return list
}

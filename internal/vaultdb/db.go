// Package vaultdb projects the in-memory vault index into SQLite so
// notes can be queried relationally: raw SQL plus canned table, kanban,
// and gallery views over slugs, tags, and frontmatter.
package vaultdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/othala/internal/vault"
)

const notesSchemaSQL = `
CREATE TABLE notes (
	slug        TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '[]',
	links       TEXT NOT NULL DEFAULT '[]',
	frontmatter TEXT NOT NULL DEFAULT '{}'
);
`

// DB wraps a sql.DB holding the projected notes table.
type DB struct {
	conn *sql.DB
}

// Open opens the SQLite database (":memory:" by default in config).
// The notes table is created on the first Refresh.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("vaultdb: open db: %w", err)
	}
	// In-memory DSNs get a fresh database per connection, so pin the
	// pool to a single one.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("vaultdb: ping: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Refresh drops and repopulates the notes table from the index. Call
// after every index rebuild; the projection is replaced wholesale.
func (db *DB) Refresh(ctx context.Context, idx *vault.Index) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vaultdb: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DROP TABLE IF EXISTS notes`); err != nil {
		return fmt.Errorf("vaultdb: drop notes: %w", err)
	}
	if _, err := tx.Exec(notesSchemaSQL); err != nil {
		return fmt.Errorf("vaultdb: create notes: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO notes (slug, title, body, tags, links, frontmatter) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("vaultdb: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, note := range idx.Notes() {
		tagsJSON, _ := json.Marshal(emptyIfNil(note.Tags))
		linksJSON, _ := json.Marshal(emptyIfNil(note.Links))
		fmJSON, err := json.Marshal(note.Frontmatter)
		if err != nil {
			// Frontmatter with non-JSON-encodable values (rare YAML
			// corner cases) projects as an empty object.
			fmJSON = []byte("{}")
		}
		if _, err := stmt.Exec(note.Slug, note.Title, note.Body, string(tagsJSON), string(linksJSON), string(fmJSON)); err != nil {
			return fmt.Errorf("vaultdb: insert note %s: %w", note.Slug, err)
		}
	}

	return tx.Commit()
}

func emptyIfNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

// Result is a generic tabular query result.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Query runs a raw SQL query against the projection and returns all
// rows. Intended for local exploration; the HTTP surface only exposes
// the canned views.
func (db *DB) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vaultdb: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("vaultdb: columns: %w", err)
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("vaultdb: scan: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vaultdb: rows: %w", err)
	}
	return result, nil
}

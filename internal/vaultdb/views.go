package vaultdb

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/othala/internal/apperr"
)

// noteColumns is the set of columns the canned views may select and
// order by. Everything else is rejected before it reaches SQL.
var noteColumns = map[string]bool{
	"slug":        true,
	"title":       true,
	"body":        true,
	"tags":        true,
	"links":       true,
	"frontmatter": true,
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// TableOpts narrows and shapes a TableView query.
type TableOpts struct {
	// Columns to select; defaults to slug, title, tags, links.
	Columns []string
	// FilterTag keeps only notes carrying the tag.
	FilterTag string
	// Search keeps only notes whose title or body contains the text.
	Search string
	// OrderBy names the sort column; defaults to title.
	OrderBy string
}

// TableView returns notes as a spreadsheet-style table.
func (db *DB) TableView(ctx context.Context, opts TableOpts) (*Result, error) {
	cols := opts.Columns
	if len(cols) == 0 {
		cols = []string{"slug", "title", "tags", "links"}
	}
	for _, c := range cols {
		if !noteColumns[c] {
			return nil, fmt.Errorf("vaultdb: unknown column %q: %w", c, apperr.ErrValidation)
		}
	}
	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = "title"
	}
	if !noteColumns[orderBy] {
		return nil, fmt.Errorf("vaultdb: unknown order column %q: %w", orderBy, apperr.ErrValidation)
	}

	var (
		where []string
		args  []any
	)
	if opts.FilterTag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)`)
		args = append(args, opts.FilterTag)
	}
	if opts.Search != "" {
		where = append(where, `(title LIKE ? OR body LIKE ?)`)
		needle := "%" + opts.Search + "%"
		args = append(args, needle, needle)
	}

	query := "SELECT " + strings.Join(cols, ", ") + " FROM notes"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderBy

	return db.Query(ctx, query, args...)
}

// Card is one note in a kanban or gallery view.
type Card struct {
	Slug  string   `json:"slug"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

// KanbanGroup is one column of a kanban board.
type KanbanGroup struct {
	Name  string `json:"name"`
	Cards []Card `json:"cards"`
}

// KanbanView groups notes by a frontmatter key (default "status").
// Notes without the key land in the "(none)" group. Groups and cards
// come back sorted by group name then title.
func (db *DB) KanbanView(ctx context.Context, groupBy string) ([]KanbanGroup, error) {
	if groupBy == "" {
		groupBy = "status"
	}
	if !identRe.MatchString(groupBy) {
		return nil, fmt.Errorf("vaultdb: invalid group key %q: %w", groupBy, apperr.ErrValidation)
	}

	// The quoted path form tolerates keys with hyphens.
	query := `SELECT slug, title, tags,
		COALESCE(json_extract(frontmatter, '$."` + groupBy + `"'), '(none)') AS grp
		FROM notes ORDER BY grp, title`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vaultdb: kanban query: %w", err)
	}
	defer rows.Close()

	var groups []KanbanGroup
	for rows.Next() {
		var (
			card     Card
			tagsJSON string
			grp      any
		)
		if err := rows.Scan(&card.Slug, &card.Title, &tagsJSON, &grp); err != nil {
			return nil, fmt.Errorf("vaultdb: kanban scan: %w", err)
		}
		card.Tags = decodeStringList(tagsJSON)
		if b, ok := grp.([]byte); ok {
			grp = string(b)
		}
		name := fmt.Sprint(grp)
		if len(groups) == 0 || groups[len(groups)-1].Name != name {
			groups = append(groups, KanbanGroup{Name: name})
		}
		groups[len(groups)-1].Cards = append(groups[len(groups)-1].Cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vaultdb: kanban rows: %w", err)
	}
	return groups, nil
}

// GalleryView returns notes as cards, optionally narrowed to a tag.
func (db *DB) GalleryView(ctx context.Context, filterTag string) ([]Card, error) {
	var (
		where string
		args  []any
	)
	if filterTag != "" {
		where = ` WHERE EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)`
		args = append(args, filterTag)
	}
	rows, err := db.conn.QueryContext(ctx, `SELECT slug, title, tags FROM notes`+where+` ORDER BY title`, args...)
	if err != nil {
		return nil, fmt.Errorf("vaultdb: gallery query: %w", err)
	}
	defer rows.Close()

	cards := []Card{}
	for rows.Next() {
		var (
			card     Card
			tagsJSON string
		)
		if err := rows.Scan(&card.Slug, &card.Title, &tagsJSON); err != nil {
			return nil, fmt.Errorf("vaultdb: gallery scan: %w", err)
		}
		card.Tags = decodeStringList(tagsJSON)
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vaultdb: gallery rows: %w", err)
	}
	return cards, nil
}

// FrontmatterKeys lists every distinct frontmatter key across the
// vault, sorted.
func (db *DB) FrontmatterKeys(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT j.key FROM notes, json_each(notes.frontmatter) AS j ORDER BY j.key`)
	if err != nil {
		return nil, fmt.Errorf("vaultdb: frontmatter keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("vaultdb: frontmatter keys scan: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vaultdb: frontmatter keys rows: %w", err)
	}
	return keys, nil
}

// TagCount pairs a tag with how many notes carry it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TagCounts returns tag usage, most-used first, ties broken by tag.
func (db *DB) TagCounts(ctx context.Context) ([]TagCount, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT j.value AS tag, COUNT(*) AS n FROM notes, json_each(notes.tags) AS j
		 GROUP BY j.value ORDER BY n DESC, tag ASC`)
	if err != nil {
		return nil, fmt.Errorf("vaultdb: tag counts: %w", err)
	}
	defer rows.Close()

	counts := []TagCount{}
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, fmt.Errorf("vaultdb: tag counts scan: %w", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vaultdb: tag counts rows: %w", err)
	}
	return counts, nil
}

func decodeStringList(raw string) []string {
	list := []string{}
	if raw == "" {
		return list
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return []string{}
	}
	return list
}

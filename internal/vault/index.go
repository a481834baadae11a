// Package vault maintains the in-memory index of a Markdown vault:
// notes by slug, backlinks, tags, and the link graph. The index is
// rebuilt by full rescan; there is no incremental patching.
package vault

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
)

// Index holds the scanned state of a vault directory. Notes keep their
// scan (insertion) order; backlink and tag lists keep the order sources
// were encountered in.
type Index struct {
	root   string
	logger *slog.Logger

	notes     *orderedmap.OrderedMap[string, *models.Note]
	backlinks map[string][]string
	tags      map[string][]string
}

// New creates an empty index rooted at the vault directory. Call Build
// to populate it.
func New(root string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		root:      root,
		logger:    logger,
		notes:     orderedmap.New[string, *models.Note](),
		backlinks: make(map[string][]string),
		tags:      make(map[string][]string),
	}
}

// Root returns the vault directory the index scans.
func (idx *Index) Root() string { return idx.root }

// Build rescans the vault and replaces the index state wholesale.
// Files are parsed in lexicographic path order, so slug collisions
// resolve last-write-wins deterministically. A file that cannot be
// read is logged and skipped; it does not abort the build.
func (idx *Index) Build() error {
	paths, err := idx.collectPaths()
	if err != nil {
		return fmt.Errorf("vault: scan %s: %w", idx.root, err)
	}

	notes := orderedmap.New[string, *models.Note]()
	for _, path := range paths {
		note, parseErr := parser.ParseNote(path)
		if parseErr != nil {
			idx.logger.Warn("vault: skipping unreadable note",
				slog.String("path", path),
				slog.String("error", parseErr.Error()))
			continue
		}
		notes.Set(note.Slug, note)
	}

	backlinks := make(map[string][]string, notes.Len())
	for pair := notes.Oldest(); pair != nil; pair = pair.Next() {
		backlinks[pair.Key] = []string{}
	}
	tags := make(map[string][]string)

	for pair := notes.Oldest(); pair != nil; pair = pair.Next() {
		slug, note := pair.Key, pair.Value

		seenTargets := make(map[string]struct{}, len(note.Links))
		for _, raw := range note.Links {
			target := normalizeLink(raw)
			if _, dup := seenTargets[target]; dup {
				continue
			}
			seenTargets[target] = struct{}{}
			backlinks[target] = append(backlinks[target], slug)
		}

		for _, tag := range note.Tags {
			if !slices.Contains(tags[tag], slug) {
				tags[tag] = append(tags[tag], slug)
			}
		}
	}

	idx.notes = notes
	idx.backlinks = backlinks
	idx.tags = tags

	idx.logger.Debug("vault: rebuilt",
		slog.Int("notes", notes.Len()),
		slog.Int("tags", len(tags)))
	return nil
}

// collectPaths gathers every .md file under root, sorted by full path.
func (idx *Index) collectPaths() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(idx.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// normalizeLink reduces a wikilink target to a slug. Path-like targets
// (containing a slash or ending in .md) collapse to their stem; plain
// targets pass through unchanged.
func normalizeLink(link string) string {
	if strings.Contains(link, "/") || strings.HasSuffix(link, ".md") {
		base := filepath.Base(link)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return link
}

// Note returns the indexed note for slug.
func (idx *Index) Note(slug string) (*models.Note, bool) {
	return idx.notes.Get(slug)
}

// Len reports the number of indexed notes.
func (idx *Index) Len() int { return idx.notes.Len() }

// Slugs returns all note slugs in scan order.
func (idx *Index) Slugs() []string {
	out := make([]string, 0, idx.notes.Len())
	for pair := idx.notes.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Notes returns all notes in scan order. Callers must not mutate them.
func (idx *Index) Notes() []*models.Note {
	out := make([]*models.Note, 0, idx.notes.Len())
	for pair := idx.notes.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Backlinks returns the full backlink map: target slug to ordered
// source slugs. Every indexed slug has an entry; dangling targets that
// are linked but have no note appear too.
func (idx *Index) Backlinks() map[string][]string { return idx.backlinks }

// BacklinksFor returns the slugs that link to slug, in scan order.
func (idx *Index) BacklinksFor(slug string) []string { return idx.backlinks[slug] }

// Tags returns the tag map: tag to ordered slugs.
func (idx *Index) Tags() map[string][]string { return idx.tags }

// NotesWithTag returns the notes carrying tag, in scan order.
func (idx *Index) NotesWithTag(tag string) []*models.Note {
	slugs := idx.tags[tag]
	out := make([]*models.Note, 0, len(slugs))
	for _, slug := range slugs {
		if note, ok := idx.notes.Get(slug); ok {
			out = append(out, note)
		}
	}
	return out
}

// Edges returns every (source, normalized target) link pair in scan
// order. Edges are not de-duplicated: a note linking to the same
// target twice yields two pairs.
func (idx *Index) Edges() [][2]string {
	var out [][2]string
	for pair := idx.notes.Oldest(); pair != nil; pair = pair.Next() {
		for _, raw := range pair.Value.Links {
			out = append(out, [2]string{pair.Key, normalizeLink(raw)})
		}
	}
	return out
}

// Search returns notes whose title or body contains the query,
// case-insensitively, in scan order. An empty query matches everything.
func (idx *Index) Search(query string) []*models.Note {
	q := strings.ToLower(query)
	var out []*models.Note
	for pair := idx.notes.Oldest(); pair != nil; pair = pair.Next() {
		note := pair.Value
		if strings.Contains(strings.ToLower(note.Title), q) ||
			strings.Contains(strings.ToLower(note.Body), q) {
			out = append(out, note)
		}
	}
	return out
}

// Graph assembles the link graph payload: one node per indexed note
// plus one per dangling backlink target, and one edge per link pair.
func (idx *Index) Graph() *models.Graph {
	g := &models.Graph{
		Nodes: make([]models.GraphNode, 0, idx.notes.Len()),
		Edges: make([]models.GraphEdge, 0),
	}
	for pair := idx.notes.Oldest(); pair != nil; pair = pair.Next() {
		g.Nodes = append(g.Nodes, models.GraphNode{
			Slug:  pair.Key,
			Title: pair.Value.Title,
			Tags:  pair.Value.Tags,
		})
	}

	dangling := make([]string, 0)
	for target := range idx.backlinks {
		if _, ok := idx.notes.Get(target); !ok {
			dangling = append(dangling, target)
		}
	}
	sort.Strings(dangling)
	for _, target := range dangling {
		g.Nodes = append(g.Nodes, models.GraphNode{Slug: target, Title: target, Missing: true})
	}

	for _, edge := range idx.Edges() {
		g.Edges = append(g.Edges, models.GraphEdge{From: edge[0], To: edge[1]})
	}
	return g
}

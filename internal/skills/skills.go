// Package skills indexes skill descriptor files: Markdown documents
// whose frontmatter declares an id, triggers, and a description of
// intent. Skills live in their own directory and power the shorthand
// command resolution.
package skills

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
)

// consumed frontmatter keys; everything else lands in Meta.
var descriptorKeys = map[string]struct{}{
	"skill":       {},
	"name":        {},
	"description": {},
	"triggers":    {},
	"tags":        {},
}

// Skill is one parsed descriptor file.
type Skill struct {
	Path        string         `json:"-"`
	Slug        string         `json:"slug"`
	ID          string         `json:"skill_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Triggers    []string       `json:"triggers"`
	Tags        []string       `json:"tags"`
	Body        string         `json:"-"`
	Meta        map[string]any `json:"-"`
}

// Index scans a skills directory and answers trigger and search
// queries over the descriptors found there.
type Index struct {
	dir    string
	logger *slog.Logger

	order  []*Skill
	bySlug map[string]*Skill
}

// New creates an empty skill index over dir. Call Build to populate.
func New(dir string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		dir:    dir,
		logger: logger,
		bySlug: make(map[string]*Skill),
	}
}

// Dir returns the skills directory.
func (idx *Index) Dir() string { return idx.dir }

// Build rescans the skills directory, replacing the index state. A
// missing directory just yields an empty index. A descriptor that
// cannot be read is logged and skipped so one bad file never takes
// down the rest.
func (idx *Index) Build() error {
	idx.order = nil
	idx.bySlug = make(map[string]*Skill)

	if _, err := os.Stat(idx.dir); os.IsNotExist(err) {
		return nil
	}

	var paths []string
	err := filepath.WalkDir(idx.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("skills: scan %s: %w", idx.dir, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		skill, parseErr := parseSkill(path)
		if parseErr != nil {
			idx.logger.Warn("skills: failed to load skill",
				slog.String("path", path),
				slog.String("error", parseErr.Error()))
			continue
		}
		if _, dup := idx.bySlug[skill.Slug]; dup {
			// Later path wins, but keep the original position.
			for i, existing := range idx.order {
				if existing.Slug == skill.Slug {
					idx.order[i] = skill
					break
				}
			}
		} else {
			idx.order = append(idx.order, skill)
		}
		idx.bySlug[skill.Slug] = skill
	}
	return nil
}

// parseSkill reads and assembles one descriptor.
func parseSkill(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	meta, body := parser.ParseFrontmatter(string(data))
	slug := models.SlugFromPath(path)

	id := slug
	if s, ok := meta["skill"].(string); ok && s != "" {
		id = s
	}
	name := slug
	if s, ok := meta["name"].(string); ok && s != "" {
		name = s
	}
	description := ""
	if s, ok := meta["description"].(string); ok {
		description = s
	}

	rest := make(map[string]any)
	for k, v := range meta {
		if _, consumed := descriptorKeys[k]; !consumed {
			rest[k] = v
		}
	}

	return &Skill{
		Path:        path,
		Slug:        slug,
		ID:          id,
		Name:        name,
		Description: description,
		Triggers:    parser.StringList(meta["triggers"]),
		Tags:        parser.StringList(meta["tags"]),
		Body:        body,
		Meta:        rest,
	}, nil
}

// All returns every skill in scan order.
func (idx *Index) All() []*Skill { return idx.order }

// Len reports the number of indexed skills.
func (idx *Index) Len() int { return len(idx.order) }

// Get returns the skill with the given slug.
func (idx *Index) Get(slug string) (*Skill, bool) {
	s, ok := idx.bySlug[slug]
	return s, ok
}

// Search returns skills whose name, description, triggers, or tags
// contain the query, case-insensitively, in scan order.
func (idx *Index) Search(query string) []*Skill {
	q := strings.ToLower(query)
	var out []*Skill
	for _, s := range idx.order {
		if strings.Contains(strings.ToLower(s.Name), q) ||
			strings.Contains(strings.ToLower(s.Description), q) ||
			containsFold(s.Triggers, q) ||
			containsFold(s.Tags, q) {
			out = append(out, s)
		}
	}
	return out
}

// ByTrigger returns every skill declaring an exact case-insensitive
// trigger match, in scan order.
func (idx *Index) ByTrigger(trigger string) []*Skill {
	t := strings.ToLower(trigger)
	var out []*Skill
	for _, s := range idx.order {
		for _, tr := range s.Triggers {
			if strings.ToLower(tr) == t {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// ResolveShorthand maps free text to skills: exact trigger matches
// when any exist, otherwise a search fallback.
func (idx *Index) ResolveShorthand(text string) []*Skill {
	t := strings.ToLower(strings.TrimSpace(text))
	if exact := idx.ByTrigger(t); len(exact) > 0 {
		return exact
	}
	return idx.Search(t)
}

// containsFold reports whether any list item contains q (q already
// lowercased).
func containsFold(list []string, q string) bool {
	for _, item := range list {
		if strings.Contains(strings.ToLower(item), q) {
			return true
		}
	}
	return false
}

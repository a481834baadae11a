// Package parser extracts frontmatter, wikilinks, and tags from Markdown content.
package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/othala/internal/models"
)

var (
	// Frontmatter is only recognized at the very start of the file: an
	// opening --- line, at least one block line, and a closing --- line.
	// A bare ---\n---\n pair has no block line and is left in the body.
	frontmatterRe = regexp.MustCompile(`(?s)^---[ \t]*\n(.*?)\n---[ \t]*\n`)

	// [[Target]], [[Target|Alias]], and [[Target#Heading]] all resolve
	// to Target.
	wikilinkRe = regexp.MustCompile(`\[\[([^\]|#]+)(?:[|#][^\]]*)?\]\]`)

	// A #tag counts only at the start of the text or after a character
	// that is not a backtick, word character, slash, or hash. That keeps
	// code spans, URL fragments, and Markdown headings out.
	tagRe = regexp.MustCompile("(?:^|[^`\\w/#])#([\\w/-]+)")
)

// ParseFrontmatter splits raw note content into its YAML frontmatter
// mapping and the remaining body. When no block is present the mapping
// is empty and the content comes back unchanged. When the delimiters
// are well-formed but the YAML inside is malformed (or not a mapping),
// the mapping degrades to empty while the body is still stripped.
func ParseFrontmatter(content string) (map[string]any, string) {
	loc := frontmatterRe.FindStringSubmatchIndex(content)
	if loc == nil {
		return map[string]any{}, content
	}
	block := content[loc[2]:loc[3]]
	body := content[loc[1]:]

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil || fm == nil {
		return map[string]any{}, body
	}
	return fm, body
}

// ParseWikilinks returns the ordered, de-duplicated wikilink targets in
// text. Alias and heading suffixes are dropped; targets that trim to
// nothing are skipped. Targets are returned raw, not normalized.
func ParseWikilinks(text string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := strings.TrimSpace(m[1])
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// ParseTags returns the ordered, de-duplicated inline #tags in text,
// case preserved.
func ParseTags(text string) []string {
	matches := tagRe.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		tag := m[1]
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// StringList interprets a frontmatter value as a list of strings:
// either a YAML sequence (non-string items skipped) or a single
// comma-separated string. Items are trimmed and empties dropped.
func StringList(v any) []string {
	var out []string
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					out = append(out, s)
				}
			}
		}
	case string:
		for _, part := range strings.Split(val, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseNote reads the file at path and assembles a Note. The slug is
// the file stem; the title falls back to the slug when frontmatter has
// no usable title. Tags merge frontmatter tags with inline body tags,
// frontmatter first, first occurrence winning.
func ParseNote(path string) (*models.Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("parser: read note: %w", err)
	}

	fm, body := ParseFrontmatter(string(data))
	slug := models.SlugFromPath(path)

	title := slug
	if t, ok := fm["title"].(string); ok && t != "" {
		title = t
	}

	seen := make(map[string]struct{})
	var tags []string
	for _, t := range append(StringList(fm["tags"]), ParseTags(body)...) {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}

	return &models.Note{
		Path:        path,
		Slug:        slug,
		Title:       title,
		Body:        body,
		Tags:        tags,
		Links:       ParseWikilinks(body),
		Frontmatter: fm,
	}, nil
}

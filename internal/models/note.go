// Package models defines the domain types for Othala.
package models

import (
	"path/filepath"
	"strings"
)

// Note represents a parsed Markdown file in the vault.
type Note struct {
	Path        string         `json:"path"`
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Tags        []string       `json:"tags,omitempty"`
	Links       []string       `json:"links,omitempty"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// SlugFromPath derives a note's identity from its file path: the base
// name without the extension. "ideas/zettel.md" and "zettel.md" both
// map to "zettel".
func SlugFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// StringsOrEmpty returns the slice, or an empty one when nil, so JSON
// encodings stay lists instead of null.
func StringsOrEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

package parser

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseFrontmatter_Basic(t *testing.T) {
	fm, body := ParseFrontmatter("---\ntitle: Hello\ntags: [go, vault]\n---\n# Hello\nBody text.\n")
	if fm["title"] != "Hello" {
		t.Errorf("title = %v, want Hello", fm["title"])
	}
	if body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", body)
	}
}

func TestParseFrontmatter_None(t *testing.T) {
	content := "# Just a heading\nSome text.\n"
	fm, body := ParseFrontmatter(content)
	if len(fm) != 0 {
		t.Errorf("expected empty frontmatter, got %v", fm)
	}
	if body != content {
		t.Errorf("body changed: %q", body)
	}
}

func TestParseFrontmatter_NotAtStart(t *testing.T) {
	content := "\n---\ntitle: Late\n---\nBody\n"
	fm, body := ParseFrontmatter(content)
	if len(fm) != 0 {
		t.Errorf("block not at position 0 must be ignored, got %v", fm)
	}
	if body != content {
		t.Errorf("body changed: %q", body)
	}
}

func TestParseFrontmatter_InvalidYAMLStillStripsBody(t *testing.T) {
	fm, body := ParseFrontmatter("---\n: invalid: yaml: {{{\n---\nBody\n")
	if len(fm) != 0 {
		t.Errorf("expected empty frontmatter on invalid YAML, got %v", fm)
	}
	// The delimiters were well-formed, so the block is still stripped.
	if body != "Body\n" {
		t.Errorf("body = %q, want %q", body, "Body\n")
	}
}

func TestParseFrontmatter_EmptyBlockUnrecognized(t *testing.T) {
	content := "---\n---\nBody.\n"
	fm, body := ParseFrontmatter(content)
	if len(fm) != 0 {
		t.Errorf("frontmatter = %v, want empty", fm)
	}
	// Zero lines between delimiters is not a block; nothing is stripped.
	if body != content {
		t.Errorf("body = %q, want unchanged content", body)
	}
}

func TestParseFrontmatter_NonMappingYAML(t *testing.T) {
	fm, body := ParseFrontmatter("---\n- a\n- b\n---\nBody\n")
	if len(fm) != 0 {
		t.Errorf("expected empty frontmatter for sequence YAML, got %v", fm)
	}
	if body != "Body\n" {
		t.Errorf("body = %q, want %q", body, "Body\n")
	}
}

func TestParseWikilinks_Dedup(t *testing.T) {
	links := ParseWikilinks("See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again.")
	want := []string{"Note A", "Note B"}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("links = %v, want %v", links, want)
	}
}

func TestParseWikilinks_HeadingSuffix(t *testing.T) {
	links := ParseWikilinks("jump to [[index|Home Page]] or [[guide#Setup]]")
	want := []string{"index", "guide"}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("links = %v, want %v", links, want)
	}
}

func TestParseWikilinks_EmptyTarget(t *testing.T) {
	links := ParseWikilinks("see [[ ]] and [[|alias]]")
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}

func TestParseTags_Exclusions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"basic", "work on #vault today", []string{"vault"}},
		{"start of text", "#first thing", []string{"first"}},
		{"heading not a tag", "## Heading\ntext #real", []string{"real"}},
		{"code span excluded", "run `#include` then #go", []string{"go"}},
		{"url fragment excluded", "see page#section and #ok", []string{"ok"}},
		{"word char excluded", "foo#bar #baz", []string{"baz"}},
		{"dedup ordered", "#a #b #a", []string{"a", "b"}},
		{"hyphen and underscore", "#multi-word_tag", []string{"multi-word_tag"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTags(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTags(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseTags_NestedPath(t *testing.T) {
	got := ParseTags("uses #tools/marimo daily")
	want := []string{"tools/marimo"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestStringList(t *testing.T) {
	if got := StringList([]any{"a", " b ", ""}); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("list form = %v", got)
	}
	if got := StringList("x, y ,, z"); !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
		t.Errorf("comma form = %v", got)
	}
	if got := StringList(nil); got != nil {
		t.Errorf("nil form = %v", got)
	}
}

func TestParseNote_Full(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zettel.md")
	content := "---\ntitle: My Zettel\ntags: [alpha]\n---\nLinks to [[Other Note]] with #beta and #alpha.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	note, err := ParseNote(path)
	if err != nil {
		t.Fatalf("ParseNote: %v", err)
	}
	if note.Slug != "zettel" {
		t.Errorf("slug = %q, want zettel", note.Slug)
	}
	if note.Title != "My Zettel" {
		t.Errorf("title = %q", note.Title)
	}
	if want := []string{"alpha", "beta"}; !reflect.DeepEqual(note.Tags, want) {
		t.Errorf("tags = %v, want %v", note.Tags, want)
	}
	if want := []string{"Other Note"}; !reflect.DeepEqual(note.Links, want) {
		t.Errorf("links = %v, want %v", note.Links, want)
	}
}

func TestParseNote_TitleFallsBackToSlug(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "untitled-note.md")
	if err := os.WriteFile(path, []byte("plain body, no frontmatter\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	note, err := ParseNote(path)
	if err != nil {
		t.Fatalf("ParseNote: %v", err)
	}
	if note.Title != "untitled-note" {
		t.Errorf("title = %q, want untitled-note", note.Title)
	}
	if len(note.Frontmatter) != 0 {
		t.Errorf("frontmatter = %v, want empty", note.Frontmatter)
	}
}

func TestParseNote_CommaSeparatedTags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "n.md")
	if err := os.WriteFile(path, []byte("---\ntags: one, two\n---\nbody\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	note, err := ParseNote(path)
	if err != nil {
		t.Fatalf("ParseNote: %v", err)
	}
	if want := []string{"one", "two"}; !reflect.DeepEqual(note.Tags, want) {
		t.Errorf("tags = %v, want %v", note.Tags, want)
	}
}

func TestParseNote_MissingFile(t *testing.T) {
	if _, err := ParseNote(filepath.Join(t.TempDir(), "nope.md")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

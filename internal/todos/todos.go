// Package todos detects TK markers in note bodies and manages the
// quick-capture todo file. TK is the publishing placeholder for
// content "to come"; every marker becomes a trackable item.
package todos

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/vault"
)

// DefaultFile is the quick-capture target inside the vault root.
const DefaultFile = "todos.md"

// header written when the capture file is first created.
const captureHeader = "---\n" +
	"title: Todos\n" +
	"tags: [todos, meta]\n" +
	"---\n\n" +
	"# Todos\n\n" +
	"_Auto-generated by the vault TK quick-capture shorthand._\n\n"

// Item is one TK marker found in a note.
type Item struct {
	SourceSlug  string `json:"source_slug"`
	LineNo      int    `json:"line_no"` // 1-based over the note body
	Description string `json:"description"`
	RawLine     string `json:"-"` // original unmodified line
	Resolved    bool   `json:"resolved"`
}

// List holds scanned items in the order they were found.
type List struct {
	items []*Item
}

// Items returns every item in scan order.
func (l *List) Items() []*Item { return l.items }

// Len reports the number of items.
func (l *List) Len() int { return len(l.items) }

// Pending returns the unresolved items in scan order.
func (l *List) Pending() []*Item {
	var out []*Item
	for _, item := range l.items {
		if !item.Resolved {
			out = append(out, item)
		}
	}
	return out
}

// ByNote groups items by source slug, preserving scan order per note.
func (l *List) ByNote() map[string][]*Item {
	out := make(map[string][]*Item)
	for _, item := range l.items {
		out[item.SourceSlug] = append(out[item.SourceSlug], item)
	}
	return out
}

// A matcher recognizes one TK marker form. Matchers run in priority
// order; the first hit wins, so a line yields at most one item.
type matcher struct {
	name    string
	re      *regexp.Regexp
	extract func(groups []string, stripped string) string
}

var matchers = []matcher{
	{
		// "- [ ] TK: optional description" markdown task item
		name: "task-item",
		re:   regexp.MustCompile(`(?i)^[-*]\s+\[\s*\]\s+TK(?::\s*(.+))?$`),
		extract: func(groups []string, stripped string) string {
			if desc := strings.TrimSpace(groups[1]); desc != "" {
				return desc
			}
			return stripped
		},
	},
	{
		// "TK: description" standalone form
		name: "colon-form",
		re:   regexp.MustCompile(`(?i)^\s*TK:\s*(.+)$`),
		extract: func(groups []string, _ string) string {
			return strings.TrimSpace(groups[1])
		},
	},
	{
		// bare TK anywhere on the line, last resort
		name: "bare-word",
		re:   regexp.MustCompile(`(?i)\bTK\b`),
		extract: func(_ []string, stripped string) string {
			desc := strings.ReplaceAll(stripped, "TK", "")
			desc = strings.TrimSpace(strings.Trim(desc, " -:"))
			if desc == "" {
				return stripped
			}
			return desc
		},
	},
}

// Code fences and HTML comment openers toggle skip state. The toggle
// line itself never yields an item. An unbalanced fence swallows the
// rest of the note; that mirrors how fences read visually and is the
// intended behavior.
var skipRe = regexp.MustCompile("^\\s*(```|~~~|<!--)")

// ScanNote returns the TK items in a single note body. Line numbers
// are 1-based over the body, counted after frontmatter stripping.
func ScanNote(note *models.Note) []*Item {
	var items []*Item
	inCodeBlock := false

	for i, line := range strings.Split(note.Body, "\n") {
		lineNo := i + 1

		if skipRe.MatchString(line) {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}

		stripped := strings.TrimSpace(line)
		for _, m := range matchers {
			groups := m.re.FindStringSubmatch(stripped)
			if groups == nil {
				continue
			}
			items = append(items, &Item{
				SourceSlug:  note.Slug,
				LineNo:      lineNo,
				Description: m.extract(groups, stripped),
				RawLine:     line,
			})
			break
		}
	}
	return items
}

// Scan walks every note in the index, in index order, and collects
// their TK items.
func Scan(idx *vault.Index) *List {
	l := &List{}
	for _, note := range idx.Notes() {
		l.items = append(l.items, ScanNote(note)...)
	}
	return l
}

// Append adds one quick-capture line to the todo file under vaultDir,
// creating the file with its frontmatter header when absent. todoFile
// defaults to DefaultFile when empty. Returns the appended line
// without its trailing newline.
func Append(vaultDir, todoFile, description, sourceSlug string) (string, error) {
	if todoFile == "" {
		todoFile = DefaultFile
	}
	path := filepath.Join(vaultDir, todoFile)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if writeErr := os.WriteFile(path, []byte(captureHeader), 0o644); writeErr != nil {
			return "", fmt.Errorf("todos: create %s: %w", todoFile, writeErr)
		}
	} else if err != nil {
		return "", fmt.Errorf("todos: stat %s: %w", todoFile, err)
	}

	line := "- [ ] TK: " + description
	if sourceSlug != "" {
		line += " (from [[" + sourceSlug + "]])"
	}
	line += " — " + time.Now().Format("2006-01-02")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("todos: open %s: %w", todoFile, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return "", fmt.Errorf("todos: append: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("todos: close %s: %w", todoFile, err)
	}
	return line, nil
}

// ParseCapture interprets quick-capture shorthand. Input starting with
// "tk " or "tk:" (case-insensitive) yields the rest as a todo
// description; anything else, including a bare "tk" with no
// description, is not a capture.
func ParseCapture(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 3 {
		return "", false
	}
	head := strings.ToLower(trimmed[:3])
	if head != "tk " && head != "tk:" {
		return "", false
	}
	description := strings.TrimSpace(trimmed[3:])
	if description == "" {
		return "", false
	}
	return description, true
}

var checkboxRe = regexp.MustCompile(`\[\s*\]`)

// Resolve marks item done by flipping the first "[ ]" on its stored
// line to "[x]" in <vaultDir>/<slug>.md. The line number indexes the
// raw file, frontmatter included, so callers must compute it against
// the same representation. A missing file or out-of-range line is a
// silent no-op; Resolved flips only when the line was rewritten.
func Resolve(vaultDir string, item *Item) error {
	path := filepath.Join(vaultDir, item.SourceSlug+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("todos: read %s: %w", path, err)
	}

	lines := strings.SplitAfter(string(data), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	i := item.LineNo - 1
	if i < 0 || i >= len(lines) {
		return nil
	}

	if loc := checkboxRe.FindStringIndex(lines[i]); loc != nil {
		lines[i] = lines[i][:loc[0]] + "[x]" + lines[i][loc[1]:]
	}
	if err := atomic.WriteFile(path, strings.NewReader(strings.Join(lines, ""))); err != nil {
		return fmt.Errorf("todos: rewrite %s: %w", path, err)
	}
	item.Resolved = true
	return nil
}

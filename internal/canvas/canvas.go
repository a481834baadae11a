// Package canvas builds tldraw-style document snapshots from the vault
// index: one card per note laid out on a grid, one arrow per wikilink.
// Snapshots round-trip as JSON so the sync layer can persist them.
package canvas

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/othala/internal/vault"
)

const (
	cardWidth  = 220
	cardHeight = 140
	colSpacing = 300
	rowSpacing = 200
)

// Record is a single tldraw store record (page or shape).
type Record map[string]any

// Schema describes the snapshot format version.
type Schema struct {
	SchemaVersion int            `json:"schemaVersion"`
	Sequences     map[string]int `json:"sequences"`
}

// Snapshot is a tldraw store snapshot: records keyed by id plus the
// schema header.
type Snapshot struct {
	Store  map[string]Record `json:"store"`
	Schema Schema            `json:"schema"`
}

func makeID() string {
	u := uuid.New()
	return "shape:" + hex.EncodeToString(u[:])[:12]
}

type position struct {
	x, y int
}

// positionNotes arranges note cards in a near-square grid.
func positionNotes(slugs []string) map[string]position {
	cols := int(math.Ceil(math.Sqrt(float64(len(slugs)))))
	if cols < 1 {
		cols = 1
	}
	positions := make(map[string]position, len(slugs))
	for i, slug := range slugs {
		positions[slug] = position{x: (i % cols) * colSpacing, y: (i / cols) * rowSpacing}
	}
	return positions
}

// BuildSnapshot computes a fresh canvas layout from the index. Every
// note becomes a rectangle card carrying its title and up to three
// tags; every resolvable link becomes an arrow bound card-to-card.
func BuildSnapshot(idx *vault.Index) *Snapshot {
	slugs := idx.Slugs()
	positions := positionNotes(slugs)

	slugToID := make(map[string]string, len(slugs))
	for _, slug := range slugs {
		slugToID[slug] = makeID()
	}

	const pageID = "page:main"
	records := []Record{{
		"typeName": "page",
		"id":       pageID,
		"name":     "Vault",
		"index":    "a1",
		"meta":     map[string]any{},
	}}

	for _, note := range idx.Notes() {
		pos := positions[note.Slug]
		shapeID := slugToID[note.Slug]
		records = append(records, Record{
			"typeName": "shape",
			"id":       shapeID,
			"type":     "geo",
			"parentId": pageID,
			"index":    "a" + shapeID[len(shapeID)-4:],
			"x":        pos.x,
			"y":        pos.y,
			"rotation": 0,
			"isLocked": false,
			"opacity":  1,
			"meta":     map[string]any{"slug": note.Slug},
			"props": map[string]any{
				"geo":           "rectangle",
				"w":             cardWidth,
				"h":             cardHeight,
				"text":          cardText(note.Title, note.Tags),
				"richText":      nil,
				"font":          "sans",
				"align":         "start",
				"verticalAlign": "start",
				"size":          "s",
				"color":         "violet",
				"fill":          "semi",
				"dash":          "draw",
				"labelColor":    "black",
			},
		})
	}

	for _, edge := range idx.Edges() {
		srcID, okSrc := slugToID[edge[0]]
		tgtID, okTgt := slugToID[edge[1]]
		if !okSrc || !okTgt {
			continue
		}
		arrowID := makeID()
		records = append(records, Record{
			"typeName": "shape",
			"id":       arrowID,
			"type":     "arrow",
			"parentId": pageID,
			"index":    "a" + arrowID[len(arrowID)-4:],
			"x":        0,
			"y":        0,
			"rotation": 0,
			"isLocked": false,
			"opacity":  0.7,
			"meta":     map[string]any{},
			"props": map[string]any{
				"dash":       "draw",
				"size":       "s",
				"fill":       "none",
				"color":      "grey",
				"labelColor": "black",
				"bend":       0,
				"start": map[string]any{
					"type":             "binding",
					"boundShapeId":     srcID,
					"normalizedAnchor": map[string]any{"x": 0.5, "y": 1.0},
					"isExact":          false,
					"isPrecise":        false,
				},
				"end": map[string]any{
					"type":             "binding",
					"boundShapeId":     tgtID,
					"normalizedAnchor": map[string]any{"x": 0.5, "y": 0.0},
					"isExact":          false,
					"isPrecise":        false,
				},
				"arrowheadStart": "none",
				"arrowheadEnd":   "arrow",
				"text":           "",
			},
		})
	}

	store := make(map[string]Record, len(records))
	for _, r := range records {
		store[r["id"].(string)] = r
	}
	return &Snapshot{
		Store:  store,
		Schema: Schema{SchemaVersion: 2, Sequences: map[string]int{}},
	}
}

func cardText(title string, tags []string) string {
	if len(tags) > 3 {
		tags = tags[:3]
	}
	prefixed := make([]string, len(tags))
	for i, t := range tags {
		prefixed[i] = "#" + t
	}
	return fmt.Sprintf("**%s**\n\n%s", title, strings.Join(prefixed, ", "))
}

// EncodeSnapshot serialises a snapshot for persistence.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("canvas: encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot previously produced by
// EncodeSnapshot or pulled from a sync backend.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("canvas: decode snapshot: %w", err)
	}
	if s.Store == nil {
		s.Store = map[string]Record{}
	}
	return &s, nil
}

package models

// GraphNode is a vertex in the link graph view. Dangling link targets
// appear as nodes with no backing note.
type GraphNode struct {
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Tags    []string `json:"tags,omitempty"`
	Missing bool     `json:"missing,omitempty"`
}

// GraphEdge is a directed link between two slugs. Edges are not
// de-duplicated; a note linking twice yields two edges.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is the payload served by the graph endpoint and consumed by
// the canvas builder.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

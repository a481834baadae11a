package plugin

import (
	"sync"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/vault"
)

// Builtin entry points, always registered.
const (
	EntryBacklinks = "builtin.backlinks"
	EntryGraph     = "builtin.graph"
)

func registerBuiltins(r *Registry) {
	r.RegisterFactory(EntryBacklinks, func(Descriptor) (any, error) {
		return &backlinksPanel{}, nil
	})
	r.RegisterFactory(EntryGraph, func(Descriptor) (any, error) {
		return &graphView{}, nil
	})
}

func builtinDescriptors() []Descriptor {
	return []Descriptor{
		{
			ID:      "backlinks-panel",
			Name:    "Backlinks Panel",
			Version: "1.0.0",
			Entry:   EntryBacklinks,
			Hooks:   []string{HookLoad, HookIndexUpdate, HookNoteSelect},
		},
		{
			ID:      "graph-view",
			Name:    "Graph View",
			Version: "1.0.0",
			Entry:   EntryGraph,
			Hooks:   []string{HookLoad, HookIndexUpdate},
		},
	}
}

// BacklinksState is the payload the backlinks panel exposes.
type BacklinksState struct {
	Slug      string   `json:"slug"`
	Backlinks []string `json:"backlinks"`
}

// backlinksPanel tracks the selected note and the notes linking to it.
type backlinksPanel struct {
	mu        sync.Mutex
	idx       *vault.Index
	selected  string
	backlinks []string
}

func (p *backlinksPanel) OnLoad(idx *vault.Index) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idx = idx
}

func (p *backlinksPanel) OnIndexUpdate(idx *vault.Index) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idx = idx
	if p.selected != "" {
		p.backlinks = idx.BacklinksFor(p.selected)
	}
}

func (p *backlinksPanel) OnNoteSelect(slug string, idx *vault.Index) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idx = idx
	p.selected = slug
	p.backlinks = idx.BacklinksFor(slug)
}

func (p *backlinksPanel) PluginState() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := BacklinksState{Slug: p.selected, Backlinks: []string{}}
	if p.backlinks != nil {
		state.Backlinks = append(state.Backlinks, p.backlinks...)
	}
	return state
}

// graphView keeps the link graph handy for the API.
type graphView struct {
	mu    sync.Mutex
	graph *models.Graph
}

func (p *graphView) OnLoad(idx *vault.Index) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graph = idx.Graph()
}

func (p *graphView) OnIndexUpdate(idx *vault.Index) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graph = idx.Graph()
}

func (p *graphView) PluginState() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.graph == nil {
		return &models.Graph{Nodes: []models.GraphNode{}, Edges: []models.GraphEdge{}}
	}
	return p.graph
}

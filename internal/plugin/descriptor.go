// Package plugin hosts the vault's extension registry. Plugins are
// compiled in and activated by descriptor files; descriptors name an
// entry point registered in code, never a path to load dynamically.
package plugin

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/tailscale/hujson"

	"github.com/starford/othala/internal/parser"
)

// Hook names a descriptor may declare.
const (
	HookLoad        = "on_load"
	HookIndexUpdate = "on_index_update"
	HookNoteSelect  = "on_note_select"
)

// descriptorKeys are the top-level keys consumed by Descriptor itself.
// Everything else lands in Meta.
var descriptorKeys = map[string]bool{
	"id":      true,
	"name":    true,
	"version": true,
	"entry":   true,
	"hooks":   true,
	"ui":      true,
}

// Descriptor declares a plugin: identity, the registered entry point
// that constructs it, and the hooks it wants to receive.
type Descriptor struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Entry   string         `json:"entry"`
	Hooks   []string       `json:"hooks"`
	UI      map[string]any `json:"ui,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// HasHook reports whether the descriptor declares the named hook.
func (d Descriptor) HasHook(name string) bool {
	return slices.Contains(d.Hooks, name)
}

// ParseDescriptor decodes a descriptor file. Descriptors are JWCC
// (JSON with comments and trailing commas) so they stay hand-editable.
func ParseDescriptor(data []byte) (Descriptor, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return Descriptor{}, fmt.Errorf("plugin: standardize descriptor: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(std, &raw); err != nil {
		return Descriptor{}, fmt.Errorf("plugin: decode descriptor: %w", err)
	}

	desc := Descriptor{
		Version: "0.1.0",
		Hooks:   []string{},
	}
	if id, ok := raw["id"].(string); ok {
		desc.ID = id
	}
	if desc.ID == "" {
		return Descriptor{}, fmt.Errorf("plugin: descriptor missing id")
	}
	if entry, ok := raw["entry"].(string); ok {
		desc.Entry = entry
	}
	if desc.Entry == "" {
		return Descriptor{}, fmt.Errorf("plugin: descriptor %s missing entry", desc.ID)
	}
	if name, ok := raw["name"].(string); ok && name != "" {
		desc.Name = name
	} else {
		desc.Name = desc.ID
	}
	if version, ok := raw["version"].(string); ok && version != "" {
		desc.Version = version
	}
	desc.Hooks = parser.StringList(raw["hooks"])
	if ui, ok := raw["ui"].(map[string]any); ok {
		desc.UI = ui
	}

	for key, value := range raw {
		if descriptorKeys[key] {
			continue
		}
		if desc.Meta == nil {
			desc.Meta = map[string]any{}
		}
		desc.Meta[key] = value
	}
	return desc, nil
}

package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/othala/internal/vault"
)

// Capability interfaces. A plugin implements whichever subset it needs;
// a hook only fires when the descriptor declares it AND the plugin
// implements the matching interface.
type (
	// LoadHook runs once after the first successful index build.
	LoadHook interface {
		OnLoad(idx *vault.Index)
	}
	// IndexUpdateHook runs after every index rebuild.
	IndexUpdateHook interface {
		OnIndexUpdate(idx *vault.Index)
	}
	// NoteSelectHook runs when a note is opened.
	NoteSelectHook interface {
		OnNoteSelect(slug string, idx *vault.Index)
	}
	// StateProvider exposes a read-only payload over the API.
	StateProvider interface {
		PluginState() any
	}
)

// Factory constructs a plugin instance from its descriptor.
type Factory func(desc Descriptor) (any, error)

// Plugin pairs a loaded instance with the descriptor that declared it.
type Plugin struct {
	Descriptor Descriptor
	Impl       any
}

// Registry holds the known entry points and the loaded plugins.
// Loading happens once at startup; afterwards the registry is
// read-only and hooks may be fired from any goroutine.
type Registry struct {
	logger    *slog.Logger
	factories map[string]Factory
	plugins   []*Plugin
}

// NewRegistry returns a registry with the builtin entry points
// registered but nothing loaded yet.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger:    logger,
		factories: map[string]Factory{},
	}
	registerBuiltins(r)
	return r
}

// RegisterFactory maps an entry name to a constructor. Descriptors
// referencing an unregistered entry are skipped at load time.
func (r *Registry) RegisterFactory(entry string, f Factory) {
	r.factories[entry] = f
}

// LoadBuiltins instantiates the builtin plugins so a vault works out
// of the box without any descriptor files.
func (r *Registry) LoadBuiltins() {
	for _, desc := range builtinDescriptors() {
		if err := r.load(desc); err != nil {
			r.logger.Warn("load builtin plugin", "id", desc.ID, "error", err)
		}
	}
}

// LoadDir reads every *.json descriptor under dir, in name order, and
// instantiates the plugins they declare. A missing directory is fine;
// a broken descriptor or unknown entry is logged and skipped so the
// remaining plugins still load.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("plugin: read dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("read plugin descriptor", "path", path, "error", err)
			continue
		}
		desc, err := ParseDescriptor(data)
		if err != nil {
			r.logger.Warn("parse plugin descriptor", "path", path, "error", err)
			continue
		}
		if err := r.load(desc); err != nil {
			r.logger.Warn("load plugin", "path", path, "id", desc.ID, "error", err)
		}
	}
	return nil
}

func (r *Registry) load(desc Descriptor) error {
	factory, ok := r.factories[desc.Entry]
	if !ok {
		return fmt.Errorf("plugin: unknown entry %q", desc.Entry)
	}
	impl, err := factory(desc)
	if err != nil {
		return fmt.Errorf("plugin: construct %s: %w", desc.ID, err)
	}
	r.plugins = append(r.plugins, &Plugin{Descriptor: desc, Impl: impl})
	r.logger.Debug("plugin loaded", "id", desc.ID, "entry", desc.Entry)
	return nil
}

// Plugins returns the loaded plugins in registration order.
func (r *Registry) Plugins() []*Plugin {
	out := make([]*Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Get looks a loaded plugin up by descriptor id.
func (r *Registry) Get(id string) (*Plugin, bool) {
	for _, p := range r.plugins {
		if p.Descriptor.ID == id {
			return p, true
		}
	}
	return nil, false
}

// FireLoad dispatches on_load to every plugin that wants it.
func (r *Registry) FireLoad(idx *vault.Index) {
	for _, p := range r.plugins {
		if !p.Descriptor.HasHook(HookLoad) {
			continue
		}
		if hook, ok := p.Impl.(LoadHook); ok {
			hook.OnLoad(idx)
		}
	}
}

// FireIndexUpdate dispatches on_index_update.
func (r *Registry) FireIndexUpdate(idx *vault.Index) {
	for _, p := range r.plugins {
		if !p.Descriptor.HasHook(HookIndexUpdate) {
			continue
		}
		if hook, ok := p.Impl.(IndexUpdateHook); ok {
			hook.OnIndexUpdate(idx)
		}
	}
}

// FireNoteSelect dispatches on_note_select.
func (r *Registry) FireNoteSelect(slug string, idx *vault.Index) {
	for _, p := range r.plugins {
		if !p.Descriptor.HasHook(HookNoteSelect) {
			continue
		}
		if hook, ok := p.Impl.(NoteSelectHook); ok {
			hook.OnNoteSelect(slug, idx)
		}
	}
}

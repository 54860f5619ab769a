// Package plugins implements the plugin registry that extends the template
// engine (pkg/template) with additional named filters. Registration is
// grounded in the same duplicate-rejection discipline the teacher uses for
// its MCP tool registry (pkg/parser/mcp.go keeps a set of already-registered
// tool names and refuses collisions); here the registry keeps a set of
// already-registered plugin names and filter names.
package plugins

import (
	"fmt"

	"github.com/swissarmyhammer/swissarmyhammer/internal/logger"
	"github.com/swissarmyhammer/swissarmyhammer/internal/swerr"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/template"
)

var log = logger.New("plugins:registry")

// Plugin is an installable unit of template-engine behavior: a named,
// versioned bundle of filters.
type Plugin interface {
	Name() string
	Version() string
	Description() string
	Filters() map[string]template.Filter
	Initialize() error
	Cleanup() error
}

// Registry holds the set of registered plugins and exposes a CreateParser
// method that builds a pre-loaded template.Engine carrying every registered
// filter.
type Registry struct {
	plugins map[string]Plugin
	filters map[string]string // filter name -> owning plugin name, for collision messages
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		filters: make(map[string]string),
	}
}

// Register installs p, rejecting a duplicate plugin name or any filter name
// that collides with one already registered by a different plugin.
func (r *Registry) Register(p Plugin) error {
	name := p.Name()
	if _, exists := r.plugins[name]; exists {
		return swerr.Newf(swerr.KindValidation, "plugin already registered: %s", name)
	}
	for filterName := range p.Filters() {
		if owner, exists := r.filters[filterName]; exists {
			return swerr.Newf(swerr.KindValidation, "filter %q from plugin %q collides with plugin %q", filterName, name, owner)
		}
	}

	if err := p.Initialize(); err != nil {
		return swerr.Wrapf(swerr.KindOther, err, "initializing plugin %s", name)
	}

	r.plugins[name] = p
	for filterName := range p.Filters() {
		r.filters[filterName] = name
	}
	log.Printf("registered plugin %s v%s (%d filters)", name, p.Version(), len(p.Filters()))
	return nil
}

// Unregister removes a plugin by name, calling its Cleanup hook.
func (r *Registry) Unregister(name string) error {
	p, ok := r.plugins[name]
	if !ok {
		return swerr.Newf(swerr.KindOther, "plugin not registered: %s", name)
	}
	for filterName := range p.Filters() {
		delete(r.filters, filterName)
	}
	delete(r.plugins, name)
	return p.Cleanup()
}

// List returns the names of every registered plugin.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	return names
}

// CreateParser returns a new template.Engine carrying the standard filter
// set plus every filter contributed by a registered plugin.
func (r *Registry) CreateParser(opts ...template.Option) *template.Engine {
	all := make([]template.Option, 0, len(r.filters)+len(opts))
	for _, p := range r.plugins {
		for filterName, fn := range p.Filters() {
			all = append(all, template.WithFilter(filterName, fn))
		}
	}
	all = append(all, opts...)
	return template.New(all...)
}

// Describe returns a human-readable summary of a registered plugin
// ("name vVersion: description").
func (r *Registry) Describe(name string) (string, error) {
	p, ok := r.plugins[name]
	if !ok {
		return "", swerr.Newf(swerr.KindOther, "plugin not registered: %s", name)
	}
	return fmt.Sprintf("%s v%s: %s", p.Name(), p.Version(), p.Description()), nil
}

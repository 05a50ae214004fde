package runtime

import (
	"fmt"
	"sort"
	"time"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
)

// PluginSetup wires a plugin into a scope: hooks, decorations, routes,
// nested plugins. The scope is a fresh child unless the registration is
// marked Shared.
type PluginSetup func(scope *Scope, options any) error

// PluginRegistration describes one plugin.
type PluginRegistration struct {
	// Name identifies the plugin; duplicate names fail unless Override
	// is set.
	Name string

	// Version is recorded for introspection and dependency reporting.
	Version string

	// Dependencies lists plugin names that must already be registered.
	// There is no reordering: registration order is the dependency order.
	Dependencies []string

	// Setup receives the target scope and Options.
	Setup PluginSetup

	// Options is handed to Setup unchanged.
	Options any

	// Shared applies the plugin to the calling scope instead of an
	// encapsulated child, so its hooks and decorations leak upward.
	Shared bool

	// Override replaces an already registered plugin of the same name.
	Override bool

	// Prefix scopes the child's routes under a path prefix. Ignored for
	// shared registrations.
	Prefix string
}

// PluginInfo is the recorded metadata of a registered plugin.
type PluginInfo struct {
	Name         string    `json:"name"`
	Version      string    `json:"version,omitempty"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Encapsulated bool      `json:"encapsulated"`
	Prefix       string    `json:"prefix,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// PluginRegistry records registered plugins and enforces that declared
// dependencies were registered first.
type PluginRegistry struct {
	plugins map[string]PluginInfo
	order   []string
}

func newPluginRegistry() *PluginRegistry {
	return &PluginRegistry{plugins: map[string]PluginInfo{}}
}

func (r *PluginRegistry) register(scope *Scope, reg PluginRegistration) error {
	if reg.Name == "" {
		return errspkg.ErrPluginNameRequired
	}
	if reg.Setup == nil {
		return fmt.Errorf("%w: %q", errspkg.ErrPluginSetupRequired, reg.Name)
	}
	if _, exists := r.plugins[reg.Name]; exists && !reg.Override {
		return fmt.Errorf("%w: %q", errspkg.ErrPluginAlreadyRegistered, reg.Name)
	}
	for _, dep := range reg.Dependencies {
		if _, ok := r.plugins[dep]; !ok {
			return fmt.Errorf("%w: %q requires %q", errspkg.ErrPluginDependency, reg.Name, dep)
		}
	}

	target := scope
	if !reg.Shared {
		target = scope.createChild(reg.Prefix)
	}

	// Recorded before Setup so nested registrations can depend on it.
	r.record(reg, target)

	if err := reg.Setup(target, reg.Options); err != nil {
		return fmt.Errorf("serveflow: plugin %q setup: %w", reg.Name, err)
	}
	return nil
}

func (r *PluginRegistry) record(reg PluginRegistration, target *Scope) {
	if _, exists := r.plugins[reg.Name]; !exists {
		r.order = append(r.order, reg.Name)
	}
	r.plugins[reg.Name] = PluginInfo{
		Name:         reg.Name,
		Version:      reg.Version,
		Dependencies: append([]string{}, reg.Dependencies...),
		Encapsulated: !reg.Shared,
		Prefix:       target.Prefix(),
		RegisteredAt: time.Now().UTC(),
	}
}

// Has reports whether a plugin name is registered.
func (r *PluginRegistry) Has(name string) bool {
	_, ok := r.plugins[name]
	return ok
}

// Info returns the recorded metadata for a plugin name.
func (r *PluginRegistry) Info(name string) (PluginInfo, bool) {
	info, ok := r.plugins[name]
	return info, ok
}

// List returns the registered plugins in registration order.
func (r *PluginRegistry) List() []PluginInfo {
	out := make([]PluginInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.plugins[name])
	}
	return out
}

// Names returns the registered plugin names, sorted.
func (r *PluginRegistry) Names() []string {
	names := append([]string{}, r.order...)
	sort.Strings(names)
	return names
}

package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
)

// DefaultSystem is the binding used when the configuration names none.
const DefaultSystem = "channel"

// Registry maintains a mapping of bus names to their builders. Binding
// packages register themselves using Register.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// DefaultRegistry is the global bus registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty bus registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a bus builder to the registry. The name should match the
// EventBusSystem config value.
func (r *Registry) Register(name string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
}

// Build creates a bus using the registered builder for the config's
// EventBusSystem, falling back to DefaultSystem when none is named.
func (r *Registry) Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Bus, error) {
	if cfg == nil {
		return Bus{}, fmt.Errorf("serveflow: eventbus config is required")
	}

	name := cfg.GetEventBusSystem()
	if name == "" {
		name = DefaultSystem
	}

	r.mu.RLock()
	builder, ok := r.builders[name]
	r.mu.RUnlock()

	if !ok {
		return Bus{}, fmt.Errorf("serveflow: unknown event bus %q (registered: %v)", name, r.Names())
	}

	return builder(ctx, cfg, logger)
}

// Names returns the registered bus names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	return names
}

// Has reports whether a bus is registered with the given name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[name]
	return ok
}

// Register adds a bus builder to the default registry.
func Register(name string, builder Builder) {
	DefaultRegistry.Register(name, builder)
}

// Build creates a bus using the default registry.
func Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Bus, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}

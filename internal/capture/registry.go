package capture

import (
	"fmt"
	"slices"
	"sync"

	"firestige.xyz/procsniff/internal/config"
	"firestige.xyz/procsniff/internal/core"
)

// Factory opens a source from capture configuration.
type Factory func(cfg config.CaptureConfig) (Source, error)

type registryImpl struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var registry = &registryImpl{factories: make(map[string]Factory)}

// Register makes a source type available to Open. It is meant to be called
// from init functions of source packages.
func Register(name string, factory Factory) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.factories[name]; exists {
		return fmt.Errorf("capture source '%s' already registered", name)
	}
	registry.factories[name] = factory
	return nil
}

// MustRegister is Register for init functions.
func MustRegister(name string, factory Factory) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}

// Open validates cfg and opens a source of cfg.Type.
func Open(cfg config.CaptureConfig) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry.mu.RLock()
	factory, exists := registry.factories[cfg.Type]
	registry.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: '%s' (registered: %v)", core.ErrUnknownSource, cfg.Type, Names())
	}

	src, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", cfg.Type, err)
	}
	return src, nil
}

// Names lists registered source types in sorted order.
func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

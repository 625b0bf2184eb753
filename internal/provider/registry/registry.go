package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/geekspace/arbiter/internal/domain"
)

// Registry implements domain.AdapterRegistry over the closed provider set.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.Provider]domain.Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[domain.Provider]domain.Adapter),
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(_ context.Context, adapter domain.Adapter) error {
	if adapter == nil {
		return errors.New("adapter cannot be nil")
	}

	name := adapter.Name()
	if name == "" {
		return errors.New("adapter provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.adapters[name] = adapter
	return nil
}

// Get retrieves the adapter for a provider. An unregistered provider behaves
// like an unreachable one from the router's point of view.
func (r *Registry) Get(_ context.Context, provider domain.Provider) (domain.Adapter, error) {
	if provider == "" {
		return nil, errors.New("provider cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[provider]
	if !exists {
		return nil, fmt.Errorf("provider %s not registered", provider)
	}

	return adapter, nil
}

// List returns all registered providers.
func (r *Registry) List(_ context.Context) ([]domain.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]domain.Provider, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}

	return names, nil
}

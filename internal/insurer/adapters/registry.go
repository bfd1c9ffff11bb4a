package adapters

import (
	"strings"

	"github.com/nordbroker/octasure/internal/insurer/domain"
)

// Registry is the closed table of configured insurer adapters, keyed by
// provider id. It is resolved once at startup; unknown ids are rejected at
// the boundary with ErrUnknownProvider.
type Registry struct {
	adapters map[string]domain.Adapter
	order    []string
}

func NewRegistry(adapters ...domain.Adapter) *Registry {
	registry := &Registry{adapters: map[string]domain.Adapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(adapter.Provider()))
		if provider == "" {
			continue
		}
		if _, exists := registry.adapters[provider]; exists {
			continue
		}
		registry.adapters[provider] = adapter
		registry.order = append(registry.order, provider)
	}
	return registry
}

// Get resolves a provider id to its adapter.
func (r *Registry) Get(provider string) (domain.Adapter, error) {
	if r == nil {
		return nil, domain.ErrUnknownProvider
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}
	return adapter, nil
}

// Exists reports whether a provider id is configured.
func (r *Registry) Exists(provider string) bool {
	if r == nil {
		return false
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	_, ok := r.adapters[provider]
	return ok
}

// Providers returns the configured provider ids in registration order.
// Quote results follow this order.
func (r *Registry) Providers() []string {
	if r == nil {
		return nil
	}
	providers := make([]string, len(r.order))
	copy(providers, r.order)
	return providers
}

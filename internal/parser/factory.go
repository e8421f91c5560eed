package parser

import (
	"fmt"
	"sort"
	"sync"

	"ragrace/internal/config"
	"ragrace/internal/domain"
	"ragrace/internal/port"
)

// ProviderFactory builds a ParseAdapter from a provider config with any
// per-request overrides already merged in.
type ProviderFactory func(cfg *config.ProviderConfig) (port.ParseAdapter, error)

// Registry maps provider names to their factories and base configs.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
	configs   map[string]*config.ProviderConfig
}

// NewRegistry creates a registry whose base configs come from cfgs.
func NewRegistry(cfgs map[string]*config.ProviderConfig) *Registry {
	if cfgs == nil {
		cfgs = map[string]*config.ProviderConfig{}
	}
	return &Registry{
		factories: map[string]ProviderFactory{},
		configs:   cfgs,
	}
}

// Register registers a provider factory by name.
func (r *Registry) Register(name string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Providers lists registered provider names in sorted order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configured reports whether a provider is registered and has an API key.
func (r *Registry) Configured(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	cfg := r.configs[name]
	return ok && cfg != nil && cfg.APIKey != ""
}

// NewAdapter builds the named provider's adapter, overlaying overrides on its
// base options. Unknown providers and missing credentials fail here, before
// any network work.
func (r *Registry) NewAdapter(name string, overrides map[string]any) (port.ParseAdapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	base := r.configs[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, name)
	}
	if base == nil {
		base = &config.ProviderConfig{Provider: name}
	}
	if base.APIKey == "" {
		return nil, fmt.Errorf("%w: %s API key is not set", domain.ErrProviderNotConfigured, name)
	}
	return factory(base.WithOverrides(overrides))
}

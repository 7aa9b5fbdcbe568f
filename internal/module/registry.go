package module

import (
	"fmt"
	"sort"
	"sync"
)

// Registry collects module descriptors during process start. Once every
// module has registered, Catalog freezes the registry into an immutable value
// that is handed to the resolver.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: map[string]Descriptor{}}
}

// Register installs a module descriptor. Returns an error if the name already exists.
func (r *Registry) Register(desc Descriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[desc.Name]; exists {
		return fmt.Errorf("module: %s already registered", desc.Name)
	}
	r.descriptors[desc.Name] = desc.Clone()
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(desc Descriptor) {
	if err := r.Register(desc); err != nil {
		panic(err)
	}
}

// IDs returns a sorted list of registered module names.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.descriptors))
	for id := range r.descriptors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Catalog snapshots the registered descriptors into an immutable catalog.
// Later registrations do not affect catalogs that were already built.
func (r *Registry) Catalog(opts ...CatalogOption) (*Catalog, error) {
	r.mu.RLock()
	descs := make([]Descriptor, 0, len(r.descriptors))
	for _, desc := range r.descriptors {
		descs = append(descs, desc)
	}
	r.mu.RUnlock()
	return NewCatalog(descs, opts...)
}

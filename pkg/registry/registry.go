package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNodeTypeNotFound is returned when a node references an unregistered type.
var ErrNodeTypeNotFound = errors.New("node type not found")

// Registry holds the node types available to pipelines.
type Registry struct {
	types map[string]NodeType
	mu    sync.RWMutex
}

// NewRegistry creates an empty node type registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]NodeType),
	}
}

// Register adds a node type to the registry.
func (r *Registry) Register(nodeType NodeType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := nodeType.Type()
	if _, exists := r.types[name]; exists {
		return fmt.Errorf("node type '%s' already registered", name)
	}

	r.types[name] = nodeType
	return nil
}

// MustRegister registers a node type and panics on conflict. Intended for
// wiring the built-in types at startup.
func (r *Registry) MustRegister(nodeType NodeType) {
	if err := r.Register(nodeType); err != nil {
		panic(err)
	}
}

// Get retrieves a node type by name.
func (r *Registry) Get(name string) (NodeType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodeType, exists := r.types[name]
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", ErrNodeTypeNotFound, name)
	}

	return nodeType, nil
}

// List returns all registered type names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

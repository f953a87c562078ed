package engine

import (
	"fmt"
	"sort"
)

// Registry holds the named top-level pipelines in registration order.
type Registry struct {
	nodes map[string]Node
	order []string
	def   string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]Node)}
}

// Register adds node under its own name.
func (r *Registry) Register(node Node) error {
	if node == nil {
		return fmt.Errorf("%w: nil pipeline", ErrInvalidNode)
	}
	name := node.Name()
	if _, exists := r.nodes[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
	}
	r.nodes[name] = node
	r.order = append(r.order, name)
	return nil
}

// SetDefault marks the pipeline run when none is named.
func (r *Registry) SetDefault(name string) error {
	if _, ok := r.nodes[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	r.def = name
	return nil
}

// Default returns the default pipeline, if one was set.
func (r *Registry) Default() (Node, bool) {
	node, ok := r.nodes[r.def]
	return node, ok
}

// Lookup returns the pipeline registered under name.
func (r *Registry) Lookup(name string) (Node, error) {
	node, ok := r.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownTask, name, r.Sorted())
	}
	return node, nil
}

// Names returns pipeline names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Sorted returns pipeline names alphabetically.
func (r *Registry) Sorted() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}

package hierarchy

import (
	"fmt"
	"sort"

	"github.com/dbsmedya/gosti/internal/config"
	"github.com/dbsmedya/gosti/sti"
)

// Factories binds type names to Go constructors. Types without a factory
// are registered with dynamic records.
type Factories map[string]func() sti.Record

// Register adds every type of t to reg, parents first.
func (t *Tree) Register(reg *sti.Registry, factories Factories) error {
	var unknown []string
	for name := range factories {
		if !t.HasNode(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("factories for undeclared types: %v", unknown)
	}

	order, err := t.TopologicalSort()
	if err != nil {
		return err
	}

	for _, name := range order {
		n := t.Nodes[name]
		def := sti.TypeDef{
			Name:      n.Name,
			Parent:    n.Parent,
			New:       factories[name],
			Table:     n.Table,
			Casts:     n.Casts,
			Methods:   n.Methods,
			Overrides: n.Overrides,
			Scope:     n.Scope,
		}
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("failed to register %s: %w", name, err)
		}
	}
	return nil
}

// NewRegistry builds the tree declared in cfg and registers it in a fresh
// registry.
func NewRegistry(cfg *config.HierarchyConfig, factories Factories) (*sti.Registry, *Tree, error) {
	t, err := Build(cfg)
	if err != nil {
		return nil, nil, err
	}

	reg := sti.NewRegistry()
	if err := t.Register(reg, factories); err != nil {
		return nil, nil, err
	}
	return reg, t, nil
}

package hierarchy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dbsmedya/gosti/internal/config"
	"github.com/dbsmedya/gosti/sti"
)

var (
	// ErrNoRoot is returned for a hierarchy without types.
	ErrNoRoot = errors.New("hierarchy has no root type")

	// ErrMultipleRoots is returned when more than one type has no parent.
	ErrMultipleRoots = errors.New("hierarchy has more than one root type")

	// ErrOrphanType is returned when a type names an undeclared parent.
	ErrOrphanType = errors.New("parent type is not declared")
)

// Build constructs the type tree from configuration and checks that it is a
// single rooted tree. The hierarchy-level table, when set, is given to the
// root so every type inherits it.
func Build(cfg *config.HierarchyConfig) (*Tree, error) {
	if cfg == nil {
		return nil, fmt.Errorf("hierarchy configuration is nil")
	}
	if len(cfg.Types) == 0 {
		return nil, ErrNoRoot
	}

	t := NewTree()
	for _, tc := range cfg.Types {
		if tc.Name == "" {
			return nil, fmt.Errorf("type name is empty")
		}
		if t.HasNode(tc.Name) {
			return nil, fmt.Errorf("duplicate type: %q is declared more than once", tc.Name)
		}

		scope, err := sti.ParseScopeMode(tc.Scope)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", tc.Name, err)
		}

		t.AddNode(&Node{
			Name:      tc.Name,
			Parent:    tc.Parent,
			Table:     tc.Table,
			Casts:     copyCasts(tc.Casts),
			Methods:   append([]string(nil), tc.Methods...),
			Overrides: append([]string(nil), tc.Overrides...),
			Scope:     scope,
		})
	}

	var roots []string
	for _, name := range t.AllNodes() {
		n := t.Nodes[name]
		if n.Parent == "" {
			roots = append(roots, name)
			continue
		}
		if !t.HasNode(n.Parent) {
			return nil, fmt.Errorf("%w: %q (parent of %q)", ErrOrphanType, n.Parent, name)
		}
		t.AddEdge(n.Parent, name)
	}

	if len(roots) > 1 {
		return nil, fmt.Errorf("%w: %s", ErrMultipleRoots, strings.Join(roots, ", "))
	}

	// Without a root every type has a parent, so the cycle check reports it.
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("hierarchy validation failed: %w", err)
	}

	t.Root = roots[0]
	if root := t.Nodes[t.Root]; root.Table == "" {
		root.Table = cfg.Table
	}
	return t, nil
}

func copyCasts(casts map[string]string) map[string]string {
	if casts == nil {
		return nil
	}
	out := make(map[string]string, len(casts))
	for k, v := range casts {
		out[k] = v
	}
	return out
}

// Package hierarchy builds the type tree of a shared table from
// configuration, orders it parents-first and registers it with an
// sti.Registry.
package hierarchy

import (
	"sort"

	"github.com/dbsmedya/gosti/sti"
)

// Node is one declared type.
type Node struct {
	Name      string
	Parent    string // empty for the root
	Table     string
	Casts     map[string]string
	Methods   []string
	Overrides []string
	Scope     sti.ScopeMode
	IsRoot    bool
}

// Tree holds the declared types and their parent -> child edges.
type Tree struct {
	Nodes    map[string]*Node
	Children map[string][]string // type -> direct subtypes
	Root     string
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{
		Nodes:    make(map[string]*Node),
		Children: make(map[string][]string),
	}
}

// AddNode adds a type. A node without a parent becomes the root candidate.
func (t *Tree) AddNode(n *Node) {
	t.Nodes[n.Name] = n
	if n.Parent == "" {
		n.IsRoot = true
	}
}

// AddEdge records child as a direct subtype of parent.
func (t *Tree) AddEdge(parent, child string) {
	t.Children[parent] = append(t.Children[parent], child)
}

// GetChildren returns the direct subtypes of name, sorted.
func (t *Tree) GetChildren(name string) []string {
	out := append([]string(nil), t.Children[name]...)
	sort.Strings(out)
	return out
}

// GetNode returns the node for name, or nil if not found.
func (t *Tree) GetNode(name string) *Node {
	return t.Nodes[name]
}

// HasNode returns true if the tree declares name.
func (t *Tree) HasNode(name string) bool {
	_, exists := t.Nodes[name]
	return exists
}

// NodeCount returns the number of declared types.
func (t *Tree) NodeCount() int {
	return len(t.Nodes)
}

// AllNodes returns every type name, sorted.
func (t *Tree) AllNodes() []string {
	names := make([]string, 0, len(t.Nodes))
	for name := range t.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LeafNodes returns the types without subtypes, sorted.
func (t *Tree) LeafNodes() []string {
	var leaves []string
	for _, name := range t.AllNodes() {
		if len(t.Children[name]) == 0 {
			leaves = append(leaves, name)
		}
	}
	return leaves
}

// Depth returns the number of ancestors of name.
func (t *Tree) Depth(name string) int {
	depth := 0
	seen := map[string]bool{name: true}
	for n := t.Nodes[name]; n != nil && n.Parent != ""; n = t.Nodes[n.Parent] {
		if seen[n.Parent] {
			break
		}
		seen[n.Parent] = true
		depth++
	}
	return depth
}

package sti

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ScopeMode controls whether queries issued through a type are narrowed to
// its own discriminator.
type ScopeMode int

const (
	// ScopeAuto scopes strict descendants of the contract root and leaves the
	// root itself unscoped.
	ScopeAuto ScopeMode = iota
	// ScopeNone never scopes the type. Use it on the root to make the
	// unscoped default explicit.
	ScopeNone
	// ScopeExact always scopes the type, the root included.
	ScopeExact
)

func (s ScopeMode) String() string {
	switch s {
	case ScopeNone:
		return "none"
	case ScopeExact:
		return "exact"
	default:
		return "auto"
	}
}

// ParseScopeMode converts a configuration value into a ScopeMode.
func ParseScopeMode(s string) (ScopeMode, error) {
	switch s {
	case "", "auto":
		return ScopeAuto, nil
	case "none":
		return ScopeNone, nil
	case "exact":
		return ScopeExact, nil
	}
	return ScopeAuto, fmt.Errorf("%w: unknown scope mode %q", ErrInvalidType, s)
}

// TypeDef describes one concrete type of a hierarchy.
type TypeDef struct {
	Name   string // discriminator value, e.g. "fleet.Car"
	Parent string // empty for the contract root

	// New returns a fresh zero instance. Nil registers the type with a
	// Dynamic record.
	New func() Record

	Table string            // explicit table, inherited by descendants
	Casts map[string]string // default cast rules; descendants win on collision

	// Methods lists the shared default behaviors of the contract. Only
	// meaningful on the root.
	Methods []string
	// Overrides lists the behaviors this type implements itself.
	Overrides []string

	Scope ScopeMode
}

// Registry maps discriminator values to type definitions for a single
// hierarchy. Types are registered at setup; afterwards it is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	root     string
	types    map[string]*TypeDef
	children map[string][]string
	goTypes  map[reflect.Type]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:    make(map[string]*TypeDef),
		children: make(map[string][]string),
		goTypes:  make(map[reflect.Type]string),
	}
}

// Register adds a type. The root must be registered first and parents
// before their children.
func (r *Registry) Register(def TypeDef) error {
	if def.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[def.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateType, def.Name)
	}

	if def.Parent == "" {
		if r.root != "" {
			return fmt.Errorf("%w: %q (root is %q)", ErrRootAlreadySet, def.Name, r.root)
		}
	} else if _, ok := r.types[def.Parent]; !ok {
		return fmt.Errorf("%w: %q (parent of %q)", ErrUnknownParent, def.Parent, def.Name)
	}

	var goType reflect.Type
	if def.New != nil {
		probe := def.New()
		if probe == nil {
			return fmt.Errorf("%w: factory for %q returned nil", ErrInvalidType, def.Name)
		}
		goType = indirectType(reflect.TypeOf(probe))
		if other, bound := r.goTypes[goType]; bound {
			return fmt.Errorf("%w: Go type %s already bound to %q", ErrDuplicateType, goType, other)
		}
	}

	stored := cloneTypeDef(def)
	r.types[def.Name] = &stored
	if def.Parent == "" {
		r.root = def.Name
	} else {
		r.children[def.Parent] = append(r.children[def.Parent], def.Name)
	}
	if goType != nil {
		r.goTypes[goType] = def.Name
	}
	return nil
}

// MustRegister is Register that panics on error, for init-time wiring.
func (r *Registry) MustRegister(def TypeDef) {
	if err := r.Register(def); err != nil {
		panic(fmt.Sprintf("sti registry: %v", err))
	}
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (TypeDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.types[name]
	if !ok {
		return TypeDef{}, false
	}
	return cloneTypeDef(*def), true
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// Root returns the contract root's name.
func (r *Registry) Root() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.root
}

// Names returns every registered type name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Children returns the direct subtypes of name, sorted.
func (r *Registry) Children(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]string(nil), r.children[name]...)
	sort.Strings(out)
	return out
}

// Ancestors returns the chain of parents of name, nearest first.
func (r *Registry) Ancestors(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ancestorsLocked(name)
}

func (r *Registry) ancestorsLocked(name string) []string {
	var chain []string
	def, ok := r.types[name]
	for ok && def.Parent != "" {
		chain = append(chain, def.Parent)
		def, ok = r.types[def.Parent]
	}
	return chain
}

// IsDescendant reports whether name is a strict descendant of ancestor.
func (r *Registry) IsDescendant(name, ancestor string) bool {
	for _, a := range r.Ancestors(name) {
		if a == ancestor {
			return true
		}
	}
	return false
}

// IsA reports whether name is ancestor itself or one of its descendants.
// Both must be registered.
func (r *Registry) IsA(name, ancestor string) bool {
	if name == ancestor {
		return r.Has(name)
	}
	return r.IsDescendant(name, ancestor)
}

// Depth returns the number of ancestors of name. The root has depth 0.
func (r *Registry) Depth(name string) int {
	return len(r.Ancestors(name))
}

// NameOf returns the type name bound to the Go type of v. Both pointer and
// struct values are accepted.
func (r *Registry) NameOf(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	if t, ok := v.(reflect.Type); ok {
		return r.NameOfType(t)
	}
	return r.NameOfType(reflect.TypeOf(v))
}

// NameOfType is NameOf for a reflect.Type.
func (r *Registry) NameOfType(t reflect.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.goTypes[indirectType(t)]
	return name, ok
}

// New constructs a zero instance of the named type with its table and
// default casts applied.
func (r *Registry) New(name string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.types[name]
	if !ok {
		return nil, &ResolutionError{Name: name, Reason: "type is not registered"}
	}

	var rec Record
	if def.New != nil {
		rec = def.New()
	} else {
		rec = &Dynamic{}
	}

	m := rec.record()
	m.typeName = name
	m.attributes = make(map[string]any)
	m.casts = nil
	m.MergeCasts(def.Casts)

	m.table = def.Table
	for _, ancestor := range r.ancestorsLocked(name) {
		adef := r.types[ancestor]
		m.MergeCasts(adef.Casts)
		if m.table == "" {
			m.table = adef.Table
		}
	}
	return rec, nil
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func cloneTypeDef(def TypeDef) TypeDef {
	out := def
	out.Methods = append([]string(nil), def.Methods...)
	out.Overrides = append([]string(nil), def.Overrides...)
	if def.Casts != nil {
		out.Casts = make(map[string]string, len(def.Casts))
		for k, v := range def.Casts {
			out.Casts[k] = v
		}
	}
	return out
}

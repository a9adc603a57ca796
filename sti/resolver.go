package sti

import (
	"go.uber.org/zap"
)

// DefaultDiscriminatorKey is the column holding the concrete type name.
const DefaultDiscriminatorKey = "cast_type"

// Policy decides what NewInstance does with a discriminator it cannot use.
type Policy int

const (
	// Fallback keeps the calling type and logs a warning.
	Fallback Policy = iota
	// Strict returns a *ResolutionError.
	Strict
)

func (p Policy) String() string {
	if p == Strict {
		return "strict"
	}
	return "fallback"
}

// Query is the part of a host query builder the resolver needs.
type Query interface {
	WhereEquals(column string, value any)
}

// ScopedQuery is a Query supporting named global scopes. A scope is applied
// when the query is built unless the caller removes it by name.
type ScopedQuery interface {
	Query
	AddScope(name string, fn func(Query))
}

// Resolver maps discriminators to types and implements the lifecycle hooks
// a host persistence engine calls.
type Resolver struct {
	registry *Registry
	events   *Events
	key      string
	policy   Policy
	logger   *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithKey sets the discriminator column name.
func WithKey(key string) Option {
	return func(r *Resolver) {
		if key != "" {
			r.key = key
		}
	}
}

// WithPolicy sets the resolution policy used by NewInstance.
func WithPolicy(p Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithLogger sets the logger used for swallowed resolution failures and
// listener errors.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithEvents shares an existing dispatcher with the resolver.
func WithEvents(e *Events) Option {
	return func(r *Resolver) {
		if e != nil {
			r.events = e
		}
	}
}

// NewResolver creates a resolver over reg and registers the discriminator
// assignment as an EventCreating listener.
func NewResolver(reg *Registry, opts ...Option) *Resolver {
	r := &Resolver{
		registry: reg,
		key:      DefaultDiscriminatorKey,
		policy:   Fallback,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.events == nil {
		r.events = NewEvents()
	}

	r.events.Listen(EventCreating, func(rec Record) error {
		r.Creating(rec)
		return nil
	})
	return r
}

// Key returns the discriminator column name.
func (r *Resolver) Key() string { return r.key }

// Policy returns the configured resolution policy.
func (r *Resolver) Policy() Policy { return r.policy }

// Registry returns the registry the resolver reads from.
func (r *Resolver) Registry() *Registry { return r.registry }

// Events returns the lifecycle dispatcher.
func (r *Resolver) Events() *Events { return r.events }

// TypeOf returns the registered type name of rec. Records constructed
// outside the registry are identified by their Go type, then by the root.
func (r *Resolver) TypeOf(rec Record) string {
	if name := rec.record().typeName; name != "" {
		return name
	}
	if name, ok := r.registry.NameOf(rec); ok {
		return name
	}
	return r.registry.Root()
}

// Discriminator returns the discriminator stored on rec, if it is a
// non-empty string.
func (r *Resolver) Discriminator(rec Record) (string, bool) {
	v, ok := rec.record().attributes[r.key]
	if !ok {
		return "", false
	}
	return discriminatorValue(v)
}

// Creating stamps rec with its runtime type if the discriminator is unset.
// An explicit value, even an empty string, is left alone.
func (r *Resolver) Creating(rec Record) {
	m := rec.record()
	if v, ok := m.attributes[r.key]; ok && v != nil {
		return
	}
	m.SetAttribute(r.key, r.TypeOf(rec))
}

// Scoped reports whether queries issued through name are narrowed to its
// discriminator.
func (r *Resolver) Scoped(name string) bool {
	def, ok := r.registry.Lookup(name)
	if !ok {
		return false
	}
	switch def.Scope {
	case ScopeNone:
		return false
	case ScopeExact:
		return true
	}
	return r.registry.IsDescendant(name, r.registry.Root())
}

// Scope attaches the discriminator scope for name to q, registered under the
// discriminator key. It reports whether a scope was attached.
func (r *Resolver) Scope(q ScopedQuery, name string) bool {
	if !r.Scoped(name) {
		return false
	}
	q.AddScope(r.key, func(q Query) {
		q.WhereEquals(r.key, name)
	})
	return true
}

// Cast returns rec viewed as the type named by its discriminator. When that
// type is unknown, missing or already rec's own type, rec itself is
// returned. rec is never modified.
func (r *Resolver) Cast(rec Record) Record {
	name, ok := r.Discriminator(rec)
	if !ok {
		return rec
	}
	if name == r.TypeOf(rec) {
		return rec
	}

	out, err := r.registry.New(name)
	if err != nil {
		r.logger.Debug("discriminator not registered, keeping record type",
			zap.String("discriminator", name),
			zap.String("type", r.TypeOf(rec)))
		return rec
	}

	src := rec.record()
	dst := out.record()
	dst.attributes = copyAttributes(src.attributes)
	dst.connection = src.connection
	dst.exists = src.exists
	return out
}

// CastOverrides reports whether the type rec materializes to implements
// method itself rather than relying on the contract's shared default.
func (r *Resolver) CastOverrides(rec Record, method string) (bool, error) {
	if name, ok := r.Discriminator(rec); ok && !r.registry.Has(name) {
		return false, &ResolutionError{Name: name, Base: r.TypeOf(rec), Reason: "type is not registered"}
	}

	target := r.TypeOf(r.Cast(rec))
	root := r.registry.Root()
	declared := false

	chain := append([]string{target}, r.registry.Ancestors(target)...)
	for _, name := range chain {
		def, ok := r.registry.Lookup(name)
		if !ok {
			continue
		}
		if contains(def.Overrides, method) {
			if name != root {
				return true, nil
			}
			declared = true
		}
		if contains(def.Methods, method) {
			declared = true
		}
	}

	if !declared {
		return false, &MethodError{Type: target, Method: method}
	}
	return false, nil
}

// NewInstance builds a record of the type named by the discriminator in
// attrs when that type is from's own type or one of its descendants, and of
// from's type otherwise. A mapping holding only the discriminator is treated
// as empty. The new record takes from's connection, table and casts.
func (r *Resolver) NewInstance(from Record, attrs map[string]any, exists bool) (Record, error) {
	base := r.TypeOf(from)
	target := base
	attrs = copyAttributes(attrs)

	if v, ok := attrs[r.key]; ok {
		if name, isName := discriminatorValue(v); isName && name != base {
			if err := r.checkTarget(name, base); err != nil {
				if r.policy == Strict {
					return nil, err
				}
				r.logger.Warn("ignoring discriminator",
					zap.String("discriminator", name),
					zap.String("type", base),
					zap.Error(err))
			} else {
				target = name
			}
		}
		if len(attrs) == 1 {
			attrs = map[string]any{}
		}
	}

	out, err := r.registry.New(target)
	if err != nil {
		return nil, err
	}

	m := out.record()
	m.Fill(attrs)
	m.exists = exists
	m.connection = from.record().connection
	m.table = r.Table(from)
	m.MergeCasts(from.Casts())
	return out, nil
}

// NewFromBuilder turns a raw storage row into a materialized record bound
// to connection (or from's connection when empty) and fires EventRetrieved.
// Listener failures are logged and do not abort the load.
func (r *Resolver) NewFromBuilder(from Record, attrs map[string]any, connection string) (Record, error) {
	seed := map[string]any{}
	if v, ok := attrs[r.key]; ok {
		seed[r.key] = v
	}

	out, err := r.NewInstance(from, seed, true)
	if err != nil {
		return nil, err
	}

	out.SetRawAttributes(attrs)
	if connection == "" {
		connection = from.Connection()
	}
	out.SetConnection(connection)

	for _, lerr := range r.events.Dispatch(EventRetrieved, out) {
		r.logger.Warn("retrieved listener failed",
			zap.String("type", r.TypeOf(out)),
			zap.Error(lerr))
	}
	return out, nil
}

// Table returns the table rec is stored in: its explicit table if set,
// otherwise the name derived from the contract root.
func (r *Resolver) Table(rec Record) string {
	if t := rec.record().table; t != "" {
		return t
	}
	return DeriveTable(r.registry.Root())
}

func (r *Resolver) checkTarget(name, base string) error {
	if !r.registry.Has(name) {
		return &ResolutionError{Name: name, Base: base, Reason: "type is not registered"}
	}
	if !r.registry.IsDescendant(name, base) {
		return &ResolutionError{Name: name, Base: base, Reason: "type does not descend from " + base}
	}
	return nil
}

func discriminatorValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, s != ""
	case []byte:
		return string(s), len(s) > 0
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

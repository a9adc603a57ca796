// Package gormsti plugs the sti resolver into GORM. Bound models get their
// discriminator stamped on create, are narrowed to their own type on query
// and are stored in the shared table of their hierarchy.
package gormsti

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/dbsmedya/gosti/sti"
)

// SkipScope disables the discriminator scope for one statement:
//
//	db.Set(gormsti.SkipScope, true).Find(&cars)
const SkipScope = "gormsti:skip_scope"

// Option configures a Plugin.
type Option func(*Plugin)

// WithLogger sets the plugin logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Plugin) {
		if l != nil {
			p.logger = l
		}
	}
}

// Plugin implements gorm.Plugin.
type Plugin struct {
	resolver *sti.Resolver
	logger   *zap.Logger

	mu       sync.RWMutex
	bindings map[reflect.Type]string
}

// New creates a plugin for the hierarchy of resolver.
func New(resolver *sti.Resolver, opts ...Option) *Plugin {
	p := &Plugin{
		resolver: resolver,
		logger:   zap.NewNop(),
		bindings: make(map[reflect.Type]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements gorm.Plugin.
func (p *Plugin) Name() string {
	return "gormsti"
}

// Initialize implements gorm.Plugin.
func (p *Plugin) Initialize(db *gorm.DB) error {
	if p.resolver == nil {
		return fmt.Errorf("gormsti: resolver is nil")
	}
	if err := db.Callback().Create().Before("gorm:create").Register("gormsti:creating", p.creating); err != nil {
		return fmt.Errorf("gormsti: failed to register create callback: %w", err)
	}
	if err := db.Callback().Query().Before("gorm:query").Register("gormsti:scope", p.scope); err != nil {
		return fmt.Errorf("gormsti: failed to register query callback: %w", err)
	}
	return nil
}

// Bind associates the Go type of model with the registered type name.
// Pointer and struct values are accepted.
func (p *Plugin) Bind(model any, name string) error {
	if model == nil {
		return fmt.Errorf("gormsti: model is nil")
	}
	if !p.resolver.Registry().Has(name) {
		return &sti.ResolutionError{Name: name, Reason: "type is not registered"}
	}

	t := indirect(reflect.TypeOf(model))
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("gormsti: %s is not a struct", t)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.bindings[t]; ok && existing != name {
		return fmt.Errorf("gormsti: %s is already bound to %q", t, existing)
	}
	p.bindings[t] = name
	return nil
}

// MustBind is Bind that panics on error.
func (p *Plugin) MustBind(model any, name string) {
	if err := p.Bind(model, name); err != nil {
		panic(err)
	}
}

// NameOf returns the type name model is bound to.
func (p *Plugin) NameOf(model any) (string, bool) {
	if model == nil {
		return "", false
	}
	return p.nameOfType(reflect.TypeOf(model))
}

func (p *Plugin) nameOfType(t reflect.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	name, ok := p.bindings[indirect(t)]
	return name, ok
}

// creating stamps the discriminator of every bound model about to be
// inserted. A struct field cannot tell an absent value from an empty one, so
// an empty discriminator is stamped too.
func (p *Plugin) creating(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}
	name, ok := p.nameOfType(db.Statement.Schema.ModelType)
	if !ok {
		return
	}
	p.useSharedTable(db, name)

	field := db.Statement.Schema.LookUpField(p.resolver.Key())
	if field == nil {
		_ = db.AddError(fmt.Errorf("gormsti: %s has no %q field", db.Statement.Schema.Name, p.resolver.Key()))
		return
	}

	ctx := db.Statement.Context
	stamp := func(rv reflect.Value) {
		if _, zero := field.ValueOf(ctx, rv); !zero {
			return
		}
		if err := field.Set(ctx, rv, name); err != nil {
			_ = db.AddError(fmt.Errorf("gormsti: failed to set discriminator: %w", err))
		}
	}

	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			stamp(reflect.Indirect(rv.Index(i)))
		}
	case reflect.Struct:
		stamp(rv)
	}
}

// scope narrows queries through a scoped type to its own discriminator.
func (p *Plugin) scope(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}
	name, ok := p.nameOfType(db.Statement.Schema.ModelType)
	if !ok {
		return
	}
	p.useSharedTable(db, name)

	if skip, ok := db.Get(SkipScope); ok && skip == true {
		p.logger.Debug("discriminator scope skipped", zap.String("type", name))
		return
	}
	if !p.resolver.Scoped(name) {
		return
	}

	db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: p.resolver.Key()},
			Value:  name,
		},
	}})
}

// useSharedTable points the statement at the hierarchy table unless the
// model names its own table or the caller chose one with db.Table.
func (p *Plugin) useSharedTable(db *gorm.DB, name string) {
	stmt := db.Statement
	if stmt.TableExpr != nil || stmt.Table != stmt.Schema.Table {
		return
	}
	if _, ok := reflect.New(stmt.Schema.ModelType).Interface().(schema.Tabler); ok {
		return
	}
	rec, err := p.resolver.Registry().New(name)
	if err != nil {
		return
	}
	stmt.Table = p.resolver.Table(rec)
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

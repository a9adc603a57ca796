// Package query builds the SQL statements gosti issues against a shared
// table. Builder implements sti.ScopedQuery so the resolver can attach its
// discriminator scope.
package query

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/gosti/sti"
)

type predicate struct {
	column string
	value  any
}

type namedScope struct {
	name string
	fn   func(sti.Query)
}

type order struct {
	column string
	desc   bool
}

// Builder accumulates a SELECT against one table. Global scopes are applied
// when the statement is rendered, so they can still be removed by name.
type Builder struct {
	table   string
	columns []string
	wheres  []predicate
	scopes  []namedScope
	removed map[string]bool
	orders  []order
	limit   int
}

// New creates a builder selecting from table.
func New(table string) *Builder {
	return &Builder{
		table:   table,
		removed: make(map[string]bool),
	}
}

// Table returns the table the builder selects from.
func (b *Builder) Table() string { return b.table }

// Select restricts the selected columns. No columns means "*".
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = append(b.columns, columns...)
	return b
}

// Where adds an equality predicate. A nil value renders as IS NULL.
func (b *Builder) Where(column string, value any) *Builder {
	b.wheres = append(b.wheres, predicate{column: column, value: value})
	return b
}

// WhereEquals implements sti.Query.
func (b *Builder) WhereEquals(column string, value any) {
	b.Where(column, value)
}

// AddScope registers a named global scope, replacing any scope of the same
// name. It implements sti.ScopedQuery.
func (b *Builder) AddScope(name string, fn func(sti.Query)) {
	for i, s := range b.scopes {
		if s.name == name {
			b.scopes[i].fn = fn
			return
		}
	}
	b.scopes = append(b.scopes, namedScope{name: name, fn: fn})
}

// WithoutScope disables the named global scope.
func (b *Builder) WithoutScope(name string) *Builder {
	b.removed[name] = true
	return b
}

// WithoutScopes disables every global scope.
func (b *Builder) WithoutScopes() *Builder {
	for _, s := range b.scopes {
		b.removed[s.name] = true
	}
	return b
}

// HasScope reports whether the named scope is registered and active.
func (b *Builder) HasScope(name string) bool {
	if b.removed[name] {
		return false
	}
	for _, s := range b.scopes {
		if s.name == name {
			return true
		}
	}
	return false
}

// OrderBy appends an ORDER BY column.
func (b *Builder) OrderBy(column string, desc bool) *Builder {
	b.orders = append(b.orders, order{column: column, desc: desc})
	return b
}

// Limit caps the number of rows. Zero or less means no limit.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// ToSQL renders the statement and its arguments with active scopes applied.
func (b *Builder) ToSQL() (string, []any, error) {
	table, err := QuoteIdentifierSafe(b.table)
	if err != nil {
		return "", nil, err
	}

	applied := &Builder{wheres: append([]predicate(nil), b.wheres...)}
	for _, s := range b.scopes {
		if !b.removed[s.name] {
			s.fn(applied)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(b.columns) == 0 {
		sb.WriteString("*")
	} else {
		cols := make([]string, len(b.columns))
		for i, c := range b.columns {
			if cols[i], err = QuoteIdentifierSafe(c); err != nil {
				return "", nil, err
			}
		}
		sb.WriteString(strings.Join(cols, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(table)

	var args []any
	if len(applied.wheres) > 0 {
		conds := make([]string, len(applied.wheres))
		for i, p := range applied.wheres {
			col, err := QuoteIdentifierSafe(p.column)
			if err != nil {
				return "", nil, err
			}
			if p.value == nil {
				conds[i] = col + " IS NULL"
				continue
			}
			conds[i] = col + " = ?"
			args = append(args, p.value)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	if len(b.orders) > 0 {
		parts := make([]string, len(b.orders))
		for i, o := range b.orders {
			col, err := QuoteIdentifierSafe(o.column)
			if err != nil {
				return "", nil, err
			}
			dir := "ASC"
			if o.desc {
				dir = "DESC"
			}
			parts[i] = col + " " + dir
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if b.limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", b.limit))
	}

	return sb.String(), args, nil
}

package sti

import (
	"sort"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/gosti/internal/types"
)

// Record is the contract shared by every participant of a hierarchy.
// Concrete types satisfy it by embedding Model.
type Record interface {
	TypeName() string
	Attributes() map[string]any
	SetRawAttributes(attrs map[string]any)
	GetAttribute(key string) (any, bool)
	SetAttribute(key string, value any)
	Exists() bool
	SetExists(exists bool)
	Connection() string
	SetConnection(name string)
	Table() string
	SetTable(table string)
	Casts() map[string]string
	MergeCasts(casts map[string]string) *Model

	record() *Model
}

// Model holds the row state of a record: raw attributes, persistence flag,
// owning connection, explicit table and cast rules.
//
// The zero value is ready to use.
type Model struct {
	attributes map[string]any
	exists     bool
	connection string
	table      string
	casts      *orderedmap.OrderedMap[string, string]
	typeName   string
}

// Dynamic is the record used for types registered without a factory, such
// as types declared only in configuration.
type Dynamic struct {
	Model
}

func (m *Model) record() *Model { return m }

// TypeName returns the registered type this instance was constructed as.
// It is empty for records built outside a Registry.
func (m *Model) TypeName() string { return m.typeName }

// Attributes returns a copy of the raw attribute mapping.
func (m *Model) Attributes() map[string]any {
	return copyAttributes(m.attributes)
}

// SetRawAttributes replaces the attribute mapping without any processing.
func (m *Model) SetRawAttributes(attrs map[string]any) {
	m.attributes = copyAttributes(attrs)
}

// Fill sets every entry of attrs on the record.
func (m *Model) Fill(attrs map[string]any) {
	for k, v := range attrs {
		m.SetAttribute(k, v)
	}
}

// GetAttribute returns the raw stored value for key.
func (m *Model) GetAttribute(key string) (any, bool) {
	v, ok := m.attributes[key]
	return v, ok
}

// SetAttribute stores value under key.
func (m *Model) SetAttribute(key string, value any) {
	if m.attributes == nil {
		m.attributes = make(map[string]any)
	}
	m.attributes[key] = value
}

// Get returns the value for key coerced by its cast rule, if one is set.
// Missing keys return nil.
func (m *Model) Get(key string) (any, error) {
	v, ok := m.attributes[key]
	if !ok {
		return nil, nil
	}
	rule, ok := m.CastRule(key)
	if !ok {
		return v, nil
	}
	return types.Coerce(rule, v)
}

func (m *Model) Exists() bool { return m.exists }

func (m *Model) SetExists(exists bool) { m.exists = exists }

func (m *Model) Connection() string { return m.connection }

func (m *Model) SetConnection(name string) { m.connection = name }

// Table returns the explicitly configured table, or "" when the table is
// derived. Use Resolver.Table for the effective name.
func (m *Model) Table() string { return m.table }

func (m *Model) SetTable(table string) { m.table = table }

// Casts returns a copy of the cast configuration.
func (m *Model) Casts() map[string]string {
	out := make(map[string]string)
	if m.casts == nil {
		return out
	}
	for el := m.casts.Front(); el != nil; el = el.Next() {
		out[el.Key] = el.Value
	}
	return out
}

// CastKeys returns the attribute names with a cast rule, in merge order.
func (m *Model) CastKeys() []string {
	if m.casts == nil {
		return nil
	}
	keys := make([]string, 0, m.casts.Len())
	for el := m.casts.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Key)
	}
	return keys
}

// CastRule returns the cast rule for key.
func (m *Model) CastRule(key string) (string, bool) {
	if m.casts == nil {
		return "", false
	}
	return m.casts.Get(key)
}

// MergeCasts combines casts with the record's own configuration. Entries
// already on the record win on collision; incoming keys are laid down first
// in sorted order.
func (m *Model) MergeCasts(casts map[string]string) *Model {
	merged := orderedmap.NewOrderedMap[string, string]()

	keys := make([]string, 0, len(casts))
	for k := range casts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		merged.Set(k, casts[k])
	}

	if m.casts != nil {
		for el := m.casts.Front(); el != nil; el = el.Next() {
			merged.Set(el.Key, el.Value)
		}
	}

	m.casts = merged
	return m
}

func copyAttributes(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

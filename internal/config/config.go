// Package config provides configuration structures and loading for gosti.
package config

import (
	"fmt"
	"sort"
)

// Resolution policies accepted in hierarchy.resolution.
const (
	ResolutionFallback = "fallback"
	ResolutionStrict   = "strict"
)

// Config represents the complete application configuration.
type Config struct {
	Connections       map[string]DatabaseConfig `yaml:"connections" mapstructure:"connections"`
	DefaultConnection string                    `yaml:"default_connection" mapstructure:"default_connection"`
	Hierarchy         HierarchyConfig           `yaml:"hierarchy" mapstructure:"hierarchy"`
	Logging           LoggingConfig             `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a MySQL database connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// HierarchyConfig describes one shared table and the types stored in it.
type HierarchyConfig struct {
	Discriminator string       `yaml:"discriminator" mapstructure:"discriminator"`
	PrimaryKey    string       `yaml:"primary_key" mapstructure:"primary_key"`
	Table         string       `yaml:"table,omitempty" mapstructure:"table"`
	Resolution    string       `yaml:"resolution" mapstructure:"resolution"` // fallback or strict
	Types         []TypeConfig `yaml:"types" mapstructure:"types"`
}

// TypeConfig declares one type of the hierarchy. The type without a parent
// is the contract root.
type TypeConfig struct {
	Name      string            `yaml:"name" mapstructure:"name"`
	Parent    string            `yaml:"parent,omitempty" mapstructure:"parent"`
	Table     string            `yaml:"table,omitempty" mapstructure:"table"`
	Casts     map[string]string `yaml:"casts,omitempty" mapstructure:"casts"`
	Methods   []string          `yaml:"methods,omitempty" mapstructure:"methods"`
	Overrides []string          `yaml:"overrides,omitempty" mapstructure:"overrides"`
	Scope     string            `yaml:"scope,omitempty" mapstructure:"scope"` // auto, none, exact
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Connections:       map[string]DatabaseConfig{},
		DefaultConnection: "default",
		Hierarchy: HierarchyConfig{
			Discriminator: "cast_type",
			PrimaryKey:    "id",
			Resolution:    ResolutionFallback,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// DefaultDatabaseConfig returns the defaults applied to every declared
// connection.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Port:               3306,
		TLS:                "preferred",
		MaxConnections:     10,
		MaxIdleConnections: 5,
	}
}

// withDefaults fills zero fields of db from DefaultDatabaseConfig.
func (db DatabaseConfig) withDefaults() DatabaseConfig {
	def := DefaultDatabaseConfig()
	if db.Port == 0 {
		db.Port = def.Port
	}
	if db.TLS == "" {
		db.TLS = def.TLS
	}
	if db.MaxConnections == 0 {
		db.MaxConnections = def.MaxConnections
	}
	if db.MaxIdleConnections == 0 {
		db.MaxIdleConnections = def.MaxIdleConnections
	}
	return db
}

// GetConnection returns the named connection. An empty name selects the
// default connection.
func (c *Config) GetConnection(name string) (*DatabaseConfig, error) {
	if name == "" {
		name = c.DefaultConnection
	}
	db, exists := c.Connections[name]
	if !exists {
		return nil, fmt.Errorf("connection %q not found in configuration", name)
	}
	return &db, nil
}

// ListConnections returns all connection names in sorted order.
func (c *Config) ListConnections() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasConnections reports whether any database connection is configured.
func (c *Config) HasConnections() bool {
	return len(c.Connections) > 0
}

// GetType retrieves a type declaration by name.
func (c *Config) GetType(name string) (*TypeConfig, error) {
	for i := range c.Hierarchy.Types {
		if c.Hierarchy.Types[i].Name == name {
			return &c.Hierarchy.Types[i], nil
		}
	}
	return nil, fmt.Errorf("type %q not found in configuration", name)
}

// Strict reports whether unresolved discriminators are errors.
func (h HierarchyConfig) Strict() bool {
	return h.Resolution == ResolutionStrict
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat, connection string, strict bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if connection != "" {
		c.DefaultConnection = connection
	}
	if strict {
		c.Hierarchy.Resolution = ResolutionStrict
	}
}

package config

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/gosti/internal/query"
	"github.com/dbsmedya/gosti/internal/types"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
// Structural problems of the type tree (cycles, several roots) are reported
// by the hierarchy builder.
func (c *Config) Validate() error {
	var errors ValidationErrors

	for _, name := range c.ListConnections() {
		db := c.Connections[name]
		errors = append(errors, c.validateDatabase("connections."+name, &db)...)
	}

	if c.HasConnections() {
		if _, exists := c.Connections[c.DefaultConnection]; !exists {
			errors = append(errors, ValidationError{
				Field:   "default_connection",
				Message: fmt.Sprintf("connection %q is not defined", c.DefaultConnection),
			})
		}
	}

	errors = append(errors, c.validateHierarchy()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateHierarchy() ValidationErrors {
	var errors ValidationErrors
	h := &c.Hierarchy

	identifiers := []struct {
		field, value string
		required     bool
	}{
		{"hierarchy.discriminator", h.Discriminator, true},
		{"hierarchy.primary_key", h.PrimaryKey, true},
		{"hierarchy.table", h.Table, false},
	}
	for _, id := range identifiers {
		if id.value == "" && !id.required {
			continue
		}
		if !query.IsValidIdentifier(id.value) {
			errors = append(errors, ValidationError{
				Field:   id.field,
				Message: fmt.Sprintf("%q is not a valid column or table name", id.value),
			})
		}
	}

	validResolutions := map[string]bool{ResolutionFallback: true, ResolutionStrict: true, "": true}
	if !validResolutions[h.Resolution] {
		errors = append(errors, ValidationError{
			Field:   "hierarchy.resolution",
			Message: "resolution must be 'fallback' or 'strict'",
		})
	}

	if len(h.Types) == 0 {
		errors = append(errors, ValidationError{
			Field:   "hierarchy.types",
			Message: "at least one type must be defined",
		})
	}

	declared := make(map[string]bool, len(h.Types))
	for _, t := range h.Types {
		if t.Name != "" {
			declared[t.Name] = true
		}
	}

	seen := make(map[string]bool, len(h.Types))
	for i, t := range h.Types {
		prefix := fmt.Sprintf("hierarchy.types[%d]", i)
		if t.Name == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".name",
				Message: "name is required",
			})
		} else if seen[t.Name] {
			errors = append(errors, ValidationError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("type %q is declared more than once", t.Name),
			})
		}
		seen[t.Name] = true

		errors = append(errors, validateType(prefix, &t, declared)...)
	}

	return errors
}

func validateType(prefix string, t *TypeConfig, declared map[string]bool) ValidationErrors {
	var errors ValidationErrors

	if t.Parent != "" {
		if t.Parent == t.Name {
			errors = append(errors, ValidationError{
				Field:   prefix + ".parent",
				Message: "a type cannot be its own parent",
			})
		} else if !declared[t.Parent] {
			errors = append(errors, ValidationError{
				Field:   prefix + ".parent",
				Message: fmt.Sprintf("parent %q is not declared", t.Parent),
			})
		}
	}

	if t.Table != "" && !query.IsValidIdentifier(t.Table) {
		errors = append(errors, ValidationError{
			Field:   prefix + ".table",
			Message: fmt.Sprintf("%q is not a valid table name", t.Table),
		})
	}

	validScopes := map[string]bool{"auto": true, "none": true, "exact": true, "": true}
	if !validScopes[t.Scope] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".scope",
			Message: "scope must be 'auto', 'none', or 'exact'",
		})
	}

	for attr, rule := range t.Casts {
		if _, ok := types.NormalizeRule(rule); !ok {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.casts.%s", prefix, attr),
				Message: fmt.Sprintf("unknown cast rule %q", rule),
			})
		}
	}

	for _, m := range t.Overrides {
		if strings.TrimSpace(m) == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".overrides",
				Message: "method names cannot be empty",
			})
			break
		}
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}

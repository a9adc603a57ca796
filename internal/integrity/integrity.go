// Package integrity checks that a shared table can serve its hierarchy: the
// tables and columns exist, and every stored discriminator resolves.
package integrity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/dbsmedya/gosti/internal/logger"
	"github.com/dbsmedya/gosti/internal/query"
	"github.com/dbsmedya/gosti/sti"
)

// mysqlBadField is ER_BAD_FIELD_ERROR.
const mysqlBadField = 1054

// PreflightError represents a failed structural check.
type PreflightError struct {
	Check   string
	Message string
	Tables  []string
	Details map[string]string
}

func (e *PreflightError) Error() string {
	if len(e.Tables) > 0 {
		return fmt.Sprintf("%s: %s (tables: %v)", e.Check, e.Message, e.Tables)
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

// Checker runs integrity checks against one schema.
type Checker struct {
	db       *sql.DB
	schema   string
	resolver *sti.Resolver
	logger   *logger.Logger
}

// NewChecker creates a checker for the tables of resolver's hierarchy in
// schema.
func NewChecker(db *sql.DB, schema string, resolver *sti.Resolver, log *logger.Logger) (*Checker, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if schema == "" {
		return nil, fmt.Errorf("schema name is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	return &Checker{
		db:       db,
		schema:   schema,
		resolver: resolver,
		logger:   log,
	}, nil
}

// Tables returns the distinct tables the hierarchy's types resolve to.
func Tables(r *sti.Resolver) []string {
	seen := make(map[string]bool)
	var tables []string
	for _, name := range r.Registry().Names() {
		rec, err := r.Registry().New(name)
		if err != nil {
			continue
		}
		t := r.Table(rec)
		if t != "" && !seen[t] {
			seen[t] = true
			tables = append(tables, t)
		}
	}
	sort.Strings(tables)
	return tables
}

// Preflight verifies that every table exists and carries the discriminator
// column plus any extra columns given.
func (c *Checker) Preflight(ctx context.Context, tables []string, columns ...string) error {
	if len(tables) == 0 {
		return &PreflightError{Check: "TABLE_EXISTENCE_CHECK", Message: "no tables to check"}
	}
	required := append([]string{c.resolver.Key()}, columns...)

	if err := c.checkTables(ctx, tables); err != nil {
		return err
	}
	if err := c.checkColumns(ctx, tables, required); err != nil {
		return err
	}

	c.logger.Debugf("Preflight PASSED (%d tables)", len(tables))
	return nil
}

func (c *Checker) checkTables(ctx context.Context, tables []string) error {
	stmt := "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_NAME IN (" +
		placeholders(len(tables)) + ")"

	args := make([]interface{}, 0, len(tables)+1)
	args = append(args, c.schema)
	for _, t := range tables {
		args = append(args, t)
	}

	rows, err := c.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var missing []string
	for _, t := range tables {
		if !existing[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return &PreflightError{
			Check:   "TABLE_EXISTENCE_CHECK",
			Message: fmt.Sprintf("Tables not found in schema %s", c.schema),
			Tables:  missing,
		}
	}
	return nil
}

func (c *Checker) checkColumns(ctx context.Context, tables, columns []string) error {
	stmt := "SELECT TABLE_NAME, COLUMN_NAME FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME IN (" +
		placeholders(len(tables)) + ") AND COLUMN_NAME IN (" + placeholders(len(columns)) + ")"

	args := make([]interface{}, 0, len(tables)+len(columns)+1)
	args = append(args, c.schema)
	for _, t := range tables {
		args = append(args, t)
	}
	for _, col := range columns {
		args = append(args, col)
	}

	rows, err := c.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	present := make(map[string]map[string]bool)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return err
		}
		if present[table] == nil {
			present[table] = make(map[string]bool)
		}
		present[table][column] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var failed []string
	details := make(map[string]string)
	for _, t := range tables {
		var missing []string
		for _, col := range columns {
			if !present[t][col] {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			failed = append(failed, t)
			details[t] = "missing " + strings.Join(missing, ", ")
		}
	}
	if len(failed) > 0 {
		return &PreflightError{
			Check:   "COLUMN_CHECK",
			Message: "Required columns not found",
			Tables:  failed,
			Details: details,
		}
	}
	return nil
}

// Census counts the rows of table per stored discriminator.
type Census struct {
	Table      string
	Column     string
	Resolved   map[string]int64 // registered type -> rows
	Unresolved map[string]int64 // unknown discriminator -> rows
	Untyped    int64            // rows with a NULL or empty discriminator
}

// Total returns the number of rows counted.
func (c *Census) Total() int64 {
	total := c.Untyped
	for _, n := range c.Resolved {
		total += n
	}
	for _, n := range c.Unresolved {
		total += n
	}
	return total
}

// Healthy reports whether every discriminator names a registered type.
// These are exactly the rows a fallback resolver would load as the
// requesting type.
func (c *Census) Healthy() bool {
	return len(c.Unresolved) == 0
}

// Types returns the registered types seen, sorted.
func (c *Census) Types() []string { return sortedKeys(c.Resolved) }

// UnresolvedValues returns the unknown discriminators seen, sorted.
func (c *Census) UnresolvedValues() []string { return sortedKeys(c.Unresolved) }

// Census groups table by the discriminator column and classifies each
// value against the registry.
func (c *Checker) Census(ctx context.Context, table string) (*Census, error) {
	column := c.resolver.Key()
	stmt, err := query.CountBy(table, column)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, stmt)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlBadField {
			return nil, &PreflightError{
				Check:   "COLUMN_CHECK",
				Message: fmt.Sprintf("discriminator column %s does not exist", column),
				Tables:  []string{table},
			}
		}
		return nil, fmt.Errorf("failed to count discriminators: %w", err)
	}
	defer rows.Close()

	census := &Census{
		Table:      table,
		Column:     column,
		Resolved:   make(map[string]int64),
		Unresolved: make(map[string]int64),
	}
	reg := c.resolver.Registry()
	for rows.Next() {
		var value sql.NullString
		var count int64
		if err := rows.Scan(&value, &count); err != nil {
			return nil, err
		}
		switch {
		case !value.Valid || value.String == "":
			census.Untyped += count
		case reg.Has(value.String):
			census.Resolved[value.String] += count
		default:
			census.Unresolved[value.String] += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log := c.logger.WithTable(table)
	for _, v := range census.UnresolvedValues() {
		log.Warnw("unresolved discriminator", "value", v, "rows", census.Unresolved[v])
	}
	log.Debugw("census complete", "rows", census.Total())
	return census, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

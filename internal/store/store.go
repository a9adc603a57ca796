// Package store is a database/sql host for the sti resolver. It issues
// scoped SELECTs through a type, materializes rows into their concrete
// types and fires the creating hook before INSERT.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/dbsmedya/gosti/internal/logger"
	"github.com/dbsmedya/gosti/internal/query"
	"github.com/dbsmedya/gosti/internal/types"
	"github.com/dbsmedya/gosti/sti"
)

var (
	// ErrNotFound is returned by First and Delete when no row matches.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when an INSERT violates a unique key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotPersisted is returned by Update and Delete for records that were
	// never saved.
	ErrNotPersisted = errors.New("record is not persisted")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// Option configures a Store.
type Option func(*Store)

// WithPrimaryKey sets the primary key column. The default is "id".
func WithPrimaryKey(column string) Option {
	return func(s *Store) {
		if column != "" {
			s.primaryKey = column
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store reads and writes records of one hierarchy over a named connection.
type Store struct {
	db         *sql.DB
	connection string
	resolver   *sti.Resolver
	primaryKey string
	logger     *logger.Logger
}

// NewStore creates a store for the connection named connection.
func NewStore(db *sql.DB, connection string, resolver *sti.Resolver, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver is nil")
	}

	s := &Store{
		db:         db,
		connection: connection,
		resolver:   resolver,
		primaryKey: "id",
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithConnection(connection)
	return s, nil
}

// Connection returns the connection name records are bound to.
func (s *Store) Connection() string { return s.connection }

// PrimaryKey returns the primary key column.
func (s *Store) PrimaryKey() string { return s.primaryKey }

// Query starts a SELECT on proto's table, narrowed to proto's type when
// that type is scoped.
func (s *Store) Query(proto sti.Record) *query.Builder {
	b := query.New(s.resolver.Table(proto))
	s.resolver.Scope(b, s.resolver.TypeOf(proto))
	return b
}

// Find runs q and materializes every row through proto.
func (s *Store) Find(ctx context.Context, proto sti.Record, q *query.Builder) ([]sti.Record, error) {
	var out []sti.Record
	_, err := s.Each(ctx, proto, q, func(rec sti.Record) error {
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// First returns the first record q matches, or ErrNotFound.
func (s *Store) First(ctx context.Context, proto sti.Record, q *query.Builder) (sti.Record, error) {
	recs, err := s.Find(ctx, proto, q.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

// Each streams the rows of q, materialized through proto, to fn and returns
// per-type counts. Rows whose discriminator could not be honored are
// counted as unresolved; under a strict resolver they abort the scan.
func (s *Store) Each(ctx context.Context, proto sti.Record, q *query.Builder, fn func(sti.Record) error) (*types.MaterializeStats, error) {
	requested := s.resolver.TypeOf(proto)
	stats := types.NewMaterializeStats(requested)
	start := time.Now()

	sqlStr, args, err := q.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	log := s.logger.WithType(requested).WithTable(q.Table())
	log.Debugw("querying", "sql", sqlStr, "args", len(args))

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get column names: %w", err)
	}

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("scan interrupted: %w", err)
		}

		row, err := scanRow(rows, columns)
		if err != nil {
			return stats, err
		}

		rec, err := s.resolver.NewFromBuilder(proto, row, s.connection)
		if err != nil {
			return stats, fmt.Errorf("failed to materialize row: %w", err)
		}

		concrete := s.resolver.TypeOf(rec)
		stats.Add(concrete)
		if disc, ok := s.resolver.Discriminator(rec); ok && disc != concrete {
			stats.AddUnresolved(disc)
		}

		if err := fn(rec); err != nil {
			return stats, err
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("error iterating rows: %w", err)
	}

	stats.Duration = time.Since(start)
	log.Debugw("materialized", "rows", stats.Rows, "unresolved", len(stats.Unresolved))
	return stats, nil
}

// scanRow reads the current row into a column -> value map.
func scanRow(rows *sql.Rows, columns []string) (map[string]any, error) {
	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	row := make(map[string]any, len(columns))
	for i, col := range columns {
		// MySQL driver returns []byte for strings/blobs
		if b, ok := values[i].([]byte); ok {
			row[col] = string(b)
			continue
		}
		row[col] = values[i]
	}
	return row, nil
}

// Create fires the creating hook and inserts rec. An absent primary key is
// filled from the insert id.
func (s *Store) Create(ctx context.Context, rec sti.Record) error {
	typeName := s.resolver.TypeOf(rec)
	if err := s.resolver.Events().Fire(sti.EventCreating, rec); err != nil {
		return fmt.Errorf("creating %s: %w", typeName, err)
	}

	table := s.resolver.Table(rec)
	attrs := rec.Attributes()
	columns := sortedColumns(attrs, "")

	sqlStr, err := query.Insert(table, columns)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, sqlStr, columnValues(attrs, columns)...)
	if err != nil {
		return fmt.Errorf("insert %s into %s: %w", typeName, table, translate(err))
	}

	if v, ok := attrs[s.primaryKey]; !ok || v == nil {
		if id, err := res.LastInsertId(); err == nil {
			rec.SetAttribute(s.primaryKey, id)
		}
	}

	rec.SetExists(true)
	if rec.Connection() == "" {
		rec.SetConnection(s.connection)
	}
	s.logger.WithType(typeName).Debugw("created", "table", table)
	return nil
}

// Update writes every attribute of a persisted record by primary key.
func (s *Store) Update(ctx context.Context, rec sti.Record) error {
	pk, err := s.persistedKey(rec)
	if err != nil {
		return err
	}

	table := s.resolver.Table(rec)
	attrs := rec.Attributes()
	columns := sortedColumns(attrs, s.primaryKey)
	if len(columns) == 0 {
		return nil
	}

	sqlStr, err := query.Update(table, columns, s.primaryKey)
	if err != nil {
		return err
	}

	args := append(columnValues(attrs, columns), pk)
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("update %s in %s: %w", s.resolver.TypeOf(rec), table, translate(err))
	}
	return nil
}

// Save creates rec when it is new and updates it otherwise.
func (s *Store) Save(ctx context.Context, rec sti.Record) error {
	if rec.Exists() {
		return s.Update(ctx, rec)
	}
	return s.Create(ctx, rec)
}

// Delete removes a persisted record by primary key. The discriminator plays
// no part in deletion.
func (s *Store) Delete(ctx context.Context, rec sti.Record) error {
	pk, err := s.persistedKey(rec)
	if err != nil {
		return err
	}

	table := s.resolver.Table(rec)
	sqlStr, err := query.Delete(table, s.primaryKey)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, sqlStr, pk)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}

	rec.SetExists(false)
	return nil
}

func (s *Store) persistedKey(rec sti.Record) (any, error) {
	if !rec.Exists() {
		return nil, ErrNotPersisted
	}
	pk, ok := rec.GetAttribute(s.primaryKey)
	if !ok || pk == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrNotPersisted, s.primaryKey)
	}
	return pk, nil
}

// sortedColumns returns the attribute names of attrs except skip, sorted so
// statements are deterministic.
func sortedColumns(attrs map[string]any, skip string) []string {
	columns := make([]string, 0, len(attrs))
	for col := range attrs {
		if col == skip {
			continue
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

func columnValues(attrs map[string]any, columns []string) []any {
	values := make([]any, len(columns))
	for i, col := range columns {
		values[i] = attrs[col]
	}
	return values
}

// translate maps driver errors onto package sentinels.
func translate(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, myErr.Message)
	}
	return err
}

// Package database provides named MySQL connection management for gosti.
// Records carry a connection identifier; the Manager maps it to a pool.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/dbsmedya/gosti/internal/config"
)

// Opener opens a database handle. It matches sql.Open.
type Opener func(driverName, dsn string) (*sql.DB, error)

// Option configures a Manager.
type Option func(*Manager)

// WithOpener replaces sql.Open, e.g. with a sqlmock constructor in tests.
func WithOpener(open Opener) Option {
	return func(m *Manager) {
		if open != nil {
			m.open = open
		}
	}
}

// WithRetry sets the connection attempts and the initial backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(m *Manager) {
		if attempts > 0 {
			m.maxRetries = attempts
		}
		m.backoff = backoff
	}
}

// Manager hands out one pool per configured connection name.
type Manager struct {
	mu         sync.Mutex
	config     *config.Config
	conns      map[string]*sql.DB
	open       Opener
	maxRetries int
	backoff    time.Duration
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.Config, opts ...Option) *Manager {
	m := &Manager{
		config:     cfg,
		conns:      make(map[string]*sql.DB),
		open:       sql.Open,
		maxRetries: 3,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// resolveName maps the empty name to the default connection.
func (m *Manager) resolveName(name string) string {
	if name == "" && m.config != nil {
		return m.config.DefaultConnection
	}
	return name
}

// Register attaches an already open handle under name. An existing handle of
// that name is replaced without being closed.
func (m *Manager) Register(name string, db *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[m.resolveName(name)] = db
}

// Get returns the open handle for name, if any.
func (m *Manager) Get(name string) (*sql.DB, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.conns[m.resolveName(name)]
	return db, ok
}

// Names returns the names of the open connections in sorted order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connect returns the pool for name, opening it on first use. An empty name
// selects the default connection.
func (m *Manager) Connect(ctx context.Context, name string) (*sql.DB, error) {
	name = m.resolveName(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.conns[name]; ok {
		return db, nil
	}
	if m.config == nil {
		return nil, fmt.Errorf("connection %q: no configuration", name)
	}

	cfg, err := m.config.GetConnection(name)
	if err != nil {
		return nil, err
	}

	db, err := m.connectWithRetry(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", name, err)
	}
	m.conns[name] = db
	return db, nil
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	var db *sql.DB
	var err error

	backoff := m.backoff

	for i := 0; i < m.maxRetries; i++ {
		db, err = m.connect(cfg)
		if err == nil {
			pingErr := db.PingContext(ctx)
			if pingErr == nil {
				return db, nil
			}
			_ = db.Close()
			err = pingErr
		}

		if i < m.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", m.maxRetries, err)
}

// connect creates a database handle with pool limits applied.
func (m *Manager) connect(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := m.open("mysql", BuildDSN(cfg))
	if err != nil {
		return nil, err
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// BuildDSN constructs a MySQL DSN from configuration.
func BuildDSN(cfg *config.DatabaseConfig) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	params := "?parseTime=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// Close closes every open connection and forgets it.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, db := range m.conns {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close: %w", name, err))
		}
		delete(m.conns, name)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}
	return nil
}

// Ping verifies all open connections are alive.
func (m *Manager) Ping(ctx context.Context) error {
	for _, name := range m.Names() {
		db, ok := m.Get(name)
		if !ok {
			continue
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

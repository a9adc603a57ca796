package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/dbsmedya/gosti/internal/config"
	"github.com/dbsmedya/gosti/internal/database"
	"github.com/dbsmedya/gosti/internal/hierarchy"
	"github.com/dbsmedya/gosti/internal/logger"
	"github.com/dbsmedya/gosti/sti"
)

// dbOptions are passed to every connection manager the commands create.
var dbOptions []database.Option

// environment is what every command needs after loading the config file.
type environment struct {
	cfg      *config.Config
	log      *logger.Logger
	tree     *hierarchy.Tree
	resolver *sti.Resolver
}

// loadEnvironment loads and validates the config file, applies CLI
// overrides and builds the resolver for the declared hierarchy.
func loadEnvironment() (*environment, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.Connection, overrides.Strict)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	reg, tree, err := hierarchy.NewRegistry(&cfg.Hierarchy, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build hierarchy: %w", err)
	}

	policy := sti.Fallback
	if cfg.Hierarchy.Strict() {
		policy = sti.Strict
	}
	resolver := sti.NewResolver(reg,
		sti.WithKey(cfg.Hierarchy.Discriminator),
		sti.WithPolicy(policy),
		sti.WithLogger(log.Zap()),
	)

	return &environment{cfg: cfg, log: log, tree: tree, resolver: resolver}, nil
}

// connect opens the default connection. The returned manager must be closed.
func (e *environment) connect(ctx context.Context) (*database.Manager, *sql.DB, error) {
	dbManager := database.NewManager(e.cfg, dbOptions...)
	db, err := dbManager.Connect(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	return dbManager, db, nil
}

// commandContext is canceled when the process receives SIGINT or SIGTERM.
func (e *environment) commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return database.ShutdownContext(parent, func(sig os.Signal) {
		e.log.Warnw("received signal, aborting", "signal", sig.String())
	})
}

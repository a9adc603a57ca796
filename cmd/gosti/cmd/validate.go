package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gosti/internal/integrity"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and run integrity checks",
	Long: `Validate checks the configuration file, builds the type hierarchy and,
when a connection is configured, runs integrity checks against the database.

Checks performed:
  - Configuration syntax and required fields
  - Hierarchy has exactly one root and no cycles
  - Database connectivity
  - Table existence and discriminator column
  - Discriminator census (every stored value names a registered type)

Example:
  gosti validate --config gosti.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer func() { _ = env.log.Sync() }()

	reg := env.resolver.Registry()
	cmd.Printf("\n=== Configuration Validation ===\n")
	cmd.Printf("Config file: %s\n", GetConfigFile())
	cmd.Printf("Root type: %s\n", reg.Root())
	cmd.Printf("Types: %d\n", len(reg.Names()))
	cmd.Printf("Discriminator: %s (%s)\n\n", env.resolver.Key(), env.resolver.Policy())

	if !env.cfg.HasConnections() {
		cmd.Println("No connections configured, skipping database checks")
		cmd.Println("=== Validation Complete ===")
		return nil
	}

	ctx, cancel := env.commandContext(cmd.Context())
	defer cancel()

	dbManager, db, err := env.connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbManager.Close()

	connCfg, err := env.cfg.GetConnection("")
	if err != nil {
		return err
	}

	checker, err := integrity.NewChecker(db, connCfg.Database, env.resolver, env.log)
	if err != nil {
		return fmt.Errorf("failed to create checker: %w", err)
	}

	tables := integrity.Tables(env.resolver)
	cmd.Printf("--- Connection: %s (%s) ---\n", env.cfg.DefaultConnection, connCfg.Database)
	if err := checker.Preflight(ctx, tables, env.cfg.Hierarchy.PrimaryKey); err != nil {
		var pfErr *integrity.PreflightError
		if errors.As(err, &pfErr) {
			for _, table := range pfErr.Tables {
				if detail, ok := pfErr.Details[table]; ok {
					cmd.Printf("  ❌ %s: %s\n", table, detail)
				} else {
					cmd.Printf("  ❌ %s: not found\n", table)
				}
			}
		}
		return fmt.Errorf("preflight checks failed: %w", err)
	}
	cmd.Printf("Tables: %v\n\n", tables)

	hasErrors := false
	for _, table := range tables {
		census, err := checker.Census(ctx, table)
		if err != nil {
			return fmt.Errorf("census of %s failed: %w", table, err)
		}

		cmd.Printf("--- Table: %s (%d rows) ---\n", table, census.Total())
		for _, name := range census.Types() {
			cmd.Printf("  %s: %d\n", name, census.Resolved[name])
		}
		if census.Untyped > 0 {
			cmd.Printf("  (no discriminator): %d\n", census.Untyped)
		}
		for _, value := range census.UnresolvedValues() {
			cmd.Printf("  ❌ unresolved %q: %d\n", value, census.Unresolved[value])
		}
		if census.Healthy() {
			cmd.Printf("✅ All discriminators resolve\n\n")
		} else {
			hasErrors = true
			cmd.Println()
		}
	}

	if hasErrors {
		return fmt.Errorf("validation failed: unresolved discriminators found")
	}

	cmd.Println("=== Validation Complete ===")
	return nil
}

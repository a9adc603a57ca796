package cmd

import (
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/gosti/internal/store"
	"github.com/dbsmedya/gosti/internal/types"
	"github.com/dbsmedya/gosti/sti"
)

var (
	scanType     string
	scanUnscoped bool
	scanLimit    int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Load rows through a type and count their concrete types",
	Long: `Scan queries the shared table through the given type, materializes
every row as the type its discriminator names and prints how many rows
became each concrete type.

Queries through a subtype are scoped to that type's discriminator unless
--unscoped is given. With --strict an unresolved discriminator aborts the
scan.

Example:
  gosti scan --type fleet.Car
  gosti scan --type fleet.Vehicle --limit 1000`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanType, "type", "t", "",
		"Type to load rows through (required)")
	scanCmd.Flags().BoolVar(&scanUnscoped, "unscoped", false,
		"Do not narrow the query to the type's discriminator")
	scanCmd.Flags().IntVar(&scanLimit, "limit", 0,
		"Maximum number of rows to load (0 for all)")
	_ = scanCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanType == "" {
		return fmt.Errorf("--type is required")
	}
	if scanLimit < 0 {
		return fmt.Errorf("--limit cannot be negative")
	}

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer func() { _ = env.log.Sync() }()

	proto, err := env.resolver.Registry().New(scanType)
	if err != nil {
		return err
	}

	if !env.cfg.HasConnections() {
		return fmt.Errorf("no connections configured")
	}

	ctx, cancel := env.commandContext(cmd.Context())
	defer cancel()

	dbManager, db, err := env.connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbManager.Close()

	st, err := store.NewStore(db, env.cfg.DefaultConnection, env.resolver,
		store.WithPrimaryKey(env.cfg.Hierarchy.PrimaryKey),
		store.WithLogger(env.log))
	if err != nil {
		return err
	}

	q := st.Query(proto)
	if scanUnscoped {
		q.WithoutScope(env.resolver.Key())
	}
	if scanLimit > 0 {
		q.Limit(scanLimit)
	}

	stats, err := st.Each(ctx, proto, q, func(sti.Record) error { return nil })
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printStats(cmd, env.resolver.Table(proto), stats)
	return nil
}

func printStats(cmd *cobra.Command, table string, stats *types.MaterializeStats) {
	cmd.Printf("Scanned %s through %s in %s\n\n", table, stats.Requested, stats.Duration)

	width := runewidth.StringWidth("Total")
	for _, name := range stats.Types() {
		if w := runewidth.StringWidth(name); w > width {
			width = w
		}
	}
	for _, value := range stats.UnresolvedValues() {
		if w := runewidth.StringWidth(value); w > width {
			width = w
		}
	}

	cmd.Printf("%s  %s\n", runewidth.FillRight("Type", width), "Rows")
	for _, name := range stats.Types() {
		pad := strings.Repeat(" ", width-runewidth.StringWidth(name))
		cmd.Printf("%s%s  %d\n", color.Cyan.Sprint(name), pad, stats.PerType[name])
	}
	cmd.Printf("%s  %d\n", runewidth.FillRight("Total", width), stats.Rows)

	if len(stats.Unresolved) > 0 {
		cmd.Printf("\n%s\n", color.Yellow.Sprint("Unresolved discriminators (loaded as fallback type):"))
		for _, value := range stats.UnresolvedValues() {
			cmd.Printf("%s  %d\n", runewidth.FillRight(value, width), stats.Unresolved[value])
		}
	}
}
